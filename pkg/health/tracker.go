// Package health keeps a process-wide rolling record of dispatch
// outcomes per provider and turns it into routing judgments: a hard
// short-circuit (unhealthy) and a soft de-prioritization (penalty).
package health

import (
	"sync"
	"time"
)

const (
	// recencyWindow bounds how long old outcomes influence judgments.
	// Counters are never reset by time; only the judgment is scoped.
	recencyWindow = 60 * time.Second

	unhealthyErrorFloor = 5
	penaltyRatio        = 1.5

	// PenaltyWeight is added to a provider's fallback ordering rank
	// when its recent error ratio is too high.
	PenaltyWeight = 1000.0
)

type record struct {
	successCount int64
	errorCount   int64
	lastModel    string
	lastLatency  time.Duration
	lastUpdated  time.Time
}

// Stats is a point-in-time snapshot of one provider's health record.
type Stats struct {
	Provider     string        `json:"provider"`
	SuccessCount int64         `json:"success_count"`
	ErrorCount   int64         `json:"error_count"`
	LastModel    string        `json:"last_model,omitempty"`
	LastLatency  time.Duration `json:"last_latency"`
	LastUpdated  time.Time     `json:"last_updated"`
	Unhealthy    bool          `json:"unhealthy"`
}

// Tracker records dispatch outcomes per provider. All methods are safe
// for concurrent use from any number of in-flight requests.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*record
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock creates a tracker with an injectable clock.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		records: make(map[string]*record),
		now:     now,
	}
}

// Update records the outcome of one dispatch attempt. Counters only
// ever increase; lastUpdated is overwritten with the current time.
func (t *Tracker) Update(providerName, model string, latency time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[providerName]
	if !ok {
		rec = &record{}
		t.records[providerName] = rec
	}
	if success {
		rec.successCount++
	} else {
		rec.errorCount++
	}
	rec.lastModel = model
	rec.lastLatency = latency
	rec.lastUpdated = t.now()
}

// IsUnhealthy reports whether the provider should be skipped without a
// network call. True iff errorCount >= 5, errorCount > 2*successCount,
// and the record was updated within the recency window. This is a
// short-circuit, not a ban: the record ages out after 60s without
// resetting the counters.
func (t *Tracker) IsUnhealthy(providerName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[providerName]
	if !ok {
		return false
	}
	if rec.errorCount < unhealthyErrorFloor {
		return false
	}
	if rec.errorCount <= 2*rec.successCount {
		return false
	}
	return t.now().Sub(rec.lastUpdated) < recencyWindow
}

// Penalty returns a large ordering penalty when the provider's recent
// error ratio exceeds the threshold, else 0. Unlike IsUnhealthy it
// de-prioritizes the provider in fallback ordering without excluding it.
func (t *Tracker) Penalty(providerName string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[providerName]
	if !ok {
		return 0
	}
	if t.now().Sub(rec.lastUpdated) >= recencyWindow {
		return 0
	}
	ratio := float64(rec.errorCount+1) / float64(rec.successCount+1)
	if ratio > penaltyRatio {
		return PenaltyWeight
	}
	return 0
}

// Snapshot returns point-in-time stats for every tracked provider.
func (t *Tracker) Snapshot() []Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make([]Stats, 0, len(t.records))
	for name, rec := range t.records {
		unhealthy := rec.errorCount >= unhealthyErrorFloor &&
			rec.errorCount > 2*rec.successCount &&
			t.now().Sub(rec.lastUpdated) < recencyWindow
		stats = append(stats, Stats{
			Provider:     name,
			SuccessCount: rec.successCount,
			ErrorCount:   rec.errorCount,
			LastModel:    rec.lastModel,
			LastLatency:  rec.lastLatency,
			LastUpdated:  rec.lastUpdated,
			Unhealthy:    unhealthy,
		})
	}
	return stats
}

// Reset clears all records. Intended for tests.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*record)
}
