// Package telemetry records the outcome of every dispatch attempt,
// primary or fallback, success or failure.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Attempt is one logged dispatch outcome.
type Attempt struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	LatencyMs int64     `json:"latency_ms"`
	Success   bool      `json:"success"`
	Fallback  bool      `json:"fallback"`
	TraceID   string    `json:"trace_id"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Sink persists attempts to durable storage. Persistence is
// fire-and-forget: a sink failure must never fail the request.
type Sink interface {
	Persist(ctx context.Context, attempt Attempt) error
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Sink       Sink
	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Recorder buffers attempts in memory and exports counters. Safe for
// concurrent use from any number of in-flight requests.
type Recorder struct {
	mu       sync.Mutex
	attempts []Attempt

	sink   Sink
	logger *zap.Logger

	attemptsTotal *prometheus.CounterVec
	fallbackTotal prometheus.Counter
	latency       *prometheus.HistogramVec
}

// NewRecorder creates a recorder and registers its metrics.
func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		sink:   opts.Sink,
		logger: opts.Logger,
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_dispatch_attempts_total",
			Help: "Dispatch attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptgate_fallback_total",
			Help: "Dispatches served by a fallback provider.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptgate_dispatch_latency_seconds",
			Help:    "Dispatch latency by provider.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
	}

	opts.Registerer.MustRegister(r.attemptsTotal, r.fallbackTotal, r.latency)
	return r
}

// NewTraceID returns a fresh id correlating all attempts of one request.
func NewTraceID() string {
	return uuid.NewString()
}

// Record appends the attempt, updates metrics, and forwards it to the
// durable sink without blocking the request.
func (r *Recorder) Record(attempt Attempt) {
	if attempt.At.IsZero() {
		attempt.At = time.Now().UTC()
	}

	r.mu.Lock()
	r.attempts = append(r.attempts, attempt)
	r.mu.Unlock()

	outcome := "failure"
	if attempt.Success {
		outcome = "success"
	}
	r.attemptsTotal.WithLabelValues(attempt.Provider, outcome).Inc()
	r.latency.WithLabelValues(attempt.Provider).Observe(float64(attempt.LatencyMs) / 1000)
	if attempt.Fallback && attempt.Success {
		r.fallbackTotal.Inc()
	}

	if r.sink != nil {
		go func(a Attempt) {
			if err := r.sink.Persist(context.Background(), a); err != nil {
				r.logger.Warn("telemetry sink persist failed",
					zap.String("trace_id", a.TraceID),
					zap.Error(err),
				)
			}
		}(attempt)
	}
}

// Attempts returns a copy of the buffered attempts in record order.
func (r *Recorder) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// Reset clears the buffer. Intended for tests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = nil
}
