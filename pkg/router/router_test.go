package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-systems/promptgate/pkg/health"
	"github.com/arc-systems/promptgate/pkg/provider"
	"github.com/arc-systems/promptgate/pkg/registry"
	"github.com/arc-systems/promptgate/pkg/retry"
	"github.com/arc-systems/promptgate/pkg/telemetry"
)

type fakeProvider struct {
	mu       sync.Mutex
	name     string
	response string
	failAll  bool
	calls    int
}

func (f *fakeProvider) Generate(_ context.Context, req provider.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return "", &provider.ProviderError{Provider: f.name, Status: 503, Err: errors.New("service unavailable")}
	}
	return f.response, nil
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Models() []string { return []string{"m"} }

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testRouter(providers map[string]provider.Provider, disallow []string, tracker *health.Tracker) (*Router, *telemetry.Recorder) {
	if tracker == nil {
		tracker = health.NewTracker()
	}
	recorder := telemetry.NewRecorder(telemetry.RecorderOptions{Registerer: prometheus.NewRegistry()})

	reg := registry.New([]registry.Card{
		{Provider: "alpha", Model: "a-1"},
		{Provider: "beta", Model: "b-1"},
	})

	r := New(providers, reg, Options{
		DefaultProvider: "alpha",
		Disallow:        disallow,
		PreferenceOrder: []string{"alpha", "beta"},
		Retry: retry.Options{
			Retries:  2,
			MinDelay: time.Millisecond,
			MaxDelay: 2 * time.Millisecond,
		},
		Health:    tracker,
		Telemetry: recorder,
	})
	return r, recorder
}

func TestGenerateHealthyPrimary(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", response: "hello from alpha"}
	beta := &fakeProvider{name: "beta", response: "hello from beta"}

	r, recorder := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": beta}, []string{"beta"}, nil)

	meta, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", meta.Provider)
	assert.Equal(t, "a-1", meta.Model)
	assert.Equal(t, "hello from alpha", meta.Text)
	assert.Zero(t, beta.Calls())

	attempts := recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "alpha", attempts[0].Provider)
	assert.True(t, attempts[0].Success)
	assert.False(t, attempts[0].Fallback)
	assert.NotEmpty(t, attempts[0].TraceID)
}

func TestGenerateFallsBackAfterExhaustion(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", failAll: true}
	beta := &fakeProvider{name: "beta", response: "hello from beta"}

	r, recorder := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": beta}, nil, nil)

	meta, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "beta", meta.Provider)
	assert.Equal(t, "hello from beta", meta.Text)

	// first attempt plus 2 retries against the same provider
	assert.Equal(t, 3, alpha.Calls())
	assert.Equal(t, 1, beta.Calls())

	attempts := recorder.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, "alpha", attempts[0].Provider)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, "beta", attempts[1].Provider)
	assert.True(t, attempts[1].Success)
	assert.True(t, attempts[1].Fallback)
	assert.Equal(t, attempts[0].TraceID, attempts[1].TraceID)
}

func TestGenerateFallbackFailureIsTerminal(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", failAll: true}
	beta := &fakeProvider{name: "beta", failAll: true}

	r, recorder := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": beta}, nil, nil)

	_, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)

	var fbErr *FallbackError
	require.ErrorAs(t, err, &fbErr)
	assert.Equal(t, "beta", fbErr.Provider)
	assert.Equal(t, "b-1", fbErr.Model)

	var provErr *provider.ProviderError
	assert.ErrorAs(t, err, &provErr)

	attempts := recorder.Attempts()
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Success)
	assert.False(t, attempts[1].Success)
}

func TestGenerateSkipsUnhealthyPrimary(t *testing.T) {
	tracker := health.NewTracker()
	for i := 0; i < 2; i++ {
		tracker.Update("alpha", "a-1", time.Millisecond, true)
	}
	for i := 0; i < 6; i++ {
		tracker.Update("alpha", "a-1", time.Millisecond, false)
	}
	require.True(t, tracker.IsUnhealthy("alpha"))

	// alpha would succeed if called; the open circuit must prevent that
	alpha := &fakeProvider{name: "alpha", response: "should not be used"}
	beta := &fakeProvider{name: "beta", response: "hello from beta"}

	r, recorder := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": beta}, nil, tracker)

	meta, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "beta", meta.Provider)
	assert.Zero(t, alpha.Calls())

	attempts := recorder.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, "alpha", attempts[0].Provider)
	assert.False(t, attempts[0].Success)
	assert.Contains(t, attempts[0].Error, "circuit open")
	assert.True(t, attempts[1].Success)
}

func TestGenerateNoProviderAvailable(t *testing.T) {
	r, _ := testRouter(map[string]provider.Provider{}, nil, nil)

	_, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestGenerateExhaustionWithoutCandidates(t *testing.T) {
	// beta has no constructed backend, so it lands in the disallow set
	// and the planner has nowhere to reroute.
	alpha := &fakeProvider{name: "alpha", failAll: true}

	r, recorder := testRouter(map[string]provider.Provider{"alpha": alpha}, nil, nil)
	assert.True(t, r.Disallowed("beta"))

	_, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "alpha", exhausted.Provider)

	attempts := recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
}

func TestGenerateUpdatesHealthPerAttempt(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", failAll: true}
	beta := &fakeProvider{name: "beta", response: "ok"}
	tracker := health.NewTracker()

	r, _ := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": beta}, nil, tracker)

	_, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)

	stats := tracker.Snapshot()
	byProvider := map[string]health.Stats{}
	for _, s := range stats {
		byProvider[s.Provider] = s
	}
	assert.Equal(t, int64(3), byProvider["alpha"].ErrorCount)
	assert.Equal(t, int64(1), byProvider["beta"].SuccessCount)
}

func TestGenerateConvenienceWrapper(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", response: "plain text"}

	r, _ := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": &fakeProvider{name: "beta"}}, nil, nil)

	text, err := r.Generate(context.Background(), "hi", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "plain text", text)
}

func TestStreamYieldsSingleElement(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", response: "whole response"}

	r, _ := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": &fakeProvider{name: "beta"}}, nil, nil)

	ch, err := r.Stream(context.Background(), "hi", nil, "")
	require.NoError(t, err)

	var chunks []string
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 1)
	assert.Equal(t, "whole response", chunks[0])
}

func TestConcurrentRequestsShareStateSafely(t *testing.T) {
	alpha := &fakeProvider{name: "alpha", response: "ok"}
	beta := &fakeProvider{name: "beta", response: "ok"}

	r, recorder := testRouter(map[string]provider.Provider{"alpha": alpha, "beta": beta}, nil, nil)

	const requests = 32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.GenerateWithMeta(context.Background(), Request{Prompt: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, recorder.Attempts(), requests)
	stats := r.Health().Snapshot()
	var total int64
	for _, s := range stats {
		total += s.SuccessCount
	}
	assert.Equal(t, int64(requests), total)
}
