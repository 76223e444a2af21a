// Package router orchestrates signal extraction, provider selection,
// dispatch with bounded retry, health feedback, telemetry, and a single
// fallback hop into one generation surface.
package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arc-systems/promptgate/pkg/health"
	"github.com/arc-systems/promptgate/pkg/provider"
	"github.com/arc-systems/promptgate/pkg/registry"
	"github.com/arc-systems/promptgate/pkg/retry"
	"github.com/arc-systems/promptgate/pkg/signal"
	"github.com/arc-systems/promptgate/pkg/telemetry"
)

const instrumentationName = "github.com/arc-systems/promptgate/pkg/router"

// Request is one generation request.
type Request struct {
	Prompt       string
	History      []provider.Turn
	SystemPrompt string

	// Latency overrides the latency preference derived from the text.
	// Empty means infer it.
	Latency signal.Latency
}

// GenerationMeta is the result of a successful dispatch. Provider and
// Model identify the backend that actually produced Text, whether
// primary or fallback.
type GenerationMeta struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Options configures a Router.
type Options struct {
	DefaultProvider string
	Disallow        []string
	PreferenceOrder []string
	Retry           retry.Options

	Health    *health.Tracker
	Telemetry *telemetry.Recorder
	Logger    *zap.Logger
}

// Router dispatches generation requests across the configured
// providers. Each request runs independently; the only shared state is
// the health tracker and the telemetry recorder, both concurrency-safe.
type Router struct {
	providers map[string]provider.Provider
	registry  *registry.Registry
	planner   *Planner

	health    *health.Tracker
	telemetry *telemetry.Recorder

	defaultProvider string
	disallow        map[string]bool
	retryOpts       retry.Options

	logger *zap.Logger
	tracer trace.Tracer
}

// New creates a router over the given providers and card registry. The
// disallow set is computed once here: the operator-supplied list plus
// every cataloged provider without a constructed backend (missing
// credential). It never changes mid-process.
func New(providers map[string]provider.Provider, reg *registry.Registry, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Health == nil {
		opts.Health = health.NewTracker()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NewRecorder(telemetry.RecorderOptions{Logger: opts.Logger})
	}
	if opts.Retry.RetryIf == nil {
		opts.Retry.RetryIf = provider.IsTransient
	}

	disallow := make(map[string]bool)
	for _, name := range opts.Disallow {
		disallow[name] = true
	}
	for _, card := range reg.ListAvailable() {
		if _, ok := providers[card.Provider]; !ok {
			disallow[card.Provider] = true
		}
	}

	return &Router{
		providers:       providers,
		registry:        reg,
		planner:         NewPlanner(opts.PreferenceOrder, opts.Health),
		health:          opts.Health,
		telemetry:       opts.Telemetry,
		defaultProvider: opts.DefaultProvider,
		disallow:        disallow,
		retryOpts:       opts.Retry,
		logger:          opts.Logger,
		tracer:          otel.Tracer(instrumentationName),
	}
}

// Health returns the router's health tracker.
func (r *Router) Health() *health.Tracker {
	return r.health
}

// Telemetry returns the router's telemetry recorder.
func (r *Router) Telemetry() *telemetry.Recorder {
	return r.telemetry
}

// Disallowed reports whether a provider is excluded from selection.
func (r *Router) Disallowed(providerName string) bool {
	return r.disallow[providerName]
}

// GenerateWithMeta routes and dispatches the request, returning the
// text together with the provider/model that produced it. On primary
// exhaustion it reroutes to exactly one alternate provider; a fallback
// failure is surfaced as a FallbackError, never retried further.
func (r *Router) GenerateWithMeta(ctx context.Context, req Request) (*GenerationMeta, error) {
	ctx, span := r.tracer.Start(ctx, "router.generate_with_meta")
	defer span.End()

	traceID := telemetry.NewTraceID()
	sig := signal.Extract(req.Prompt, req.History, req.Latency)

	card := r.registry.SelectBest(sig, registry.Constraints{
		PreferProvider:    r.defaultProvider,
		DisallowProviders: r.disallow,
	})
	if card == nil {
		return nil, ErrNoProviderAvailable
	}
	span.SetAttributes(
		attribute.String("gen.provider", card.Provider),
		attribute.String("gen.model", card.Model),
	)

	primary := r.dispatchWithRetry(ctx, *card, req, traceID, false)
	if primary.err == nil {
		return primary.meta, nil
	}

	exhausted := &RetriesExhaustedError{Provider: card.Provider, Model: card.Model, Err: primary.err}

	alternate := r.planner.Plan(*card, r.registry.ListAvailable(), r.disallow)
	if alternate == nil {
		r.logger.Warn("no fallback candidate remains",
			zap.String("provider", card.Provider),
			zap.String("trace_id", traceID),
			zap.Error(primary.err),
		)
		return nil, exhausted
	}

	r.logger.Info("rerouting to fallback provider",
		zap.String("failed_provider", card.Provider),
		zap.String("fallback_provider", alternate.Provider),
		zap.String("fallback_model", alternate.Model),
		zap.String("trace_id", traceID),
	)
	span.SetAttributes(attribute.String("gen.fallback_provider", alternate.Provider))

	fallback := r.dispatchWithRetry(ctx, *alternate, req, traceID, true)
	if fallback.err == nil {
		return fallback.meta, nil
	}

	return nil, &FallbackError{Provider: alternate.Provider, Model: alternate.Model, Err: fallback.err}
}

// Generate is a convenience wrapper returning only the text.
func (r *Router) Generate(ctx context.Context, prompt string, history []provider.Turn, systemPrompt string) (string, error) {
	meta, err := r.GenerateWithMeta(ctx, Request{Prompt: prompt, History: history, SystemPrompt: systemPrompt})
	if err != nil {
		return "", err
	}
	return meta.Text, nil
}

// Stream returns the response as a single-element sequence containing
// the full text. True incremental streaming is a capability limit of
// the router, which treats a response as one atomic unit.
func (r *Router) Stream(ctx context.Context, prompt string, history []provider.Turn, systemPrompt string) (<-chan string, error) {
	text, err := r.Generate(ctx, prompt, history, systemPrompt)
	if err != nil {
		return nil, err
	}
	out := make(chan string, 1)
	out <- text
	close(out)
	return out, nil
}

// dispatchOutcome is the typed result of one dispatch stage, so the
// primary and fallback paths are enumerable instead of exception-like.
type dispatchOutcome struct {
	meta *GenerationMeta
	err  error
}

// dispatchWithRetry runs one dispatch stage against a single card:
// circuit check, retry loop, health update per attempt, one telemetry
// record per stage.
func (r *Router) dispatchWithRetry(ctx context.Context, card registry.Card, req Request, traceID string, isFallback bool) dispatchOutcome {
	prov, ok := r.providers[card.Provider]
	if !ok {
		return dispatchOutcome{err: &CredentialMissingError{Provider: card.Provider}}
	}

	// Circuit open: skip the network call and the retry delays, record
	// an immediate failure, and let the caller proceed to fallback.
	if r.health.IsUnhealthy(card.Provider) {
		err := &CircuitOpenError{Provider: card.Provider}
		r.telemetry.Record(telemetry.Attempt{
			Provider: card.Provider,
			Model:    card.Model,
			Success:  false,
			Fallback: isFallback,
			TraceID:  traceID,
			Error:    err.Error(),
		})
		return dispatchOutcome{err: err}
	}

	retryOpts := r.retryOpts
	retryOpts.Logger = r.logger
	retryOpts.OnRetry = func(err error, attempt int, delay time.Duration) {
		r.logger.Warn("dispatch attempt failed, retrying",
			zap.String("provider", card.Provider),
			zap.String("model", card.Model),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
	}
	executor := retry.NewExecutor(retryOpts)

	var text string
	var lastLatency time.Duration

	dispatch := func() error {
		attemptCtx, attemptSpan := r.tracer.Start(ctx, "router.dispatch",
			trace.WithAttributes(
				attribute.String("gen.provider", card.Provider),
				attribute.String("gen.model", card.Model),
				attribute.Bool("gen.fallback", isFallback),
			))
		defer attemptSpan.End()

		start := time.Now()
		out, err := prov.Generate(attemptCtx, provider.Request{
			Model:   card.Model,
			Prompt:  req.Prompt,
			System:  req.SystemPrompt,
			History: req.History,
		})
		lastLatency = time.Since(start)

		r.health.Update(card.Provider, card.Model, lastLatency, err == nil)
		if err != nil {
			attemptSpan.RecordError(err)
			return err
		}
		text = out
		return nil
	}

	err := executor.Do(ctx, dispatch)

	attempt := telemetry.Attempt{
		Provider:  card.Provider,
		Model:     card.Model,
		LatencyMs: lastLatency.Milliseconds(),
		Success:   err == nil,
		Fallback:  isFallback,
		TraceID:   traceID,
	}
	if err != nil {
		attempt.Error = err.Error()
	}
	r.telemetry.Record(attempt)

	if err != nil {
		return dispatchOutcome{err: err}
	}
	return dispatchOutcome{meta: &GenerationMeta{Text: text, Provider: card.Provider, Model: card.Model}}
}
