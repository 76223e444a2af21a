// Package retry wraps a single dispatch call with bounded, delayed
// retries against the same target. It knows nothing about alternates;
// rerouting after exhaustion belongs to the caller.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetries  = 2
	defaultMinDelay = 300 * time.Millisecond
	defaultMaxDelay = 3000 * time.Millisecond
)

// Options configures an Executor.
type Options struct {
	// Retries is the number of additional attempts after the first
	// failure. Zero means use the default of 2; negative disables
	// retries entirely.
	Retries int

	// MinDelay and MaxDelay bound the inter-attempt delay.
	MinDelay time.Duration
	MaxDelay time.Duration

	// RetryIf decides whether an error is worth another attempt.
	// Nil retries every error.
	RetryIf func(error) bool

	// OnRetry is invoked before each delayed re-attempt.
	OnRetry func(err error, attempt int, delay time.Duration)

	Logger *zap.Logger
}

// Executor performs bounded retries with exponential backoff.
type Executor struct {
	retries  int
	minDelay time.Duration
	maxDelay time.Duration
	retryIf  func(error) bool
	onRetry  func(err error, attempt int, delay time.Duration)
	logger   *zap.Logger
}

// NewExecutor creates an executor, filling in defaults for zero options.
func NewExecutor(opts Options) *Executor {
	if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = defaultMinDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Executor{
		retries:  opts.Retries,
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		retryIf:  opts.RetryIf,
		onRetry:  opts.OnRetry,
		logger:   opts.Logger,
	}
}

// Do invokes fn, retrying on failure up to the configured budget. Each
// re-attempt is preceded by a delay within [MinDelay, MaxDelay]. The
// last error is returned after exhaustion.
func (e *Executor) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			delay := e.computeDelay(attempt)
			if e.onRetry != nil {
				e.onRetry(lastErr, attempt, delay)
			}
			e.logger.Debug("retrying dispatch",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", e.retries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if e.retryIf != nil && !e.retryIf(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// computeDelay doubles the minimum delay per attempt, capped at the
// maximum. Attempt numbers start at 1.
func (e *Executor) computeDelay(attempt int) time.Duration {
	delay := e.minDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.maxDelay {
			return e.maxDelay
		}
	}
	if delay > e.maxDelay {
		return e.maxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
