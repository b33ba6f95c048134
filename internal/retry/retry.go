// Package retry runs upstream operations behind the quota guard with bounded
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agrohub/internal/core"
	"agrohub/internal/observability"
	"agrohub/internal/quota"
)

// Defaults applied when a Config field is left at its zero value.
const (
	DefaultMaxRetries    = 1
	DefaultInitialDelay  = 2 * time.Second
	DefaultBackoffFactor = 2.0
)

// Config holds the retry policy.
type Config struct {
	// MaxRetries is the number of attempts after the first one. Zero disables retries.
	MaxRetries int
	// InitialDelay is the wait before the first retry
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after every retry (default: 2.0)
	BackoffFactor float64
}

// DefaultConfig returns the default retry policy: one retry after two seconds.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    DefaultMaxRetries,
		InitialDelay:  DefaultInitialDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs operations with the configured policy. It is safe for
// concurrent use; every call keeps its own retry budget.
type Executor struct {
	config Config
	guard  *quota.Guard
	hooks  *observability.Hooks
	sleep  SleepFunc
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHooks attaches observability hooks.
func WithHooks(h *observability.Hooks) Option {
	return func(e *Executor) { e.hooks = h }
}

// WithSleep replaces the timer-based wait. Used by tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithLogger sets the logger used for retry and quota events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor bound to guard. A nil guard never pauses.
func NewExecutor(cfg Config, guard *quota.Guard, opts ...Option) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	e := &Executor{
		config: cfg,
		guard:  guard,
		sleep:  sleepContext,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective policy.
func (e *Executor) Config() Config {
	return e.config
}

// Guard returns the quota guard the executor consults.
func (e *Executor) Guard() *quota.Guard {
	return e.guard
}

// Do runs op under the executor's policy.
//
// The guard is consulted before every attempt, retries included. A refusal
// returns a quota_paused error without invoking op. A rate-limit failure trips the guard
// and returns quota_exhausted immediately. Any other failure is retried after
// InitialDelay, doubling on every retry, until MaxRetries is spent; the last
// failure is then returned unchanged.
func Do[T any](ctx context.Context, e *Executor, operation string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	retries := e.config.MaxRetries
	delay := e.config.InitialDelay
	attempt := 0

	for {
		if !e.guard.Permits() {
			e.hooks.SafeQuotaPaused(ctx, operation)
			return zero, core.NewQuotaPausedError()
		}

		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if IsRateLimit(err) {
			resetAt := e.guard.Trip()
			e.hooks.SafeQuotaTrip(ctx, operation, resetAt)
			e.logger.WarnContext(ctx, "upstream quota exhausted, pausing calls",
				"operation", operation,
				"reset_at", resetAt,
				"error", err,
			)
			return zero, core.NewQuotaExhaustedError(err)
		}

		if retries <= 0 {
			return zero, err
		}

		e.hooks.SafeRetry(ctx, operation, attempt, delay, err)
		e.logger.DebugContext(ctx, "retrying upstream call",
			"operation", operation,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}

		retries--
		delay = time.Duration(float64(delay) * e.config.BackoffFactor)
	}
}

// IsRateLimit reports whether err signals upstream rate limiting: HTTP 429, a
// numeric code of 429 in the provider body, or a RESOURCE_EXHAUSTED status.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var svcErr *core.ServiceError
	if errors.As(err, &svcErr) {
		switch {
		case svcErr.Type == core.ErrorTypeRateLimit,
			svcErr.Type == core.ErrorTypeQuotaExhausted,
			svcErr.StatusCode == 429,
			svcErr.Code == 429,
			svcErr.Status == core.StatusResourceExhausted:
			return true
		}
	}
	return legacyRateLimitMessage(err)
}

// legacyRateLimitMessage catches errors that lost their structure on the way
// up, e.g. a provider SDK that only forwards the message text.
func legacyRateLimitMessage(err error) bool {
	return strings.Contains(err.Error(), core.StatusResourceExhausted)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
