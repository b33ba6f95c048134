// Package advisor resolves location, price and weather advice through the
// upstream model. Every resolver is total: upstream, quota and validation
// failures all produce a fixed fallback value instead of an error.
package advisor

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"agrohub/internal/cache"
	"agrohub/internal/core"
	"agrohub/internal/observability"
	"agrohub/internal/retry"
)

// Source tells where a resolved value came from.
type Source string

const (
	SourceUpstream Source = "upstream"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Reason explains why a fallback was returned. Empty unless Source is fallback.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonQuotaPaused     Reason = "quota_paused"
	ReasonQuotaExhausted  Reason = "quota_exhausted"
	ReasonUpstreamError   Reason = "upstream_error"
	ReasonInvalidResponse Reason = "invalid_response"
)

// Result is a resolved value tagged with its provenance.
type Result[T any] struct {
	Value  T
	Source Source
	Reason Reason
	// Err is the failure behind a fallback, for logging only.
	Err error
}

// Degraded reports whether the value is a fallback.
func (r Result[T]) Degraded() bool {
	return r.Source == SourceFallback
}

// DefaultCacheNamespace prefixes location cache keys.
const DefaultCacheNamespace = "agrohub_loc_v2"

// Config holds resolver settings.
type Config struct {
	// Model is the upstream model identifier
	Model string
	// CacheNamespace prefixes location cache keys (default: agrohub_loc_v2)
	CacheNamespace string
}

// Service implements the three resolvers. Safe for concurrent use.
type Service struct {
	generator core.Generator
	executor  *retry.Executor
	cache     cache.Store
	model     string
	namespace string
	hooks     *observability.Hooks
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHooks attaches observability hooks.
func WithHooks(h *observability.Hooks) Option {
	return func(s *Service) { s.hooks = h }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service. A nil store disables the location cache.
func New(generator core.Generator, executor *retry.Executor, store cache.Store, cfg Config, opts ...Option) *Service {
	if cfg.CacheNamespace == "" {
		cfg.CacheNamespace = DefaultCacheNamespace
	}
	s := &Service{
		generator: generator,
		executor:  executor,
		cache:     store,
		model:     cfg.Model,
		namespace: cfg.CacheNamespace,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generate runs one structured call through the retry executor. The text is
// validated against schema inside the retried operation, so malformed model
// output is retried like any other upstream failure.
func (s *Service) generate(ctx context.Context, resolver, prompt string, schema *core.Schema) ([]byte, error) {
	return retry.Do(ctx, s.executor, resolver, func(ctx context.Context) ([]byte, error) {
		resp, err := s.generator.Generate(ctx, &core.GenerateRequest{
			Model:  s.model,
			Prompt: prompt,
			Schema: schema,
		})
		if err != nil {
			return nil, err
		}
		raw := []byte(resp.Text)
		if err := validate(raw, schema); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

// reasonFor maps a resolver failure onto its fallback reason.
func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, core.ErrQuotaPaused):
		return ReasonQuotaPaused
	case errors.Is(err, core.ErrQuotaExhausted):
		return ReasonQuotaExhausted
	case errors.Is(err, errInvalidResponse):
		return ReasonInvalidResponse
	default:
		return ReasonUpstreamError
	}
}

// fallback builds a fallback result and reports it. Quota refusals are
// expected while the guard is tripped and are logged below error level.
func fallback[T any](ctx context.Context, s *Service, resolver, prompt string, value T, err error) Result[T] {
	reason := reasonFor(err)
	attrs := []any{
		"resolver", resolver,
		"reason", string(reason),
		"prompt_hash", promptHash(prompt),
		"error", err,
	}
	if id := core.GetRequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	switch reason {
	case ReasonQuotaPaused, ReasonQuotaExhausted:
		s.logger.DebugContext(ctx, "serving fallback while quota is exhausted", attrs...)
	default:
		s.logger.ErrorContext(ctx, "resolver failed, serving fallback", attrs...)
	}

	s.hooks.SafeResolverOutcome(ctx, resolver, string(SourceFallback), string(reason))
	return Result[T]{Value: value, Source: SourceFallback, Reason: reason, Err: err}
}

func success[T any](ctx context.Context, s *Service, resolver string, source Source, value T) Result[T] {
	s.hooks.SafeResolverOutcome(ctx, resolver, string(source), string(ReasonNone))
	return Result[T]{Value: value, Source: source}
}

// promptHash fingerprints a prompt for logs without leaking user input.
func promptHash(prompt string) string {
	return strconv.FormatUint(xxhash.Sum64String(prompt), 16)
}
