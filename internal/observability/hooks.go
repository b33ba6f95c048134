// Package observability provides optional callbacks for metrics without
// coupling the resilience layer to a metrics backend.
package observability

import (
	"context"
	"time"
)

// Hooks is a set of optional callbacks. Every field may be nil; callers use the
// Safe* helpers so a nil *Hooks is also valid.
type Hooks struct {
	// OnUpstreamRequest is called before a provider request is sent.
	OnUpstreamRequest func(ctx context.Context, provider, model string)
	// OnUpstreamResponse is called after a provider call returns, successful or not.
	OnUpstreamResponse func(ctx context.Context, provider, model string, latency time.Duration, err error)
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(ctx context.Context, operation string, attempt int, delay time.Duration, err error)
	// OnQuotaTrip is called when a rate-limit response trips the quota guard.
	OnQuotaTrip func(ctx context.Context, operation string, resetAt time.Time)
	// OnQuotaPaused is called when the guard refuses a call.
	OnQuotaPaused func(ctx context.Context, operation string)
	// OnResolverOutcome is called once per resolver invocation.
	OnResolverOutcome func(ctx context.Context, resolver, source, reason string)
	// OnCacheLookup is called with hit, miss, corrupt or error.
	OnCacheLookup func(ctx context.Context, result string)
}

// SafeUpstreamRequest invokes OnUpstreamRequest if configured.
func (h *Hooks) SafeUpstreamRequest(ctx context.Context, provider, model string) {
	if h != nil && h.OnUpstreamRequest != nil {
		h.OnUpstreamRequest(ctx, provider, model)
	}
}

// SafeUpstreamResponse invokes OnUpstreamResponse if configured.
func (h *Hooks) SafeUpstreamResponse(ctx context.Context, provider, model string, latency time.Duration, err error) {
	if h != nil && h.OnUpstreamResponse != nil {
		h.OnUpstreamResponse(ctx, provider, model, latency, err)
	}
}

// SafeRetry invokes OnRetry if configured.
func (h *Hooks) SafeRetry(ctx context.Context, operation string, attempt int, delay time.Duration, err error) {
	if h != nil && h.OnRetry != nil {
		h.OnRetry(ctx, operation, attempt, delay, err)
	}
}

// SafeQuotaTrip invokes OnQuotaTrip if configured.
func (h *Hooks) SafeQuotaTrip(ctx context.Context, operation string, resetAt time.Time) {
	if h != nil && h.OnQuotaTrip != nil {
		h.OnQuotaTrip(ctx, operation, resetAt)
	}
}

// SafeQuotaPaused invokes OnQuotaPaused if configured.
func (h *Hooks) SafeQuotaPaused(ctx context.Context, operation string) {
	if h != nil && h.OnQuotaPaused != nil {
		h.OnQuotaPaused(ctx, operation)
	}
}

// SafeResolverOutcome invokes OnResolverOutcome if configured.
func (h *Hooks) SafeResolverOutcome(ctx context.Context, resolver, source, reason string) {
	if h != nil && h.OnResolverOutcome != nil {
		h.OnResolverOutcome(ctx, resolver, source, reason)
	}
}

// SafeCacheLookup invokes OnCacheLookup if configured.
func (h *Hooks) SafeCacheLookup(ctx context.Context, result string) {
	if h != nil && h.OnCacheLookup != nil {
		h.OnCacheLookup(ctx, result)
	}
}
