// Package quota implements the process-wide breaker that suppresses upstream
// calls after the provider reports quota exhaustion.
package quota

import (
	"sync"
	"time"
)

// DefaultCooldown is how long calls stay suppressed after a trip.
const DefaultCooldown = 5 * time.Minute

// State is a point-in-time snapshot of the guard.
type State struct {
	Exhausted bool      `json:"exhausted"`
	ResetAt   time.Time `json:"reset_at"`
	Trips     int64     `json:"trips"`
}

// Guard tracks whether the upstream API key is known to be rate limited.
// A single Guard is shared by every resolver because quota exhaustion is
// global to the key. Safe for concurrent use.
type Guard struct {
	mu        sync.Mutex
	exhausted bool
	resetAt   time.Time
	trips     int64
	cooldown  time.Duration
	now       func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithCooldown overrides the suppression window. Non-positive values are ignored.
func WithCooldown(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithClock injects a time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard creates a guard in the permitting state.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Permits reports whether an upstream call may be attempted.
// It returns false only while a trip is active; once the reset time has
// passed the exhausted flag is cleared as a side effect.
func (g *Guard) Permits() bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.exhausted && g.now().Before(g.resetAt) {
		return false
	}
	g.exhausted = false
	return true
}

// Trip marks the quota as exhausted until now + cooldown.
func (g *Guard) Trip() time.Time {
	if g == nil {
		return time.Time{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exhausted = true
	g.resetAt = g.now().Add(g.cooldown)
	g.trips++
	return g.resetAt
}

// State returns a snapshot without clearing an expired trip.
func (g *Guard) State() State {
	if g == nil {
		return State{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	return State{
		Exhausted: g.exhausted && g.now().Before(g.resetAt),
		ResetAt:   g.resetAt,
		Trips:     g.trips,
	}
}

// Cooldown returns the configured suppression window.
func (g *Guard) Cooldown() time.Duration {
	if g == nil {
		return 0
	}
	return g.cooldown
}
