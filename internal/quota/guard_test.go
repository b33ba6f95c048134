package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGuard_PermitsByDefault(t *testing.T) {
	g := NewGuard()
	assert.True(t, g.Permits())
	assert.Equal(t, DefaultCooldown, g.Cooldown())
	assert.False(t, g.State().Exhausted)
}

func TestGuard_CooldownWindow(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(WithClock(clock.Now))

	resetAt := g.Trip()
	require.Equal(t, clock.Now().Add(5*time.Minute), resetAt)

	assert.False(t, g.Permits(), "denied immediately after trip")

	clock.Advance(4*time.Minute + 59*time.Second)
	assert.False(t, g.Permits(), "denied just before reset")

	clock.Advance(time.Second)
	assert.True(t, g.Permits(), "permitted exactly at reset")
	assert.False(t, g.State().Exhausted, "flag cleared by the permitting check")
}

func TestGuard_ReadAndResetClearsFlag(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(WithClock(clock.Now), WithCooldown(time.Minute))

	g.Trip()
	clock.Advance(2 * time.Minute)

	require.True(t, g.Permits())
	g.mu.Lock()
	exhausted := g.exhausted
	g.mu.Unlock()
	assert.False(t, exhausted)
}

func TestGuard_RetripExtendsWindow(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(WithClock(clock.Now), WithCooldown(time.Minute))

	g.Trip()
	clock.Advance(30 * time.Second)
	g.Trip()
	clock.Advance(45 * time.Second)

	assert.False(t, g.Permits(), "second trip restarts the cooldown")
	assert.Equal(t, int64(2), g.State().Trips)
}

func TestGuard_IgnoresNonPositiveCooldown(t *testing.T) {
	g := NewGuard(WithCooldown(0), WithCooldown(-time.Second))
	assert.Equal(t, DefaultCooldown, g.Cooldown())
}

func TestGuard_NilIsPermissive(t *testing.T) {
	var g *Guard
	assert.True(t, g.Permits())
	assert.True(t, g.Trip().IsZero())
	assert.Equal(t, State{}, g.State())
}

func TestGuard_ConcurrentAccess(t *testing.T) {
	g := NewGuard(WithCooldown(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.Permits()
		}()
		go func() {
			defer wg.Done()
			g.Trip()
		}()
	}
	wg.Wait()

	assert.False(t, g.Permits())
	assert.Equal(t, int64(50), g.State().Trips)
}
