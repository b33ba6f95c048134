package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrohub/internal/core"
	"agrohub/internal/observability"
	"agrohub/internal/quota"
)

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordedSleeps) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestExecutor(cfg Config, guard *quota.Guard) (*Executor, *recordedSleeps) {
	sleeps := &recordedSleeps{}
	return NewExecutor(cfg, guard, WithSleep(sleeps.sleep)), sleeps
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	exec, sleeps := newTestExecutor(DefaultConfig(), quota.NewGuard())

	calls := 0
	got, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps.all())
}

func TestDo_GuardDeniesWithoutCallingOperation(t *testing.T) {
	guard := quota.NewGuard()
	guard.Trip()

	var paused int
	hooks := &observability.Hooks{
		OnQuotaPaused: func(context.Context, string) { paused++ },
	}
	sleeps := &recordedSleeps{}
	exec := NewExecutor(DefaultConfig(), guard, WithSleep(sleeps.sleep), WithHooks(hooks))

	calls := 0
	_, err := Do(context.Background(), exec, "test", func(context.Context) (int, error) {
		calls++
		return 1, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuotaPaused)
	assert.Equal(t, 0, calls)
	assert.Empty(t, sleeps.all())
	assert.Equal(t, 1, paused)
}

func TestDo_RateLimitShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "http status 429",
			err:  core.ParseProviderError("gemini", http.StatusTooManyRequests, []byte(`{"error":{"message":"slow down"}}`), nil),
		},
		{
			name: "numeric code 429 in body",
			err:  &core.ServiceError{Type: core.ErrorTypeUpstream, StatusCode: http.StatusBadGateway, Code: 429},
		},
		{
			name: "resource exhausted status",
			err:  &core.ServiceError{Type: core.ErrorTypeUpstream, Status: core.StatusResourceExhausted},
		},
		{
			name: "wrapped structured error",
			err:  fmt.Errorf("generate: %w", core.NewRateLimitError("gemini", "quota")),
		},
		{
			name: "unstructured message with resource exhausted",
			err:  errors.New("rpc error: RESOURCE_EXHAUSTED: quota exceeded"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
			guard := quota.NewGuard(quota.WithClock(clock.Now))

			var tripped int
			hooks := &observability.Hooks{
				OnQuotaTrip: func(context.Context, string, time.Time) { tripped++ },
			}
			sleeps := &recordedSleeps{}
			exec := NewExecutor(Config{MaxRetries: 3, InitialDelay: time.Second}, guard,
				WithSleep(sleeps.sleep), WithHooks(hooks))

			calls := 0
			_, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
				calls++
				return "", tt.err
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrQuotaExhausted)
			assert.Equal(t, 1, calls, "rate limits must never be retried")
			assert.Empty(t, sleeps.all())
			assert.Equal(t, 1, tripped)

			state := guard.State()
			assert.True(t, state.Exhausted)
			assert.Equal(t, clock.Now().Add(quota.DefaultCooldown), state.ResetAt)
			assert.False(t, guard.Permits())
		})
	}
}

func TestDo_TripBlocksLaterCallsUntilCooldownPasses(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	guard := quota.NewGuard(quota.WithClock(clock.Now))
	exec, _ := newTestExecutor(DefaultConfig(), guard)

	_, err := Do(context.Background(), exec, "test", func(context.Context) (int, error) {
		return 0, core.NewRateLimitError("gemini", "quota")
	})
	require.ErrorIs(t, err, core.ErrQuotaExhausted)

	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}

	clock.Advance(4 * time.Minute)
	_, err = Do(context.Background(), exec, "test", op)
	assert.ErrorIs(t, err, core.ErrQuotaPaused)
	assert.Equal(t, 0, calls)

	clock.Advance(time.Minute)
	got, err := Do(context.Background(), exec, "test", op)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, calls)
}

func TestDo_TripDuringBackoffStopsRetry(t *testing.T) {
	guard := quota.NewGuard()
	var paused int
	hooks := &observability.Hooks{
		OnQuotaPaused: func(context.Context, string) { paused++ },
	}
	// Another caller trips the shared guard while this one is waiting to retry.
	exec := NewExecutor(DefaultConfig(), guard,
		WithHooks(hooks),
		WithSleep(func(context.Context, time.Duration) error {
			guard.Trip()
			return nil
		}),
	)

	calls := 0
	_, err := Do(context.Background(), exec, "weather", func(context.Context) (string, error) {
		calls++
		return "", errors.New("network down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuotaPaused)
	assert.Equal(t, 1, calls, "no retry is sent into a tripped key")
	assert.Equal(t, 1, paused)
}

func TestDo_BackoffBound(t *testing.T) {
	exec, sleeps := newTestExecutor(DefaultConfig(), quota.NewGuard())

	networkErr := errors.New("dial tcp: connection refused")
	calls := 0
	_, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		calls++
		return "", networkErr
	})

	require.Error(t, err)
	assert.Same(t, networkErr, err, "the original error is returned after retries are spent")
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps.all())
}

func TestDo_DelayDoublesEachRetry(t *testing.T) {
	exec, sleeps := newTestExecutor(Config{MaxRetries: 3, InitialDelay: 500 * time.Millisecond}, quota.NewGuard())

	calls := 0
	_, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		calls++
		return "", core.NewUpstreamError("gemini", "bad gateway", nil)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
	}, sleeps.all())
}

func TestDo_RecoversOnRetry(t *testing.T) {
	var retries []int
	hooks := &observability.Hooks{
		OnRetry: func(_ context.Context, _ string, attempt int, _ time.Duration, _ error) {
			retries = append(retries, attempt)
		},
	}
	sleeps := &recordedSleeps{}
	exec := NewExecutor(DefaultConfig(), quota.NewGuard(), WithSleep(sleeps.sleep), WithHooks(hooks))

	calls := 0
	got, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("temporary")
		}
		return "second time lucky", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "second time lucky", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, retries)
}

func TestDo_ZeroRetries(t *testing.T) {
	exec, sleeps := newTestExecutor(Config{MaxRetries: 0, InitialDelay: time.Second}, quota.NewGuard())

	calls := 0
	_, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps.all())
}

func TestDo_CanceledContextAbortsWait(t *testing.T) {
	exec := NewExecutor(Config{MaxRetries: 2, InitialDelay: time.Hour}, quota.NewGuard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opErr := errors.New("boom")
	calls := 0
	start := time.Now()
	_, err := Do(ctx, exec, "test", func(context.Context) (string, error) {
		calls++
		return "", opErr
	})

	assert.Same(t, opErr, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDo_NilGuardNeverPauses(t *testing.T) {
	exec, _ := newTestExecutor(DefaultConfig(), nil)

	_, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		return "", core.NewRateLimitError("gemini", "quota")
	})
	require.ErrorIs(t, err, core.ErrQuotaExhausted)

	got, err := Do(context.Background(), exec, "test", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestNewExecutor_NormalizesConfig(t *testing.T) {
	exec := NewExecutor(Config{MaxRetries: -1, InitialDelay: -time.Second}, nil)

	cfg := exec.Config()
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.InitialDelay)
	assert.Equal(t, DefaultBackoffFactor, cfg.BackoffFactor)
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit type", core.NewRateLimitError("gemini", "x"), true},
		{"status code 429", &core.ServiceError{Type: core.ErrorTypeUpstream, StatusCode: 429}, true},
		{"body code 429", &core.ServiceError{Type: core.ErrorTypeUpstream, Code: 429}, true},
		{"resource exhausted status", &core.ServiceError{Status: core.StatusResourceExhausted}, true},
		{"legacy message", errors.New("RESOURCE_EXHAUSTED"), true},
		{"server error", core.NewUpstreamError("gemini", "internal", nil), false},
		{"bare 429 in text is not trusted", errors.New("order 4291 failed"), false},
		{"plain network error", errors.New("connection reset by peer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimit(tt.err))
		})
	}
}
