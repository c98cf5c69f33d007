package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("connection reset")
	errPermanent = errors.New("not found")
)

func retryable(err error) bool {
	return errors.Is(err, errTransient) || errors.Is(err, context.DeadlineExceeded)
}

func testConfig() Config {
	return Config{
		CallTimeout:             50 * time.Millisecond,
		RetryMax:                3,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         2 * time.Millisecond,
		BreakerFailureRatio:     0.5,
		BreakerMinRequests:      100,
		BreakerWindow:           time.Minute,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenRequests: 1,
	}
}

func newTestPolicy(t *testing.T, cfg Config) *Policy {
	t.Helper()
	p, err := NewPolicy("test", cfg, retryable, nil, nil)
	require.NoError(t, err)
	return p
}

// failing returns a call that fails n times with err and then succeeds.
func failing(n int, err error, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	p := newTestPolicy(t, testConfig())

	calls := 0
	err := p.Do(context.Background(), "GetTotalLikes", failing(2, errTransient, &calls))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedBudgetReturnsRetryError(t *testing.T) {
	p := newTestPolicy(t, testConfig())

	calls := 0
	err := p.Do(context.Background(), "GetTotalLikes", failing(10, errTransient, &calls))

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 4, retryErr.Attempts)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, errTransient)
}

func TestDo_PermanentFailureIsNotRetried(t *testing.T) {
	p := newTestPolicy(t, testConfig())

	calls := 0
	err := p.Do(context.Background(), "GetTotalLikes", failing(10, errPermanent, &calls))

	assert.ErrorIs(t, err, errPermanent)
	var retryErr *RetryError
	assert.False(t, errors.As(err, &retryErr))
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeoutIsRetried(t *testing.T) {
	cfg := testConfig()
	cfg.CallTimeout = 5 * time.Millisecond
	cfg.RetryMax = 1
	p := newTestPolicy(t, cfg)

	calls := 0
	err := p.Do(context.Background(), "GetActiveUsers", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestDo_BreakerOpensAndFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.RetryMax = 0
	cfg.BreakerMinRequests = 4
	p := newTestPolicy(t, cfg)

	calls := 0
	call := failing(1000, errTransient, &calls)
	for i := 0; i < 4; i++ {
		_ = p.Do(context.Background(), "GetTotalUsersCreated", call)
	}
	require.Equal(t, gobreaker.StateOpen, p.State())

	before := calls
	err := p.Do(context.Background(), "GetTotalUsersCreated", call)

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, calls, "open breaker must not reach the remote")
}

func TestDo_BreakerWindowRollsAcrossBuckets(t *testing.T) {
	cfg := testConfig()
	cfg.RetryMax = 0
	cfg.BreakerMinRequests = 4
	cfg.BreakerFailureRatio = 1
	cfg.BreakerWindow = 100 * time.Millisecond
	p := newTestPolicy(t, cfg)

	calls := 0
	call := failing(1000, errTransient, &calls)

	// The burst straddles the first window boundary; a tumbling window would
	// have cleared the first three failures.
	time.Sleep(80 * time.Millisecond)
	for i := 0; i < 3; i++ {
		_ = p.Do(context.Background(), "GetTotalApiCalls", call)
	}
	require.Equal(t, gobreaker.StateClosed, p.State())

	time.Sleep(30 * time.Millisecond)
	_ = p.Do(context.Background(), "GetTotalApiCalls", call)

	assert.Equal(t, gobreaker.StateOpen, p.State())
	assert.Equal(t, 4, calls)
}

func TestDo_BreakerForgetsFailuresOutsideWindow(t *testing.T) {
	cfg := testConfig()
	cfg.RetryMax = 0
	cfg.BreakerMinRequests = 4
	cfg.BreakerFailureRatio = 1
	cfg.BreakerWindow = 50 * time.Millisecond
	p := newTestPolicy(t, cfg)

	calls := 0
	call := failing(1000, errTransient, &calls)
	for i := 0; i < 3; i++ {
		_ = p.Do(context.Background(), "GetTotalApiCalls", call)
	}

	time.Sleep(120 * time.Millisecond)
	_ = p.Do(context.Background(), "GetTotalApiCalls", call)

	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestDo_BreakerHalfOpensAfterTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RetryMax = 0
	cfg.BreakerMinRequests = 2
	cfg.BreakerOpenTimeout = 20 * time.Millisecond
	p := newTestPolicy(t, cfg)

	calls := 0
	for i := 0; i < 2; i++ {
		_ = p.Do(context.Background(), "GetTotalTripsCreated", failing(1000, errTransient, &calls))
	}
	require.Equal(t, gobreaker.StateOpen, p.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, gobreaker.StateHalfOpen, p.State())

	trials := 0
	err := p.Do(context.Background(), "GetTotalTripsCreated", failing(0, nil, &trials))
	require.NoError(t, err)
	assert.Equal(t, 1, trials)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestDo_PermanentFailuresDoNotTripBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerMinRequests = 2
	p := newTestPolicy(t, cfg)

	calls := 0
	for i := 0; i < 5; i++ {
		_ = p.Do(context.Background(), "GetTotalComments", failing(1000, errPermanent, &calls))
	}

	assert.Equal(t, gobreaker.StateClosed, p.State())
	assert.Equal(t, 5, calls)
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	cfg := testConfig()
	cfg.RetryInitialBackoff = time.Second
	cfg.RetryMaxBackoff = time.Second
	p := newTestPolicy(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, "GetTotalMediaUploaded", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.BreakerFailureRatio = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.BreakerWindow = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.RetryMax = -1
	assert.Error(t, bad.Validate())

	_, err := NewPolicy("bad", bad, retryable, nil, nil)
	assert.Error(t, err)
}
