// Package resilience wraps remote calls in a circuit breaker and a bounded
// retry loop. The policy is an explicit value so it can be configured per
// endpoint group and tested without a network.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/vnmchuo/tenant-reports/internal/telemetry"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// breakerBuckets is how many buckets one BreakerWindow is split into.
const breakerBuckets = 10

type Config struct {
	// CallTimeout bounds every single attempt.
	CallTimeout time.Duration

	// RetryMax is the number of retries after the first attempt.
	RetryMax            int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	// The breaker trips once BreakerMinRequests calls were seen in the last
	// BreakerWindow and at least BreakerFailureRatio of them failed. The window
	// rolls in breakerBuckets steps.
	BreakerFailureRatio     float64
	BreakerMinRequests      uint32
	BreakerWindow           time.Duration
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenRequests uint32
}

func DefaultConfig() Config {
	return Config{
		CallTimeout:             5 * time.Second,
		RetryMax:                3,
		RetryInitialBackoff:     200 * time.Millisecond,
		RetryMaxBackoff:         2 * time.Second,
		BreakerFailureRatio:     0.5,
		BreakerMinRequests:      10,
		BreakerWindow:           60 * time.Second,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenRequests: 3,
	}
}

func (c Config) Validate() error {
	switch {
	case c.CallTimeout <= 0:
		return errors.New("call timeout must be positive")
	case c.RetryMax < 0:
		return errors.New("retry max must not be negative")
	case c.RetryInitialBackoff <= 0 || c.RetryMaxBackoff < c.RetryInitialBackoff:
		return errors.New("retry backoff must be positive and max >= initial")
	case c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1:
		return errors.New("breaker failure ratio must be in (0, 1]")
	case c.BreakerWindow < breakerBuckets:
		return errors.New("breaker window must be positive")
	case c.BreakerMinRequests == 0:
		return errors.New("breaker min requests must be positive")
	case c.BreakerOpenTimeout <= 0:
		return errors.New("breaker open timeout must be positive")
	case c.BreakerHalfOpenRequests == 0:
		return errors.New("breaker half-open requests must be positive")
	}
	return nil
}

// RetryError is returned once the retry budget is spent. Err is the last
// failure seen.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Policy is safe for concurrent use; one Policy is shared by all calls to
// the same endpoint group.
type Policy struct {
	name      string
	cfg       Config
	breaker   *gobreaker.CircuitBreaker[struct{}]
	retryable func(error) bool
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

// NewPolicy builds a policy for one endpoint group. retryable decides which
// failures are transient; the others are returned immediately and are not
// counted against the breaker.
func NewPolicy(name string, cfg Config, retryable func(error) bool, logger *zap.Logger, metrics *telemetry.Metrics) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resilience config for %s: %w", name, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Policy{
		name:      name,
		cfg:       cfg,
		retryable: retryable,
		logger:    logger.With(zap.String("breaker", name)),
		metrics:   metrics,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.BreakerHalfOpenRequests,
		Interval:     cfg.BreakerWindow,
		BucketPeriod: cfg.BreakerWindow / breakerBuckets,
		Timeout:      cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			p.metrics.BreakerState(name, int(to))
		},
	})
	return p, nil
}

func (p *Policy) Name() string { return p.name }

func (p *Policy) State() gobreaker.State { return p.breaker.State() }

// Do runs fn until it succeeds, fails permanently, the breaker rejects it, or
// the retry budget is exhausted. fn receives a context bounded by CallTimeout.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.cfg.RetryInitialBackoff
	eb.MaxInterval = p.cfg.RetryMaxBackoff
	eb.MaxElapsedTime = 0
	bkoff := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.cfg.RetryMax)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bkoff, func(err error, next time.Duration) {
		p.metrics.SourceRetry(op)
		p.logger.Debug("retrying remote call",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) || !p.retryable(err) {
		return err
	}
	return &RetryError{Op: op, Attempts: attempts, Err: err}
}

func (p *Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
		return struct{}{}, fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, p.name)
	}
	return err
}
