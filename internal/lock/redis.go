package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errLockHeld = errors.New("lock held by another owner")

// ErrLeaseLost is the cause of a held context that was cancelled because the
// lease expired or changed owner before release.
var ErrLeaseLost = errors.New("lock lease lost")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a lease lock built on SET NX PX. The lease is renewed every TTL/3
// while held, so a live holder keeps it however long its work takes and a
// holder that dies loses it after TTL.
type Redis struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	pollEvery  time.Duration
	renewEvery time.Duration
	logger     *zap.Logger
}

func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		pollEvery:  50 * time.Millisecond,
		renewEvery: max(ttl/3, time.Millisecond),
		logger:     logger,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	acquire := func() error {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to set lock %s: %w", redisKey, err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}
	if err := backoff.Retry(acquire, backoff.WithContext(backoff.NewConstantBackOff(r.pollEvery), ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("failed to acquire lock %s: %w", redisKey, ctxErr)
		}
		return nil, nil, err
	}

	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.keepAlive(held, cancel, stop, redisKey, token)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(context.Canceled)

			// The caller's context may already be cancelled; release on a fresh one.
			rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer rcancel()
			if err := releaseScript.Run(rctx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("failed to release lock", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive renews the lease until stop is closed. It cancels held once the
// lease is gone, or when renewals keep failing and the last good lease would
// run out before the next attempt.
func (r *Redis) keepAlive(held context.Context, cancel context.CancelCauseFunc, stop <-chan struct{}, redisKey, token string) {
	ticker := time.NewTicker(r.renewEvery)
	defer ticker.Stop()

	expires := time.Now().Add(r.ttl)
	for {
		select {
		case <-stop:
			return
		case <-held.Done():
			return
		case <-ticker.C:
		}

		rctx, rcancel := context.WithTimeout(context.Background(), r.renewEvery)
		renewed, err := renewScript.Run(rctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int64()
		rcancel()

		switch {
		case err == nil && renewed == 1:
			expires = time.Now().Add(r.ttl)
		case err == nil:
			r.logger.Error("lock lease lost", zap.String("key", redisKey))
			cancel(fmt.Errorf("%w: %s", ErrLeaseLost, redisKey))
			return
		case time.Until(expires) < r.renewEvery:
			r.logger.Error("lock lease expired while renewal failed", zap.String("key", redisKey), zap.Error(err))
			cancel(fmt.Errorf("%w: %s: %w", ErrLeaseLost, redisKey, err))
			return
		default:
			r.logger.Warn("failed to renew lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}

var _ Locker = (*Redis)(nil)
