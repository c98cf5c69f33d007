package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter caps report requests per tenant per minute. It wraps
// github.com/vnmchuo/ratelimiter.
type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, requestsPerMinute int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(requestsPerMinute)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func key(tenantID string) string {
	return fmt.Sprintf("ratelimit:reports:tenant:%s", tenantID)
}

// Allow consumes one request from the tenant's budget.
func (l *Limiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	res, err := l.store.Allow(ctx, key(tenantID))
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit for tenant %s: %w", tenantID, err)
	}
	return res.Allowed, nil
}
