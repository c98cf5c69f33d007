package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs n goroutines that each take the lock on key and checks that no
// two of them are ever inside the critical section together.
func exercise(t *testing.T, l Locker, key string, n int) {
	t.Helper()
	var inside, maxInside, done int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			cur := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if cur <= m || atomic.CompareAndSwapInt32(&maxInside, m, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			atomic.AddInt32(&done, 1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(n), done)
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	exercise(t, l, "acme", 20)
	assert.Zero(t, l.held(), "idle keys must be dropped")
}

func TestLocal_KeysAreIndependent(t *testing.T) {
	l := NewLocal()
	_, releaseA, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, releaseB, err := l.Lock(ctx, "globex")
	require.NoError(t, err)
	releaseB()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	_, release, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = l.Lock(ctx, "acme")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Zero(t, l.held())
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedis(client, "reports:lock:", ttl, nil)
	l.pollEvery = time.Millisecond
	return l, mr
}

func TestRedis_MutualExclusion(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	exercise(t, l, "acme", 10)
	assert.False(t, mr.Exists("reports:lock:acme"))
}

func TestRedis_ContextCancelledWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	_, release, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	defer release()
	assert.True(t, mr.Exists("reports:lock:acme"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = l.Lock(ctx, "acme")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedis_ExpiredLeaseIsNotReleasedByOldOwner(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	_, releaseOld, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, releaseNew, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	newToken, err := mr.Get("reports:lock:acme")
	require.NoError(t, err)

	releaseOld()
	got, err := mr.Get("reports:lock:acme")
	require.NoError(t, err)
	assert.Equal(t, newToken, got, "stale owner must not delete the new lease")

	releaseNew()
	assert.False(t, mr.Exists("reports:lock:acme"))
}

func TestRedis_ConnectionFailure(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	mr.Close()

	_, _, err := l.Lock(context.Background(), "acme")
	assert.Error(t, err)
}

func TestLocal_HeldContextFollowsCaller(t *testing.T) {
	l := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	held, release, err := l.Lock(ctx, "acme")
	require.NoError(t, err)
	defer release()

	require.NoError(t, held.Err())
	cancel()
	assert.ErrorIs(t, held.Err(), context.Canceled)
}

func TestRedis_LeaseRenewedWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, 300*time.Millisecond)
	held, release, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	defer release()

	// Each step waits for at least one renewal, then moves the Redis clock by
	// less than the TTL. Together the steps cover several TTLs.
	for i := 0; i < 4; i++ {
		time.Sleep(150 * time.Millisecond)
		mr.FastForward(200 * time.Millisecond)
	}

	assert.True(t, mr.Exists("reports:lock:acme"))
	assert.NoError(t, held.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = l.Lock(ctx, "acme")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedis_LostLeaseCancelsHeldContext(t *testing.T) {
	l, mr := newRedisLocker(t, 300*time.Millisecond)
	held, release, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	defer release()

	mr.FastForward(time.Second)
	require.False(t, mr.Exists("reports:lock:acme"))

	select {
	case <-held.Done():
	case <-time.After(time.Second):
		t.Fatal("held context was not cancelled after the lease expired")
	}
	assert.ErrorIs(t, context.Cause(held), ErrLeaseLost)
}

func TestRedis_ReleaseCancelsHeldContext(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	held, release, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)

	release()

	assert.ErrorIs(t, held.Err(), context.Canceled)
	assert.False(t, mr.Exists("reports:lock:acme"))
}
