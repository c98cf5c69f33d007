// Package lock serialises snapshot creation per tenant. Local covers a single
// process; Redis covers several replicas sharing one store.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Locker acquires an exclusive lock on key. Work done under the lock must use
// the returned context: it is cancelled once the lock can no longer be
// guaranteed, or on release. The release func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (held context.Context, release func(), err error)
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Entries are dropped once no goroutine
// holds or waits on them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			<-e.sem
			l.unref(key, e)
		})
	}, nil
}

func (l *Local) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// held is the number of keys currently tracked.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ Locker = (*Local)(nil)
