// Package snapshottest provides an in-memory snapshot.Store with the same
// ordering and bound semantics as the Postgres store.
package snapshottest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vnmchuo/tenant-reports/internal/snapshot"
)

type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []*snapshot.Snapshot
	now    func() time.Time

	// Err, when set, is returned (wrapped in ErrStoreFailure) by every call.
	Err   error
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// WithClock sets the clock used for CreatedAt.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// Saves returns how many snapshots were persisted.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// All returns every stored snapshot for tenantID in insertion order.
func (m *MemoryStore) All(tenantID string) []*snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*snapshot.Snapshot
	for _, s := range m.rows {
		if s.TenantID == tenantID {
			c := *s
			out = append(out, &c)
		}
	}
	return out
}

func (m *MemoryStore) fail(op string) error {
	if m.Err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", snapshot.ErrStoreFailure, op, m.Err)
}

// newer reports whether a sorts after b in "latest" order.
func newer(a, b *snapshot.Snapshot) bool {
	if !a.SnapshotAt.Equal(b.SnapshotAt) {
		return a.SnapshotAt.After(b.SnapshotAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (m *MemoryStore) latest(tenantID string, keep func(*snapshot.Snapshot) bool) (*snapshot.Snapshot, error) {
	var best *snapshot.Snapshot
	for _, s := range m.rows {
		if s.TenantID != tenantID || !keep(s) {
			continue
		}
		if best == nil || newer(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil, snapshot.ErrNotFound
	}
	c := *best
	return &c, nil
}

func (m *MemoryStore) Latest(_ context.Context, tenantID string) (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("latest"); err != nil {
		return nil, err
	}
	return m.latest(tenantID, func(*snapshot.Snapshot) bool { return true })
}

func (m *MemoryStore) LatestBefore(_ context.Context, tenantID string, before time.Time) (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("latest before"); err != nil {
		return nil, err
	}
	return m.latest(tenantID, func(s *snapshot.Snapshot) bool { return s.SnapshotAt.Before(before) })
}

func (m *MemoryStore) InRange(_ context.Context, tenantID string, start, end time.Time) ([]*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("in range"); err != nil {
		return nil, err
	}

	var out []*snapshot.Snapshot
	for _, s := range m.rows {
		if s.TenantID != tenantID || s.SnapshotAt.Before(start) || !s.SnapshotAt.Before(end) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SnapshotAt.Equal(out[j].SnapshotAt) {
			return out[i].SnapshotAt.Before(out[j].SnapshotAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SumCostSince(_ context.Context, tenantID string, start time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("sum cost"); err != nil {
		return 0, err
	}

	var total float64
	for _, s := range m.rows {
		if s.TenantID == tenantID && !s.SnapshotAt.Before(start) {
			total += s.CalculatedCost
		}
	}
	return total, nil
}

func (m *MemoryStore) Save(_ context.Context, s *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if s.ID != 0 {
		return nil, fmt.Errorf("%w: id %d", snapshot.ErrAlreadyPersisted, s.ID)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("save"); err != nil {
		return nil, err
	}

	m.nextID++
	saved := *s
	saved.ID = m.nextID
	saved.CreatedAt = m.now()
	m.rows = append(m.rows, &saved)
	m.saves++

	c := saved
	return &c, nil
}

// Put stores s as-is, bypassing ID assignment checks. Used to seed fixtures
// with explicit timestamps.
func (m *MemoryStore) Put(s snapshot.Snapshot) *snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if s.ID == 0 {
		s.ID = m.nextID
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.SnapshotAt
	}
	m.rows = append(m.rows, &s)
	c := s
	return &c
}

func (m *MemoryStore) ListTenants(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list tenants"); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	for _, s := range m.rows {
		if _, ok := seen[s.TenantID]; ok {
			continue
		}
		seen[s.TenantID] = struct{}{}
		out = append(out, s.TenantID)
	}
	sort.Strings(out)
	return out, nil
}

var _ snapshot.Store = (*MemoryStore)(nil)
