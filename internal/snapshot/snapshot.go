package snapshot

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	// ErrStoreFailure wraps every read or write failure of the backing store.
	ErrStoreFailure = errors.New("snapshot store failure")
	// ErrAlreadyPersisted is returned by Save for a snapshot that already has an ID.
	ErrAlreadyPersisted = errors.New("snapshot already persisted")
)

// Snapshot is an immutable record of a tenant's cumulative counters at
// SnapshotAt. CalculatedCost is fixed at creation time.
type Snapshot struct {
	ID                int64
	TenantID          string
	SnapshotAt        time.Time
	TotalUsers        int64
	ActiveUsers       int64
	TotalTrips        int64
	TotalMedia        int64
	TotalStorageBytes int64
	TotalLikes        int64
	TotalComments     int64
	TotalAPICalls     int64
	CalculatedCost    float64
	CreatedAt         time.Time
}

// Interactions is likes plus comments.
func (s *Snapshot) Interactions() int64 {
	return s.TotalLikes + s.TotalComments
}

// Validate checks the counters a store must never persist.
func (s *Snapshot) Validate() error {
	switch {
	case s.TenantID == "":
		return errors.New("snapshot has no tenant")
	case s.SnapshotAt.IsZero():
		return errors.New("snapshot has no timestamp")
	case s.TotalUsers < 0, s.ActiveUsers < 0, s.TotalTrips < 0, s.TotalMedia < 0,
		s.TotalStorageBytes < 0, s.TotalLikes < 0, s.TotalComments < 0, s.TotalAPICalls < 0:
		return errors.New("snapshot counters must not be negative")
	case s.CalculatedCost < 0:
		return errors.New("snapshot cost must not be negative")
	}
	return nil
}

// Store is append-only: there is no update or delete.
type Store interface {
	// Latest returns the snapshot with the greatest SnapshotAt, ties broken by
	// CreatedAt then ID, or ErrNotFound.
	Latest(ctx context.Context, tenantID string) (*Snapshot, error)
	// LatestBefore is Latest restricted to SnapshotAt < before.
	LatestBefore(ctx context.Context, tenantID string, before time.Time) (*Snapshot, error)
	// InRange returns snapshots with start <= SnapshotAt < end, ascending.
	InRange(ctx context.Context, tenantID string, start, end time.Time) ([]*Snapshot, error)
	// SumCostSince sums CalculatedCost for SnapshotAt >= start; 0 when there are none.
	SumCostSince(ctx context.Context, tenantID string, start time.Time) (float64, error)
	// Save persists s and returns a copy carrying the assigned ID and CreatedAt.
	Save(ctx context.Context, s *Snapshot) (*Snapshot, error)
	// ListTenants returns every tenant with at least one snapshot, sorted.
	ListTenants(ctx context.Context) ([]string, error)
}
