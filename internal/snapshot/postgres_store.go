package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const selectColumns = `id, tenant_id, metric_date, total_users, active_users, total_trips, total_media,
		total_storage_bytes, total_likes, total_comments, total_api_calls, calculated_cost, created_at`

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	err := row.Scan(
		&s.ID, &s.TenantID, &s.SnapshotAt, &s.TotalUsers, &s.ActiveUsers, &s.TotalTrips, &s.TotalMedia,
		&s.TotalStorageBytes, &s.TotalLikes, &s.TotalComments, &s.TotalAPICalls, &s.CalculatedCost, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *PostgresStore) Latest(ctx context.Context, tenantID string) (*Snapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM tenant_metrics
		WHERE tenant_id = $1
		ORDER BY metric_date DESC, created_at DESC, id DESC
		LIMIT 1
	`
	snap, err := scanSnapshot(s.db.QueryRow(ctx, query, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest snapshot: %w", ErrStoreFailure, err)
	}
	return snap, nil
}

func (s *PostgresStore) LatestBefore(ctx context.Context, tenantID string, before time.Time) (*Snapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM tenant_metrics
		WHERE tenant_id = $1 AND metric_date < $2
		ORDER BY metric_date DESC, created_at DESC, id DESC
		LIMIT 1
	`
	snap, err := scanSnapshot(s.db.QueryRow(ctx, query, tenantID, before))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get snapshot before %s: %w", ErrStoreFailure, before.Format(time.RFC3339), err)
	}
	return snap, nil
}

func (s *PostgresStore) InRange(ctx context.Context, tenantID string, start, end time.Time) ([]*Snapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM tenant_metrics
		WHERE tenant_id = $1 AND metric_date >= $2 AND metric_date < $3
		ORDER BY metric_date ASC, id ASC
	`
	rows, err := s.db.Query(ctx, query, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query snapshots: %w", ErrStoreFailure, err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan snapshot: %w", ErrStoreFailure, err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating snapshots: %w", ErrStoreFailure, err)
	}

	return snaps, nil
}

func (s *PostgresStore) SumCostSince(ctx context.Context, tenantID string, start time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(calculated_cost), 0)
		FROM tenant_metrics
		WHERE tenant_id = $1 AND metric_date >= $2
	`
	var total float64
	if err := s.db.QueryRow(ctx, query, tenantID, start).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: failed to sum cost: %w", ErrStoreFailure, err)
	}

	return total, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	if snap.ID != 0 {
		return nil, fmt.Errorf("%w: id %d", ErrAlreadyPersisted, snap.ID)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tenant_metrics (tenant_id, metric_date, total_users, active_users, total_trips, total_media,
			total_storage_bytes, total_likes, total_comments, total_api_calls, calculated_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	saved := *snap
	err := s.db.QueryRow(ctx, query,
		snap.TenantID, snap.SnapshotAt, snap.TotalUsers, snap.ActiveUsers, snap.TotalTrips, snap.TotalMedia,
		snap.TotalStorageBytes, snap.TotalLikes, snap.TotalComments, snap.TotalAPICalls, snap.CalculatedCost,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save snapshot: %w", ErrStoreFailure, err)
	}

	return &saved, nil
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT tenant_id FROM tenant_metrics ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list tenants: %w", ErrStoreFailure, err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan tenant: %w", ErrStoreFailure, err)
		}
		tenants = append(tenants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating tenants: %w", ErrStoreFailure, err)
	}
	return tenants, nil
}

var _ Store = (*PostgresStore)(nil)
