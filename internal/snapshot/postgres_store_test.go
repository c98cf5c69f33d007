package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows serves fixed rows to Scan. Only the destination types used by the
// store are supported.
type fakeRows struct {
	rows    [][]any
	pos     int
	err     error
	scanErr error
	closed  bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return scanInto(r.rows[r.pos-1], dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *float64:
			*d = v.(float64)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

type call struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls    []call
	row      fakeRow
	rows     *fakeRows
	queryErr error
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls = append(db.calls, call{sql, args})
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return db.rows, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.calls = append(db.calls, call{sql, args})
	return db.row
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, call{sql, args})
	return pgconn.CommandTag{}, nil
}

var (
	t0 = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
)

func snapshotRow(id int64, at time.Time) []any {
	return []any{id, "acme", at, int64(10), int64(4), int64(7), int64(3),
		int64(5 << 30), int64(2), int64(1), int64(2000), 102.5, at.Add(time.Second)}
}

func TestPostgresStore_Latest(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: snapshotRow(9, t1)}}
	store := NewPostgresStore(db)

	got, err := store.Latest(context.Background(), "acme")

	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
	assert.Equal(t, t1, got.SnapshotAt)
	assert.Equal(t, int64(5<<30), got.TotalStorageBytes)
	assert.Equal(t, int64(3), got.Interactions())
	assert.Equal(t, 102.5, got.CalculatedCost)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "ORDER BY metric_date DESC, created_at DESC, id DESC")
	assert.Equal(t, []any{"acme"}, db.calls[0].args)
}

func TestPostgresStore_LatestNotFound(t *testing.T) {
	store := NewPostgresStore(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := store.Latest(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStoreFailure)

	_, err = store.LatestBefore(context.Background(), "acme", t1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_LatestFailure(t *testing.T) {
	driverErr := errors.New("connection reset")
	store := NewPostgresStore(&fakeDB{row: fakeRow{err: driverErr}})

	_, err := store.Latest(context.Background(), "acme")

	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, driverErr)
}

func TestPostgresStore_LatestBefore(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: snapshotRow(3, t0)}}
	store := NewPostgresStore(db)

	got, err := store.LatestBefore(context.Background(), "acme", t1)

	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Contains(t, db.calls[0].sql, "metric_date < $2")
	assert.Equal(t, []any{"acme", t1}, db.calls[0].args)
}

func TestPostgresStore_InRange(t *testing.T) {
	rows := &fakeRows{rows: [][]any{snapshotRow(1, t0), snapshotRow(2, t1)}}
	db := &fakeDB{rows: rows}
	store := NewPostgresStore(db)
	end := t1.Add(24 * time.Hour)

	got, err := store.InRange(context.Background(), "acme", t0, end)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
	assert.True(t, rows.closed)

	sql := db.calls[0].sql
	assert.Contains(t, sql, "metric_date >= $2 AND metric_date < $3")
	assert.Contains(t, sql, "ORDER BY metric_date ASC")
	assert.Equal(t, []any{"acme", t0, end}, db.calls[0].args)
}

func TestPostgresStore_InRangeFailures(t *testing.T) {
	tests := []struct {
		name string
		db   *fakeDB
	}{
		{"query", &fakeDB{queryErr: errors.New("timeout")}},
		{"scan", &fakeDB{rows: &fakeRows{rows: [][]any{snapshotRow(1, t0)}, scanErr: errors.New("bad column")}}},
		{"iterate", &fakeDB{rows: &fakeRows{err: errors.New("conn closed")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPostgresStore(tt.db).InRange(context.Background(), "acme", t0, t1)
			assert.ErrorIs(t, err, ErrStoreFailure)
		})
	}
}

func TestPostgresStore_SumCostSince(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{0.0}}}
	store := NewPostgresStore(db)

	got, err := store.SumCostSince(context.Background(), "acme", t0)

	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Contains(t, db.calls[0].sql, "COALESCE(SUM(calculated_cost), 0)")
	assert.Contains(t, db.calls[0].sql, "metric_date >= $2")
}

func TestPostgresStore_Save(t *testing.T) {
	created := t1.Add(time.Minute)
	db := &fakeDB{row: fakeRow{values: []any{int64(42), created}}}
	store := NewPostgresStore(db)
	in := &Snapshot{
		TenantID: "acme", SnapshotAt: t1, TotalUsers: 10, ActiveUsers: 4,
		TotalStorageBytes: 5 << 30, TotalAPICalls: 2000, CalculatedCost: 102.5,
	}

	got, err := store.Save(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, created, got.CreatedAt)
	assert.Zero(t, in.ID, "input must not be mutated")
	assert.True(t, strings.Contains(db.calls[0].sql, "RETURNING id, created_at"))
	assert.Len(t, db.calls[0].args, 11)
}

func TestPostgresStore_SaveRejects(t *testing.T) {
	db := &fakeDB{}
	store := NewPostgresStore(db)

	_, err := store.Save(context.Background(), &Snapshot{ID: 5, TenantID: "acme", SnapshotAt: t0})
	assert.ErrorIs(t, err, ErrAlreadyPersisted)

	_, err = store.Save(context.Background(), &Snapshot{TenantID: "acme", SnapshotAt: t0, TotalUsers: -1})
	assert.Error(t, err)

	_, err = store.Save(context.Background(), &Snapshot{SnapshotAt: t0})
	assert.Error(t, err)

	assert.Empty(t, db.calls)
}

func TestPostgresStore_ListTenants(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{rows: [][]any{{"acme"}, {"globex"}}}}

	got, err := NewPostgresStore(db).ListTenants(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, got)
	assert.Contains(t, db.calls[0].sql, "DISTINCT tenant_id")
}
