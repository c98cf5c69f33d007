package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/tenant-reports/internal/pricing"
	"github.com/vnmchuo/tenant-reports/internal/snapshot"
	"github.com/vnmchuo/tenant-reports/internal/snapshot/snapshottest"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newModel(t *testing.T) *pricing.Model {
	t.Helper()
	m, err := pricing.NewModel(pricing.DefaultSchedule())
	require.NoError(t, err)
	return m
}

func TestSeedDemoTenant(t *testing.T) {
	store := snapshottest.NewMemoryStore()
	model := newModel(t)

	n, err := SeedDemoTenant(context.Background(), store, model, DemoTenantID, 5, now, nil)

	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all := store.All(DemoTenantID)
	require.Len(t, all, 5)
	assert.Equal(t, time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC), all[0].SnapshotAt)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), all[4].SnapshotAt)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].TotalUsers, all[i-1].TotalUsers)
		assert.Equal(t, model.Cost(all[i].TotalUsers, all[i].TotalStorageBytes, all[i].TotalAPICalls), all[i].CalculatedCost)
	}
}

func TestSeedDemoTenant_SkipsExistingTenant(t *testing.T) {
	store := snapshottest.NewMemoryStore()
	store.Put(snapshot.Snapshot{TenantID: "acme", SnapshotAt: now})

	n, err := SeedDemoTenant(context.Background(), store, newModel(t), "acme", 5, now, nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, store.All("acme"), 1)
}

func TestSeedDemoTenant_Rejects(t *testing.T) {
	store := snapshottest.NewMemoryStore()

	_, err := SeedDemoTenant(context.Background(), store, newModel(t), "", 5, now, nil)
	assert.Error(t, err)

	_, err = SeedDemoTenant(context.Background(), store, newModel(t), "acme", 0, now, nil)
	assert.Error(t, err)
	assert.Zero(t, store.Saves())
}

func TestSeedDemoTenant_StoreFailure(t *testing.T) {
	store := snapshottest.NewMemoryStore()
	store.Err = assert.AnError

	_, err := SeedDemoTenant(context.Background(), store, newModel(t), "acme", 3, now, nil)

	assert.ErrorIs(t, err, snapshot.ErrStoreFailure)
}
