// Package seeder writes demo snapshot history for local development.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vnmchuo/tenant-reports/internal/pricing"
	"github.com/vnmchuo/tenant-reports/internal/snapshot"
	"github.com/vnmchuo/tenant-reports/internal/tenant"
)

const DemoTenantID = "demo-tenant"

// SeedDemoTenant writes one snapshot per day for the last days days, ending
// at today's midnight UTC, with steadily growing counters. A tenant that
// already has snapshots is left untouched and 0 is returned.
func SeedDemoTenant(ctx context.Context, store snapshot.Store, model *pricing.Model, tenantID string, days int, now time.Time, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}
	if days <= 0 {
		return 0, fmt.Errorf("days must be positive, got %d", days)
	}

	_, err := store.Latest(ctx, tenantID)
	switch {
	case err == nil:
		logger.Info("tenant already has snapshots, skipping", zap.String("tenant_id", tenantID))
		return 0, nil
	case !errors.Is(err, snapshot.ErrNotFound):
		return 0, fmt.Errorf("failed to check existing snapshots: %w", err)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	for i := 0; i < days; i++ {
		s := demoSnapshot(tenantID, int64(i), today.AddDate(0, 0, i-days+1))
		s.CalculatedCost = model.Cost(s.TotalUsers, s.TotalStorageBytes, s.TotalAPICalls)
		if _, err := store.Save(ctx, s); err != nil {
			return i, fmt.Errorf("failed to save demo snapshot %d: %w", i, err)
		}
	}

	logger.Info("demo snapshots created", zap.String("tenant_id", tenantID), zap.Int("days", days))
	return days, nil
}

func demoSnapshot(tenantID string, day int64, at time.Time) *snapshot.Snapshot {
	users := 20 + 3*day
	return &snapshot.Snapshot{
		TenantID:          tenantID,
		SnapshotAt:        at,
		TotalUsers:        users,
		ActiveUsers:       users * 6 / 10,
		TotalTrips:        50 + 12*day,
		TotalMedia:        30 + 5*day,
		TotalStorageBytes: (day + 2) * pricing.BytesPerGB / 2,
		TotalLikes:        100 + 25*day,
		TotalComments:     40 + 9*day,
		TotalAPICalls:     1000 + 350*day,
	}
}
