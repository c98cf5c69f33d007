// Package job runs the daily all-tenant snapshot.
package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vnmchuo/tenant-reports/internal/snapshot"
)

type SnapshotCreator interface {
	CreateSnapshot(ctx context.Context, tenantID string) (*snapshot.Snapshot, error)
}

type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// Lister enumerates tenants from a configured list plus every tenant the
// store already holds snapshots for.
type Lister struct {
	configured []string
	store      TenantLister
}

func NewLister(configured []string, store TenantLister) *Lister {
	return &Lister{configured: configured, store: store}
}

func (l *Lister) ListTenants(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(id string) {
		if id = strings.TrimSpace(id); id != "" {
			seen[id] = struct{}{}
		}
	}

	for _, id := range l.configured {
		add(id)
	}
	if l.store != nil {
		stored, err := l.store.ListTenants(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored tenants: %w", err)
		}
		for _, id := range stored {
			add(id)
		}
	}

	tenants := make([]string, 0, len(seen))
	for id := range seen {
		tenants = append(tenants, id)
	}
	sort.Strings(tenants)
	return tenants, nil
}

type Summary struct {
	Tenants   int
	Succeeded int
	Failed    []string
	Started   time.Time
	Finished  time.Time
}

// DailySnapshot forces a new snapshot for every listed tenant.
type DailySnapshot struct {
	creator SnapshotCreator
	lister  TenantLister
	timeout time.Duration
	logger  *zap.Logger
}

// NewDailySnapshot builds the job. timeout bounds each tenant; zero means no
// bound beyond the caller's context.
func NewDailySnapshot(creator SnapshotCreator, lister TenantLister, timeout time.Duration, logger *zap.Logger) *DailySnapshot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailySnapshot{creator: creator, lister: lister, timeout: timeout, logger: logger}
}

// Run snapshots every tenant. A failing tenant does not stop the run; all
// failures are returned joined.
func (j *DailySnapshot) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Started: time.Now()}

	tenants, err := j.lister.ListTenants(ctx)
	if err != nil {
		summary.Finished = time.Now()
		return summary, err
	}
	summary.Tenants = len(tenants)
	j.logger.Info("daily snapshot run started", zap.Int("tenants", len(tenants)))

	var errs []error
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := j.snapshot(ctx, tenantID); err != nil {
			summary.Failed = append(summary.Failed, tenantID)
			errs = append(errs, err)
			j.logger.Error("daily snapshot failed", zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}
		summary.Succeeded++
	}

	summary.Finished = time.Now()
	j.logger.Info("daily snapshot run finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Strings("failed", summary.Failed),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)),
	)
	return summary, errors.Join(errs...)
}

func (j *DailySnapshot) snapshot(ctx context.Context, tenantID string) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	_, err := j.creator.CreateSnapshot(ctx, tenantID)
	return err
}
