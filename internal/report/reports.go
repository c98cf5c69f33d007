package report

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vnmchuo/tenant-reports/internal/pricing"
	"github.com/vnmchuo/tenant-reports/internal/snapshot"
)

// GetTenantReport returns the tenant summary for the last days days. User
// counts are live; trips, storage, API calls and cost come from the latest
// snapshot, which is created if the tenant has none.
func (e *Engine) GetTenantReport(ctx context.Context, tenantID string, days int) (_ *TenantReport, err error) {
	ctx, end := e.begin(ctx, "GetTenantReport", tenantID, attribute.Int("days", days))
	defer func() { err = end(err) }()

	w, err := e.window(tenantID, days)
	if err != nil {
		return nil, err
	}

	latest, err := e.latestOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	historical, err := e.store.InRange(ctx, tenantID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	totalCost, err := e.store.SumCostSince(ctx, tenantID, w.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to sum cost: %w", err)
	}

	users, err := e.source.TotalUsersCreated(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	active, err := e.source.ActiveUsers(ctx, tenantID, ActiveUserWindowDays)
	if err != nil {
		return nil, err
	}

	return &TenantReport{
		TenantID:       tenantID,
		TotalUsers:     users,
		ActiveUsers:    active,
		TotalTrips:     latest.TotalTrips,
		TotalStorageGB: pricing.StorageGB(latest.TotalStorageBytes),
		TotalAPICalls:  latest.TotalAPICalls,
		MonthlyCost:    latest.CalculatedCost,
		TotalCost:      totalCost,
		LastUpdated:    latest.SnapshotAt,
		Metrics:        tenantSeries(historical, latest),
	}, nil
}

// history is what the category reports read from the store. They never
// create snapshots.
type history struct {
	snaps    []*snapshot.Snapshot
	baseline *snapshot.Snapshot
	latest   *snapshot.Snapshot
}

func (e *Engine) history(ctx context.Context, w Window) (*history, error) {
	snaps, err := e.store.InRange(ctx, w.TenantID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	baseline, err := e.baseline(ctx, w.TenantID, w.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}
	latest, err := e.latestOrNil(ctx, w.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return &history{snaps: snaps, baseline: baseline, latest: latest}, nil
}

func (h *history) lastUpdated(now time.Time) time.Time {
	if h.latest == nil {
		return now
	}
	return h.latest.SnapshotAt
}

type rangeCount func(ctx context.Context, tenantID string, start, end time.Time) (int64, error)

// periodCounts returns the this-month and in-period figures for w.
func periodCounts(ctx context.Context, w Window, count rangeCount) (thisMonth, inPeriod int64, err error) {
	thisMonth, err = count(ctx, w.TenantID, w.MonthStart(), w.End)
	if err != nil {
		return 0, 0, err
	}
	inPeriod, err = count(ctx, w.TenantID, w.Start, w.End)
	if err != nil {
		return 0, 0, err
	}
	return thisMonth, inPeriod, nil
}

func (e *Engine) GetUserMetrics(ctx context.Context, tenantID string, days int) (_ *UserMetrics, err error) {
	ctx, end := e.begin(ctx, "GetUserMetrics", tenantID, attribute.Int("days", days))
	defer func() { err = end(err) }()

	w, err := e.window(tenantID, days)
	if err != nil {
		return nil, err
	}

	total, err := e.source.TotalUsersCreated(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	active, err := e.source.ActiveUsers(ctx, tenantID, ActiveUserWindowDays)
	if err != nil {
		return nil, err
	}
	thisMonth, inPeriod, err := periodCounts(ctx, w, e.source.NewUsersInRange)
	if err != nil {
		return nil, err
	}
	h, err := e.history(ctx, w)
	if err != nil {
		return nil, err
	}

	return &UserMetrics{
		TenantID:          tenantID,
		TotalUsers:        total,
		ActiveUsers:       active,
		NewUsersThisMonth: thisMonth,
		NewUsersInPeriod:  inPeriod,
		LastUpdated:       h.lastUpdated(w.End),
		Metrics:           userSeries(h.snaps, h.baseline),
	}, nil
}

func (e *Engine) GetTripMetrics(ctx context.Context, tenantID string, days int) (_ *TripMetrics, err error) {
	ctx, end := e.begin(ctx, "GetTripMetrics", tenantID, attribute.Int("days", days))
	defer func() { err = end(err) }()

	w, err := e.window(tenantID, days)
	if err != nil {
		return nil, err
	}

	total, err := e.source.TotalTripsCreated(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	thisMonth, inPeriod, err := periodCounts(ctx, w, e.source.TripsCreatedInRange)
	if err != nil {
		return nil, err
	}
	h, err := e.history(ctx, w)
	if err != nil {
		return nil, err
	}

	return &TripMetrics{
		TenantID:       tenantID,
		TotalTrips:     total,
		TripsThisMonth: thisMonth,
		TripsInPeriod:  inPeriod,
		LastUpdated:    h.lastUpdated(w.End),
		Metrics:        tripSeries(h.snaps, h.baseline),
	}, nil
}

func (e *Engine) GetMediaMetrics(ctx context.Context, tenantID string, days int) (_ *MediaMetrics, err error) {
	ctx, end := e.begin(ctx, "GetMediaMetrics", tenantID, attribute.Int("days", days))
	defer func() { err = end(err) }()

	w, err := e.window(tenantID, days)
	if err != nil {
		return nil, err
	}

	total, err := e.source.TotalMediaUploaded(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	thisMonth, inPeriod, err := periodCounts(ctx, w, e.source.MediaUploadedInRange)
	if err != nil {
		return nil, err
	}
	storageBytes, err := e.source.TotalStorageBytes(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	h, err := e.history(ctx, w)
	if err != nil {
		return nil, err
	}

	return &MediaMetrics{
		TenantID:       tenantID,
		TotalMedia:     total,
		MediaThisMonth: thisMonth,
		MediaInPeriod:  inPeriod,
		TotalStorageGB: pricing.StorageGB(storageBytes),
		LastUpdated:    h.lastUpdated(w.End),
		Metrics:        mediaSeries(h.snaps, h.baseline),
	}, nil
}

func (e *Engine) GetSocialMetrics(ctx context.Context, tenantID string, days int) (_ *SocialMetrics, err error) {
	ctx, end := e.begin(ctx, "GetSocialMetrics", tenantID, attribute.Int("days", days))
	defer func() { err = end(err) }()

	w, err := e.window(tenantID, days)
	if err != nil {
		return nil, err
	}

	likes, err := e.source.TotalLikes(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	comments, err := e.source.TotalComments(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	thisMonth, inPeriod, err := periodCounts(ctx, w, e.source.SocialInteractionsInRange)
	if err != nil {
		return nil, err
	}
	h, err := e.history(ctx, w)
	if err != nil {
		return nil, err
	}

	return &SocialMetrics{
		TenantID:              tenantID,
		TotalLikes:            likes,
		TotalComments:         comments,
		TotalInteractions:     likes + comments,
		InteractionsThisMonth: thisMonth,
		InteractionsInPeriod:  inPeriod,
		LastUpdated:           h.lastUpdated(w.End),
		Metrics:               socialSeries(h.snaps, h.baseline),
	}, nil
}

// GetPricing breaks the latest snapshot's cost down by component and adds the
// trailing twelve-month total.
func (e *Engine) GetPricing(ctx context.Context, tenantID string) (_ *Pricing, err error) {
	ctx, end := e.begin(ctx, "GetPricing", tenantID)
	defer func() { err = end(err) }()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	latest, err := e.latestOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	totalCost, err := e.store.SumCostSince(ctx, tenantID, e.now().AddDate(-1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to sum cost: %w", err)
	}

	return &Pricing{
		TenantID:           tenantID,
		Rates:              e.model.Schedule(),
		CurrentMonthlyCost: latest.CalculatedCost,
		TotalCost:          totalCost,
		Breakdown:          e.model.Breakdown(latest.TotalUsers, latest.TotalStorageBytes, latest.TotalAPICalls),
		LastUpdated:        latest.SnapshotAt,
	}, nil
}
