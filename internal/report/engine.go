// Package report answers per-tenant report queries by combining live counts
// from the metrics source with persisted daily snapshots, and owns snapshot
// creation.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/tenant-reports/internal/lock"
	"github.com/vnmchuo/tenant-reports/internal/logger"
	"github.com/vnmchuo/tenant-reports/internal/pricing"
	"github.com/vnmchuo/tenant-reports/internal/snapshot"
	"github.com/vnmchuo/tenant-reports/internal/source"
	"github.com/vnmchuo/tenant-reports/internal/telemetry"
	"github.com/vnmchuo/tenant-reports/internal/tenant"
)

const (
	TriggerOnDemand = "on_demand"
	TriggerDaily    = "daily"
)

type Engine struct {
	source  source.Source
	store   snapshot.Store
	model   *pricing.Model
	locker  lock.Locker
	now     func() time.Time
	tracer  trace.Tracer
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocker replaces the default in-process per-tenant lock.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(src source.Source, store snapshot.Store, model *pricing.Model, opts ...Option) *Engine {
	e := &Engine{
		source: src,
		store:  store,
		model:  model,
		locker: lock.NewLocal(),
		now:    time.Now,
		tracer: otel.Tracer("tenant-reports/report"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// begin opens a span for op. The returned func records the outcome and wraps
// a non-nil error in *OpError.
func (e *Engine) begin(ctx context.Context, op, tenantID string, attrs ...attribute.KeyValue) (context.Context, func(error) error) {
	start := time.Now()
	attrs = append([]attribute.KeyValue{attribute.String("tenant_id", tenantID)}, attrs...)
	ctx, span := e.tracer.Start(ctx, "report."+op, trace.WithAttributes(attrs...))
	log := logger.FromContext(ctx, e.logger).With(zap.String("op", op), zap.String("tenant_id", tenantID))

	return ctx, func(err error) error {
		defer span.End()
		e.metrics.ObserveReport(op, start, err)
		if err == nil {
			log.Debug("report operation completed", zap.Duration("elapsed", time.Since(start)))
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("report operation failed", zap.Error(err))
		return &OpError{Op: op, TenantID: tenantID, Err: err}
	}
}

func validateTenant(tenantID string) error {
	if err := tenant.Validate(tenantID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTenant, err)
	}
	return nil
}

// window validates the tenant and day count before anything remote is touched.
func (e *Engine) window(tenantID string, days int) (Window, error) {
	if err := validateTenant(tenantID); err != nil {
		return Window{}, err
	}
	return NewWindow(tenantID, days, e.now())
}

// GetOrCreateCurrentSnapshot returns the tenant's latest snapshot, creating
// one from live counters when none exists yet.
func (e *Engine) GetOrCreateCurrentSnapshot(ctx context.Context, tenantID string) (_ *snapshot.Snapshot, err error) {
	ctx, end := e.begin(ctx, "GetOrCreateCurrentSnapshot", tenantID)
	defer func() { err = end(err) }()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	return e.latestOrCreate(ctx, tenantID)
}

// CreateSnapshot always persists a new snapshot. It is the daily job's entry
// point.
func (e *Engine) CreateSnapshot(ctx context.Context, tenantID string) (_ *snapshot.Snapshot, err error) {
	ctx, end := e.begin(ctx, "CreateSnapshot", tenantID)
	defer func() { err = end(err) }()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	held, release, err := e.locker.Lock(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	return e.create(held, tenantID, TriggerDaily)
}

func (e *Engine) latestOrCreate(ctx context.Context, tenantID string) (*snapshot.Snapshot, error) {
	latest, err := e.store.Latest(ctx, tenantID)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, snapshot.ErrNotFound) {
		return nil, err
	}

	held, release, err := e.locker.Lock(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Another caller may have created it while we waited.
	latest, err = e.store.Latest(held, tenantID)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, snapshot.ErrNotFound) {
		return nil, err
	}

	return e.create(held, tenantID, TriggerOnDemand)
}

// create fetches every counter a snapshot carries. Any failed fetch fails the
// whole snapshot; nothing is defaulted to zero.
func (e *Engine) create(ctx context.Context, tenantID, trigger string) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{TenantID: tenantID}

	fetches := []struct {
		name string
		dst  *int64
		get  func(ctx context.Context, tenantID string) (int64, error)
	}{
		{"total users", &snap.TotalUsers, e.source.TotalUsersCreated},
		{"active users", &snap.ActiveUsers, func(ctx context.Context, tenantID string) (int64, error) {
			return e.source.ActiveUsers(ctx, tenantID, ActiveUserWindowDays)
		}},
		{"total trips", &snap.TotalTrips, e.source.TotalTripsCreated},
		{"total media", &snap.TotalMedia, e.source.TotalMediaUploaded},
		{"storage bytes", &snap.TotalStorageBytes, e.source.TotalStorageBytes},
		{"likes", &snap.TotalLikes, e.source.TotalLikes},
		{"comments", &snap.TotalComments, e.source.TotalComments},
		{"api calls", &snap.TotalAPICalls, e.source.TotalAPICalls},
	}
	for _, f := range fetches {
		v, err := f.get(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", f.name, err)
		}
		*f.dst = v
	}

	snap.SnapshotAt = e.now()
	snap.CalculatedCost = e.model.Cost(snap.TotalUsers, snap.TotalStorageBytes, snap.TotalAPICalls)

	// A lost lock lease cancels ctx; another holder may be writing by now.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("snapshot aborted before save: %w", context.Cause(ctx))
	}
	saved, err := e.store.Save(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	e.metrics.SnapshotCreated(trigger)
	logger.FromContext(ctx, e.logger).Info("snapshot created",
		zap.String("tenant_id", tenantID),
		zap.String("trigger", trigger),
		zap.Int64("snapshot_id", saved.ID),
		zap.Float64("cost", saved.CalculatedCost),
	)
	return saved, nil
}

// latestOrNil is Latest with "no snapshot yet" mapped to nil.
func (e *Engine) latestOrNil(ctx context.Context, tenantID string) (*snapshot.Snapshot, error) {
	s, err := e.store.Latest(ctx, tenantID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

func (e *Engine) baseline(ctx context.Context, tenantID string, before time.Time) (*snapshot.Snapshot, error) {
	s, err := e.store.LatestBefore(ctx, tenantID, before)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, nil
	}
	return s, err
}
