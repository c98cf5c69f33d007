package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/vnmchuo/tenant-reports/config"
	"github.com/vnmchuo/tenant-reports/internal/lock"
	"github.com/vnmchuo/tenant-reports/internal/logger"
	"github.com/vnmchuo/tenant-reports/internal/pricing"
	"github.com/vnmchuo/tenant-reports/internal/report"
	"github.com/vnmchuo/tenant-reports/internal/resilience"
	"github.com/vnmchuo/tenant-reports/internal/snapshot"
	"github.com/vnmchuo/tenant-reports/internal/source"
	"github.com/vnmchuo/tenant-reports/internal/telemetry"
)

const snapshotLockPrefix = "lock:snapshot:"

// runtime holds the connections shared by the commands. Close releases
// whatever was opened, in reverse order.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	pool   *pgxpool.Pool
	rdb    *redis.Client
	conn   *grpc.ClientConn
	store  *snapshot.PostgresStore
	model  *pricing.Model
	engine *report.Engine

	closers []func()
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log, err := logger.NewForEnvironment(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		metrics:  telemetry.NewMetrics(registry),
	}
	rt.closers = append(rt.closers, func() { _ = rt.logger.Sync() })

	model, err := pricing.NewModel(cfg.Pricing())
	if err != nil {
		return nil, err
	}
	rt.model = model
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func (rt *runtime) connectPostgres(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, rt.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	rt.logger.Info("PostgreSQL connected")

	rt.pool = pool
	rt.store = snapshot.NewPostgresStore(pool)
	return nil
}

func (rt *runtime) connectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{Addr: rt.cfg.RedisAddr})
	rt.closers = append(rt.closers, func() { _ = rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	rt.logger.Info("Redis connected")

	rt.rdb = rdb
	return nil
}

func (rt *runtime) resilienceConfig() resilience.Config {
	c := rt.cfg
	return resilience.Config{
		CallTimeout:             c.SourceCallTimeout,
		RetryMax:                c.SourceRetryMax,
		RetryInitialBackoff:     c.SourceRetryInitialBackoff,
		RetryMaxBackoff:         c.SourceRetryMaxBackoff,
		BreakerFailureRatio:     c.BreakerFailureRatio,
		BreakerMinRequests:      c.BreakerMinRequests,
		BreakerWindow:           c.BreakerWindow,
		BreakerOpenTimeout:      c.BreakerOpenTimeout,
		BreakerHalfOpenRequests: c.BreakerHalfOpenRequests,
	}
}

// buildEngine wires the metrics source, the store and the Redis lock into a
// report engine. Postgres and Redis must be connected first.
func (rt *runtime) buildEngine() error {
	conn, err := source.Dial(rt.cfg.MetricsSourceAddr)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, func() { _ = conn.Close() })
	rt.conn = conn

	policy, err := resilience.NewPolicy("metrics-source", rt.resilienceConfig(), source.Retryable, rt.logger, rt.metrics)
	if err != nil {
		return err
	}
	src := source.NewResilient(source.NewGRPCSource(conn), policy, rt.logger, rt.metrics)

	rt.engine = report.NewEngine(src, rt.store, rt.model,
		report.WithLocker(lock.NewRedis(rt.rdb, snapshotLockPrefix, rt.cfg.SnapshotLockTTL, rt.logger)),
		report.WithTracer(otel.Tracer(serviceName+"/report")),
		report.WithLogger(rt.logger),
		report.WithMetrics(rt.metrics),
	)
	rt.logger.Info("report engine ready", zap.String("metrics_source", rt.cfg.MetricsSourceAddr))
	return nil
}

// initTracer installs the global tracer provider.
func (rt *runtime) initTracer() error {
	shutdown, err := telemetry.InitTracer(serviceName, rt.cfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)
	return nil
}
