package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/vnmchuo/tenant-reports/internal/api"
	"github.com/vnmchuo/tenant-reports/internal/job"
	"github.com/vnmchuo/tenant-reports/pkg/ratelimit"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve report endpoints and run the daily snapshot schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Load config and logger
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.logger

	// 2. Init telemetry
	if err := rt.initTracer(); err != nil {
		return err
	}

	// 3. Connect PostgreSQL and Redis
	if err := rt.connectPostgres(ctx); err != nil {
		return err
	}
	if err := rt.connectRedis(ctx); err != nil {
		return err
	}

	// 4. Init metrics source and engine
	if err := rt.buildEngine(); err != nil {
		return err
	}

	// 5. Init rate limiter
	var limiter api.RateLimiter
	if rt.cfg.RateLimitRPM > 0 {
		limiter = ratelimit.NewLimiter(rt.rdb, rt.cfg.RateLimitRPM)
	}

	// 6. Init daily snapshot schedule
	var scheduler *job.Scheduler
	if rt.cfg.SnapshotJobEnabled {
		daily := job.NewDailySnapshot(rt.engine, job.NewLister(rt.cfg.SnapshotTenants, rt.store), rt.cfg.SnapshotTenantTimeout, log)
		scheduler, err = job.NewScheduler(rt.cfg.SnapshotCron, time.UTC, daily, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		log.Info("daily snapshot schedule started", zap.String("cron", rt.cfg.SnapshotCron))
	}

	// 7. Init HTTP router
	tracer := otel.GetTracerProvider().Tracer(serviceName)
	handler := api.NewHandler(rt.engine, limiter, tracer, log, rt.cfg.BreakerOpenTimeout)
	router := api.NewRouter(handler, rt.registry, log)

	// 8. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + rt.cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("tenant reports starting", zap.String("port", rt.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	log.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("forced shutdown: %w", err))
	}
	log.Info("server stopped")
	return errors.Join(errs...)
}
