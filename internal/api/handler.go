// Package api exposes the report engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/tenant-reports/internal/logger"
	"github.com/vnmchuo/tenant-reports/internal/report"
)

// Reports is the query surface the handlers need; *report.Engine satisfies it.
type Reports interface {
	GetTenantReport(ctx context.Context, tenantID string, days int) (*report.TenantReport, error)
	GetUserMetrics(ctx context.Context, tenantID string, days int) (*report.UserMetrics, error)
	GetTripMetrics(ctx context.Context, tenantID string, days int) (*report.TripMetrics, error)
	GetMediaMetrics(ctx context.Context, tenantID string, days int) (*report.MediaMetrics, error)
	GetSocialMetrics(ctx context.Context, tenantID string, days int) (*report.SocialMetrics, error)
	GetPricing(ctx context.Context, tenantID string) (*report.Pricing, error)
}

// RateLimiter is satisfied by *ratelimit.Limiter.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string) (bool, error)
}

type Handler struct {
	reports    Reports
	limiter    RateLimiter
	tracer     trace.Tracer
	logger     *zap.Logger
	retryAfter time.Duration
}

// NewHandler builds the report handlers. limiter may be nil to disable rate
// limiting; retryAfter is advertised on 503 responses.
func NewHandler(reports Reports, limiter RateLimiter, tracer trace.Tracer, log *zap.Logger, retryAfter time.Duration) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if tracer == nil {
		tracer = otel.Tracer("tenant-reports/api")
	}
	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}
	return &Handler{
		reports:    reports,
		limiter:    limiter,
		tracer:     tracer,
		logger:     log,
		retryAfter: retryAfter,
	}
}

func parseDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return report.DefaultWindowDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: days must be an integer, got %q", report.ErrInvalidWindow, raw)
	}
	return days, nil
}

type fetchFunc func(ctx context.Context, tenantID string, days int) (any, error)

// serve runs one report request: parse, span, fetch, present.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, name string, windowed bool, fetch fetchFunc) {
	tenantID := chi.URLParam(r, "tenantId")

	days := 0
	if windowed {
		var err error
		if days, err = parseDays(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx, span := h.tracer.Start(r.Context(), "api."+name)
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("request_id", GetRequestID(ctx)),
	)
	if windowed {
		span.SetAttributes(attribute.Int("days", days))
	}

	body, err := fetch(ctx, tenantID, days)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		status, msg := statusFor(err)
		log := logger.FromContext(ctx, h.logger).With(zap.String("tenant_id", tenantID), zap.String("report", name))
		if status >= http.StatusInternalServerError {
			log.Error("report request failed", zap.Int("status", status), zap.Error(err))
		} else {
			log.Info("report request rejected", zap.Int("status", status), zap.Error(err))
		}
		if status == http.StatusServiceUnavailable {
			retryAfter(w, h.retryAfter)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) HandleTenantReport(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "tenant_report", true, func(ctx context.Context, tenantID string, days int) (any, error) {
		rep, err := h.reports.GetTenantReport(ctx, tenantID, days)
		if err != nil {
			return nil, err
		}
		return newTenantReportResponse(rep), nil
	})
}

func (h *Handler) HandleUserMetrics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "user_metrics", true, func(ctx context.Context, tenantID string, days int) (any, error) {
		m, err := h.reports.GetUserMetrics(ctx, tenantID, days)
		if err != nil {
			return nil, err
		}
		return newUserMetricsResponse(m), nil
	})
}

func (h *Handler) HandleTripMetrics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "trip_metrics", true, func(ctx context.Context, tenantID string, days int) (any, error) {
		m, err := h.reports.GetTripMetrics(ctx, tenantID, days)
		if err != nil {
			return nil, err
		}
		return newTripMetricsResponse(m), nil
	})
}

func (h *Handler) HandleMediaMetrics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "media_metrics", true, func(ctx context.Context, tenantID string, days int) (any, error) {
		m, err := h.reports.GetMediaMetrics(ctx, tenantID, days)
		if err != nil {
			return nil, err
		}
		return newMediaMetricsResponse(m), nil
	})
}

func (h *Handler) HandleSocialMetrics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "social_metrics", true, func(ctx context.Context, tenantID string, days int) (any, error) {
		m, err := h.reports.GetSocialMetrics(ctx, tenantID, days)
		if err != nil {
			return nil, err
		}
		return newSocialMetricsResponse(m), nil
	})
}

func (h *Handler) HandlePricing(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "pricing", false, func(ctx context.Context, tenantID string, _ int) (any, error) {
		p, err := h.reports.GetPricing(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return newPricingResponse(p), nil
	})
}

// RateLimit rejects requests once a tenant exhausts its per-minute budget.
// Limiter errors are treated as rejections.
func (h *Handler) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		tenantID := chi.URLParam(r, "tenantId")
		allowed, err := h.limiter.Allow(r.Context(), tenantID)
		if err != nil {
			logger.FromContext(r.Context(), h.logger).Error("rate limit check failed",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
		if err != nil || !allowed {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":       "rate limit exceeded",
				"retry_after": "60s",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
