package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const serviceName = "tenant-reports"

// NewRouter mounts the report routes, /healthz and /metrics. gatherer may be
// nil to omit /metrics.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestContext(log))
	r.Use(AccessLog(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/rest/v1/reports/tenant/{tenantId}", func(r chi.Router) {
		r.Use(h.RateLimit)
		r.Get("/", h.HandleTenantReport)
		r.Get("/users", h.HandleUserMetrics)
		r.Get("/trips", h.HandleTripMetrics)
		r.Get("/media", h.HandleMediaMetrics)
		r.Get("/social", h.HandleSocialMetrics)
		r.Get("/pricing", h.HandlePricing)
	})
	return r
}
