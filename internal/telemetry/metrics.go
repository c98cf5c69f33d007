package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can be built without instrumentation.
type Metrics struct {
	sourceCalls      *prometheus.CounterVec
	sourceRetries    *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	snapshotsCreated *prometheus.CounterVec
	reportDuration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sourceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenant_reports",
				Name:      "source_calls_total",
				Help:      "Calls made to the metrics source by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		sourceRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenant_reports",
				Name:      "source_retries_total",
				Help:      "Retried metrics source attempts by method.",
			},
			[]string{"method"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tenant_reports",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
		snapshotsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenant_reports",
				Name:      "snapshots_created_total",
				Help:      "Tenant metric snapshots persisted by trigger.",
			},
			[]string{"trigger"},
		),
		reportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tenant_reports",
				Name:      "report_duration_seconds",
				Help:      "Time spent assembling a report.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"report", "outcome"},
		),
	}

	reg.MustRegister(m.sourceCalls, m.sourceRetries, m.breakerState, m.snapshotsCreated, m.reportDuration)
	return m
}

func (m *Metrics) SourceCall(method, outcome string) {
	if m == nil {
		return
	}
	m.sourceCalls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) SourceRetry(method string) {
	if m == nil {
		return
	}
	m.sourceRetries.WithLabelValues(method).Inc()
}

func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) SnapshotCreated(trigger string) {
	if m == nil {
		return
	}
	m.snapshotsCreated.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ObserveReport(report string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reportDuration.WithLabelValues(report, outcome).Observe(time.Since(start).Seconds())
}
