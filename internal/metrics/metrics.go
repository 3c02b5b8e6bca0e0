// Package metrics exposes Prometheus instrumentation for acquisition runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bobmcallan/dayk/internal/models"
)

const namespace = "dayk"

// Metrics holds the acquisition collectors. A nil *Metrics records nothing.
type Metrics struct {
	fetchResults    *prometheus.CounterVec
	fetchAttempts   *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	inflight        *prometheus.GaugeVec
	cooldowns       *prometheus.CounterVec
	manifestPersist *prometheus.CounterVec
	ledgerEntries   *prometheus.GaugeVec
	lastRun         *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: market, outcome (success, empty, cached, failed ...)
		fetchResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "results_total",
			Help:      "Final per-target fetch outcomes",
		}, []string{"market", "outcome"}),

		// Labels: market, result (ok, empty, transient, rate_limited, permanent)
		fetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Individual history fetch attempts",
		}, []string{"market", "result"}),

		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Wall time per target including jitter and backoff",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
		}, []string{"market"}),

		inflight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "inflight",
			Help:      "Targets currently being processed by workers",
		}, []string{"market"}),

		cooldowns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "cooldowns_total",
			Help:      "Batch cooldown pauses",
		}, []string{"market"}),

		// Labels: market, result (ok, error)
		manifestPersist: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "persists_total",
			Help:      "Manifest ledger persist operations",
		}, []string{"market", "result"}),

		ledgerEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "entries",
			Help:      "Ledger entries by status after the last run",
		}, []string{"market", "status"}),

		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last run for a market finished",
		}, []string{"market"}),
	}
}

// ObserveResult records a target's final outcome and how long it took.
func (m *Metrics) ObserveResult(market string, outcome models.FetchOutcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchResults.WithLabelValues(market, string(outcome)).Inc()
	if outcome != models.OutcomeCached && outcome != models.OutcomeAborted {
		m.fetchDuration.WithLabelValues(market).Observe(elapsed.Seconds())
	}
}

// ObserveAttempt records one fetch attempt. kind is empty for a successful attempt.
func (m *Metrics) ObserveAttempt(market string, kind models.FetchErrorKind) {
	if m == nil {
		return
	}
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	m.fetchAttempts.WithLabelValues(market, result).Inc()
}

// InflightAdd adjusts the in-flight gauge.
func (m *Metrics) InflightAdd(market string, delta float64) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(market).Add(delta)
}

// ObserveCooldown counts a batch cooldown pause.
func (m *Metrics) ObserveCooldown(market string) {
	if m == nil {
		return
	}
	m.cooldowns.WithLabelValues(market).Inc()
}

// ObservePersist counts a manifest persist.
func (m *Metrics) ObservePersist(market string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.manifestPersist.WithLabelValues(market, result).Inc()
}

// ObserveRun publishes the end-of-run ledger breakdown.
func (m *Metrics) ObserveRun(market string, stats models.RunStats, finished time.Time) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(market, string(models.StatusDone)).Set(float64(stats.Success))
	m.ledgerEntries.WithLabelValues(market, string(models.StatusPending)).Set(float64(stats.Pending))
	m.ledgerEntries.WithLabelValues(market, string(models.StatusEmpty)).Set(float64(stats.Empty))
	m.ledgerEntries.WithLabelValues(market, string(models.StatusFailed)).Set(float64(stats.Failed))
	m.lastRun.WithLabelValues(market).Set(float64(finished.Unix()))
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
