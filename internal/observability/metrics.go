// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	RunPnlPct   *prometheus.GaugeVec

	// Simulation metrics
	TradesSimulated *prometheus.CounterVec
	SignalsDetected prometheus.Counter
	EntryRejections *prometheus.CounterVec

	// Validation metrics
	CandidatesEvaluated prometheus.Counter
	SafeForLive         *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a Metrics instance registered on reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "spot_risk_engine"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of engine runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"mode"}),
		RunPnlPct: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "last_pnl_percent",
			Help:      "PnL percent of the last full run per symbol",
		}, []string{"symbol"}),

		TradesSimulated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of simulated trades by exit reason",
		}, []string{"exit_reason"}),
		SignalsDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "signals_total",
			Help:      "Total number of volatility signals detected",
		}),
		EntryRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "entry_rejections_total",
			Help:      "Total number of rejected entry proposals by code",
		}, []string{"code"}),

		CandidatesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of grid candidates scored across folds",
		}),
		SafeForLive: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "top_candidates_total",
			Help:      "Total number of re-run top candidates by bootstrap verdict",
		}, []string{"safe_for_live"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a finished run.
func (m *Metrics) RecordRun(mode, status string, d time.Duration) {
	m.RunsTotal.WithLabelValues(mode, status).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(d.Seconds())
	if status == "ok" {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordSimulation records one engine result's counters.
func (m *Metrics) RecordSimulation(symbol string, pnlPct float64, signals int, exits map[string]int, rejections map[string]int) {
	m.RunPnlPct.WithLabelValues(symbol).Set(pnlPct)
	m.SignalsDetected.Add(float64(signals))
	for reason, n := range exits {
		m.TradesSimulated.WithLabelValues(reason).Add(float64(n))
	}
	for code, n := range rejections {
		m.EntryRejections.WithLabelValues(code).Add(float64(n))
	}
}

// RecordCandidates records scored grid candidates.
func (m *Metrics) RecordCandidates(n int) {
	m.CandidatesEvaluated.Add(float64(n))
}

// RecordTopCandidate records a re-run top candidate's bootstrap verdict.
func (m *Metrics) RecordTopCandidate(safe bool) {
	label := "false"
	if safe {
		label = "true"
	}
	m.SafeForLive.WithLabelValues(label).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
