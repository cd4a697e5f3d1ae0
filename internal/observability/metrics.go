// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Update metrics
	RecordsFetched    *prometheus.CounterVec
	EntriesAppended   *prometheus.CounterVec
	DuplicatesSkipped *prometheus.CounterVec
	MalformedRecords  *prometheus.CounterVec
	WindowFailures    *prometheus.CounterVec

	// Compile metrics
	MovementsAppended prometheus.Counter
	PriceWarnings     prometheus.Counter

	// Reconstruction metrics
	NegativeBalanceWarnings prometheus.Counter

	// Market data metrics
	CandlesInserted *prometheus.CounterVec

	// Pipeline metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulUpdate  *prometheus.GaugeVec
	LastSuccessfulCompile prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "exchange_ledger"
	}

	return &Metrics{
		RecordsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "records_fetched_total",
			Help:      "Total number of raw provider records fetched by category",
		}, []string{"category"}),
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "entries_appended_total",
			Help:      "Total number of ledger entries appended by category",
		}, []string{"category"}),
		DuplicatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate entries skipped on append",
		}, []string{"category"}),
		MalformedRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "malformed_records_total",
			Help:      "Total number of raw records rejected as malformed",
		}, []string{"category"}),
		WindowFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "window_failures_total",
			Help:      "Total number of request windows that failed after retries",
		}, []string{"category"}),

		MovementsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "movements_appended_total",
			Help:      "Total number of canonical movements appended to the ledger",
		}),
		PriceWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "price_warnings_total",
			Help:      "Total number of valuation fields left unpriced during compile",
		}),

		NegativeBalanceWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holdings",
			Name:      "negative_balance_warnings_total",
			Help:      "Total number of negative reconstructed balances detected",
		}),

		CandlesInserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "candles_inserted_total",
			Help:      "Total number of candles inserted by symbol",
		}, []string{"symbol"}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		LastSuccessfulUpdate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_update_timestamp",
			Help:      "Unix timestamp of the last successful update by category",
		}, []string{"category"}),
		LastSuccessfulCompile: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_compile_timestamp",
			Help:      "Unix timestamp of the last successful ledger compile",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
