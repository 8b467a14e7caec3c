// Package metrics provides Prometheus metrics for the inventory service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
)

var (
	// Build engine metrics
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_builds_total",
			Help: "Board build attempts by result",
		},
		[]string{"result"},
	)

	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_build_duration_seconds",
			Help:    "Time from build request to commit or rejection",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)

	BoardsBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_boards_built_total",
			Help: "Board units produced by successful builds",
		},
	)

	PartsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_build_parts_consumed_total",
			Help: "Part units consumed by builds",
		},
	)

	// Ledger metrics
	LedgerTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_ledger_transactions_total",
			Help: "Ledger rows written by transaction type",
		},
		[]string{"type"},
	)

	LedgerUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_ledger_units_total",
			Help: "Absolute part units moved by transaction type",
		},
		[]string{"type"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

var _ ports.Metrics = Recorder{}

// Recorder forwards use-case events to the package collectors.
type Recorder struct{}

// NewRecorder returns the Prometheus-backed ports.Metrics.
func NewRecorder() Recorder { return Recorder{} }

func (Recorder) BuildFinished(result string, quantity int, elapsed time.Duration) {
	BuildsTotal.WithLabelValues(result).Inc()
	BuildDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	if result == "success" && quantity > 0 {
		BoardsBuilt.Add(float64(quantity))
	}
}

func (Recorder) PartsConsumed(units int) {
	if units > 0 {
		PartsConsumed.Add(float64(units))
	}
}

func (Recorder) LedgerWritten(txType string, units int) {
	if units < 0 {
		units = -units
	}
	LedgerTransactions.WithLabelValues(txType).Inc()
	LedgerUnits.WithLabelValues(txType).Add(float64(units))
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
