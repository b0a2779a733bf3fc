package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	TransfersCreated prometheus.Counter
	TransferDuration prometheus.Histogram
	TransferAmount   prometheus.Histogram
	TransferErrors   *prometheus.CounterVec
	LockWaitDuration prometheus.Histogram

	// Account metrics
	AccountsCreated prometheus.Counter

	// Ledger metrics
	ConsistencyChecks *prometheus.CounterVec
	LedgerConsistent  prometheus.Gauge
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		TransfersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "banking_transfers_created_total",
			Help: "Total number of transfers committed",
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "banking_transfer_duration_seconds",
			Help:    "Duration of transfer operations",
			Buckets: prometheus.DefBuckets,
		}),
		TransferAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "banking_transfer_amount",
			Help:    "Transfer amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		TransferErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "banking_transfer_errors_total",
				Help: "Total number of transfer errors by type",
			},
			[]string{"error_type"},
		),
		LockWaitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "banking_lock_wait_duration_seconds",
			Help:    "Time spent waiting for the per-account lock pair",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),

		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "banking_accounts_created_total",
			Help: "Total number of accounts created",
		}),

		ConsistencyChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "banking_consistency_checks_total",
				Help: "Total ledger consistency checks by result",
			},
			[]string{"result"},
		),
		LedgerConsistent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "banking_ledger_consistent",
			Help: "Whether the last consistency check passed (1) or failed (0)",
		}),
	}
}
