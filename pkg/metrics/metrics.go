// Package metrics defines the Prometheus collectors updated by the data
// access layer. The host application serves them with promhttp.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one registerer.
type Metrics struct {
	// OperationsTotal counts delegate operations by model, operation and
	// outcome (ok, not_found, error).
	OperationsTotal *prometheus.CounterVec

	// OperationDuration measures delegate operations, eager loading
	// included.
	OperationDuration *prometheus.HistogramVec

	// RowsReturned counts rows scanned or affected per model.
	RowsReturned *prometheus.CounterVec

	// TransactionsTotal counts transactions by outcome (commit, rollback,
	// timeout).
	TransactionsTotal *prometheus.CounterVec

	// RawQueriesTotal counts queryRaw and executeRaw calls.
	RawQueriesTotal *prometheus.CounterVec
}

// New registers a fresh set of collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "setlistdb_operations_total",
			Help: "Total number of data access operations",
		}, []string{"model", "operation", "outcome"}),

		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "setlistdb_operation_duration_seconds",
			Help:    "Duration of data access operations in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"model", "operation"}),

		RowsReturned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "setlistdb_rows_total",
			Help: "Total number of rows returned or affected",
		}, []string{"model"}),

		TransactionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "setlistdb_transactions_total",
			Help: "Total number of transactions by outcome",
		}, []string{"outcome"}),

		RawQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "setlistdb_raw_queries_total",
			Help: "Total number of raw SQL statements",
		}, []string{"kind"}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the collectors registered with the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// ObserveOperation records one finished operation. A nil receiver is a
// no-op.
func (m *Metrics) ObserveOperation(model, operation, outcome string, d time.Duration, rows int64) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(model, operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(model, operation).Observe(d.Seconds())
	if rows > 0 {
		m.RowsReturned.WithLabelValues(model).Add(float64(rows))
	}
}

// ObserveTransaction records a transaction outcome.
func (m *Metrics) ObserveTransaction(outcome string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRaw records a raw statement of the given kind (query, execute).
func (m *Metrics) ObserveRaw(kind string) {
	if m == nil {
		return
	}
	m.RawQueriesTotal.WithLabelValues(kind).Inc()
}
