package metrics

import (
	// Go Internal Packages
	"time"

	// External Packages
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	sessionsFailed    *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	sweepRuns         *prometheus.CounterVec
	topupRecords      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations partitioned by operation and result code.",
			},
			[]string{"operation", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wallet",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency of ledger operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sessionsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet",
				Subsystem: "payments",
				Name:      "sessions_failed_total",
				Help:      "Payment sessions moved to FAILED, by reason.",
			},
			[]string{"reason"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet",
				Subsystem: "payments",
				Name:      "token_notifications_total",
				Help:      "Confirmation token deliveries by outcome.",
			},
			[]string{"result"},
		),
		sweepRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet",
				Subsystem: "payments",
				Name:      "expiry_sweeps_total",
				Help:      "Expiry sweeper runs by result.",
			},
			[]string{"result"},
		),
		topupRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet",
				Subsystem: "topups",
				Name:      "records_total",
				Help:      "Top-up stream records by outcome.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveOperation(operation, result string, started time.Time) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) SessionFailed(reason string) {
	if m == nil {
		return
	}
	m.sessionsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) SweepRun(result string) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) TopupRecord(result string) {
	if m == nil {
		return
	}
	m.topupRecords.WithLabelValues(result).Inc()
}
