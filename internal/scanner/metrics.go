package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder pipeline.
type Metrics struct {
	// ScansTotal counts scan runs by result (ok, error).
	ScansTotal *prometheus.CounterVec

	// NotificationsTotal counts processed reminders by final status.
	NotificationsTotal *prometheus.CounterVec

	// TokensPrunedTotal counts device tokens removed as invalid.
	TokensPrunedTotal prometheus.Counter

	// SweepDeletedTotal counts sent records removed by the retention sweep.
	SweepDeletedTotal prometheus.Counter

	// ScanDuration is the wall time of a full scan.
	ScanDuration prometheus.Histogram
}

// NewMetrics creates and registers the reminder metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ScansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of reminder scan runs",
			},
			[]string{"result"},
		),

		NotificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of reminder notifications processed",
			},
			[]string{"status"},
		),

		TokensPrunedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_pruned_total",
				Help:      "Total number of invalid device tokens removed",
			},
		),

		SweepDeletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_deleted_total",
				Help:      "Total number of sent records deleted by the sweep",
			},
		),

		ScanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Wall time of a full reminder scan",
				Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300},
			},
		),
	}
}

// IncScan increments the scan counter for a result.
func (m *Metrics) IncScan(result string) {
	m.ScansTotal.WithLabelValues(result).Inc()
}

// IncNotification increments the notification counter for a status.
func (m *Metrics) IncNotification(status string) {
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

// AddTokensPruned records removed tokens.
func (m *Metrics) AddTokensPruned(n int) {
	m.TokensPrunedTotal.Add(float64(n))
}

// AddSweepDeleted records swept sent records.
func (m *Metrics) AddSweepDeleted(n int) {
	m.SweepDeletedTotal.Add(float64(n))
}

// ObserveScanDuration records the duration of one scan.
func (m *Metrics) ObserveScanDuration(seconds float64) {
	m.ScanDuration.Observe(seconds)
}
