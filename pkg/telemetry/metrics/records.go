package metrics

import "github.com/prometheus/client_golang/prometheus"

// RecordMetrics tracks per-record work of the executor and scanner.
//
// Metrics:
//   - lethe_records_processed_total: records by category, operation and status
//   - lethe_eligible_records: records found by the latest scan by category and kind
type RecordMetrics struct {
	processed *prometheus.CounterVec
	eligible  *prometheus.GaugeVec
}

// NewRecordMetrics creates and registers record metrics with the provided registry.
func NewRecordMetrics(namespace string, registry *prometheus.Registry) *RecordMetrics {
	rm := &RecordMetrics{
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_processed_total",
				Help:      "Total number of records handled by the deletion executor",
			},
			[]string{"category", "operation", "status"},
		),
		eligible: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "eligible_records",
				Help:      "Number of records returned by the most recent eligibility scan",
			},
			[]string{"category", "kind"},
		),
	}

	registry.MustRegister(rm.processed, rm.eligible)
	return rm
}
