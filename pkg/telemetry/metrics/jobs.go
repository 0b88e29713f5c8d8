package metrics

import "github.com/prometheus/client_golang/prometheus"

// JobMetrics tracks scheduler jobs and notices.
//
// Metrics:
//   - lethe_job_runs_total: finished jobs by kind and status
//   - lethe_job_duration_seconds: job duration histogram by kind
//   - lethe_job_last_run_timestamp_seconds: completion time of the last job by kind
//   - lethe_notices_dispatched_total: deletion notices by category
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
	notices  *prometheus.CounterVec
}

// NewJobMetrics creates and registers job metrics with the provided registry.
func NewJobMetrics(namespace string, registry *prometheus.Registry) *JobMetrics {
	jm := &JobMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Total number of finished retention jobs",
			},
			[]string{"kind", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of retention jobs in seconds",
				// Jobs range from sub-second dry runs to the 30 minute budget.
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
			},
			[]string{"kind"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_last_run_timestamp_seconds",
				Help:      "Unix time at which the last job of each kind finished",
			},
			[]string{"kind"},
		),
		notices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notices_dispatched_total",
				Help:      "Total number of pre-deletion notices dispatched",
			},
			[]string{"category"},
		),
	}

	registry.MustRegister(jm.runs, jm.duration, jm.lastRun, jm.notices)
	return jm
}
