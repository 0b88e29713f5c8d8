package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/lethe/pkg/config"
	"mercator-hq/lethe/pkg/retention"
)

// Collector owns the Prometheus registry of the retention engine and
// implements the engine's metrics interface. All label values come from
// closed sets (categories, operations, statuses, job kinds), so label
// cardinality is bounded.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	records *RecordMetrics
	jobs    *JobMetrics
}

// NewCollector creates a collector registering its metrics with registry.
// If registry is nil a new registry with Go runtime and process collectors
// is created.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		records:  NewRecordMetrics(cfg.Namespace, registry),
		jobs:     NewJobMetrics(cfg.Namespace, registry),
	}
}

// RecordOutcome counts one processed record.
func (c *Collector) RecordOutcome(category retention.Category, op retention.Operation, status retention.RecordStatus) {
	if !c.config.Enabled {
		return
	}
	c.records.processed.WithLabelValues(string(category), string(op), string(status)).Inc()
}

// SetEligible sets the number of records found by the latest scan.
func (c *Collector) SetEligible(category retention.Category, kind retention.OperationKind, n int) {
	if !c.config.Enabled {
		return
	}
	c.records.eligible.WithLabelValues(string(category), string(kind)).Set(float64(n))
}

// RecordNotices counts dispatched deletion notices.
func (c *Collector) RecordNotices(category retention.Category, n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.jobs.notices.WithLabelValues(string(category)).Add(float64(n))
}

// RecordJob records a finished job.
func (c *Collector) RecordJob(kind retention.JobKind, success bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	c.jobs.runs.WithLabelValues(string(kind), status).Inc()
	c.jobs.duration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	c.jobs.lastRun.WithLabelValues(string(kind)).SetToCurrentTime()
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
