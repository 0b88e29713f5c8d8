// Package metrics provides Prometheus metrics for the Lethe retention engine.
//
// # Metrics
//
//   - lethe_records_processed_total{category,operation,status}
//   - lethe_eligible_records{category,kind}
//   - lethe_job_runs_total{kind,status}
//   - lethe_job_duration_seconds{kind}
//   - lethe_job_last_run_timestamp_seconds{kind}
//   - lethe_notices_dispatched_total{category}
//
// Record identifiers never appear in labels.
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	engine, err := scheduler.NewEngine(cfg, scheduler.Deps{
//		// ...
//		Metrics: collector,
//	})
//
//	mux.Handle("/metrics", collector.Handler())
package metrics
