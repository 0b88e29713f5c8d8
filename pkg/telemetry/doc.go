// Package telemetry groups the observability packages of Lethe.
//
//   - logging: slog setup with job and request context fields and PII redaction
//   - metrics: Prometheus collector for retention jobs and record outcomes
//   - health: liveness and readiness probes for the store and scheduler
package telemetry
