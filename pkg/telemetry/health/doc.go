// Package health provides liveness, readiness and version endpoints for the
// Lethe server.
//
// Liveness always succeeds while the process runs. Readiness runs every
// registered check concurrently with a per-check timeout; the server
// registers StoreCheck for the retention store and SchedulerCheck for the
// cron scheduler.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("store", health.StoreCheck(store))
//	checker.RegisterCheck("scheduler", health.SchedulerCheck(cron))
//
//	r.Get("/health", checker.LivenessHandler())
//	r.Get("/ready", checker.ReadinessHandler())
package health
