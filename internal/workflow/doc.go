// Package workflow coordinates job processing: a single polling loop
// promotes intake jobs, reclaims stale claims, claims the oldest ready
// job by compare-and-swap and runs it through the pipeline stages with
// heartbeat liveness and best-effort progress telemetry. Multiple
// daemons may share one queue database; the CAS claim is the only
// coordination point.
package workflow
