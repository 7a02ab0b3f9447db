// Package stage defines the contract between the workflow manager and
// the pipeline stages it drives.
package stage

import (
	"context"

	"clipper/internal/queue"
)

// Handler is one pipeline stage. Prepare validates inputs and fills
// derived job fields; Execute does the work and writes its outputs back
// onto the job; HealthCheck reports whether the stage could run now.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// Health is a stage's readiness report.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a passing health report.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy builds a failing health report with detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
