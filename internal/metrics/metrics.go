// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncAuthSuccess()
	IncAuthFailure(reason string)

	// Task management metrics
	IncTaskCreated()
	IncTaskUpdated()
	IncTaskDeleted()
	IncOwnershipDenied()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
