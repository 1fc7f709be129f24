package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthSuccesses    uint64
	AuthFailures     map[string]uint64
	TasksCreated     uint64
	TasksUpdated     uint64
	TasksDeleted     uint64
	OwnershipDenials uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	authSuccesses    uint64
	tasksCreated     uint64
	tasksUpdated     uint64
	tasksDeleted     uint64
	ownershipDenials uint64

	mu           sync.Mutex
	authFailures map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		authFailures: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	failures := make(map[string]uint64, len(m.authFailures))
	for reason, count := range m.authFailures {
		failures[reason] = count
	}
	m.mu.Unlock()

	return Snapshot{
		AuthSuccesses:    atomic.LoadUint64(&m.authSuccesses),
		AuthFailures:     failures,
		TasksCreated:     atomic.LoadUint64(&m.tasksCreated),
		TasksUpdated:     atomic.LoadUint64(&m.tasksUpdated),
		TasksDeleted:     atomic.LoadUint64(&m.tasksDeleted),
		OwnershipDenials: atomic.LoadUint64(&m.ownershipDenials),
	}
}

// IncAuthSuccess increments the successful authentication counter.
func (m *InMemoryRecorder) IncAuthSuccess() {
	atomic.AddUint64(&m.authSuccesses, 1)
}

// IncAuthFailure increments the failure counter for the given reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.mu.Lock()
	m.authFailures[reason]++
	m.mu.Unlock()
}

// IncTaskCreated increments the task created counter.
func (m *InMemoryRecorder) IncTaskCreated() {
	atomic.AddUint64(&m.tasksCreated, 1)
}

// IncTaskUpdated increments the task updated counter.
func (m *InMemoryRecorder) IncTaskUpdated() {
	atomic.AddUint64(&m.tasksUpdated, 1)
}

// IncTaskDeleted increments the task deleted counter.
func (m *InMemoryRecorder) IncTaskDeleted() {
	atomic.AddUint64(&m.tasksDeleted, 1)
}

// IncOwnershipDenied increments the ownership denial counter.
func (m *InMemoryRecorder) IncOwnershipDenied() {
	atomic.AddUint64(&m.ownershipDenials, 1)
}
