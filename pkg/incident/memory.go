package incident

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/journal"
)

// DefaultMemoryCapacity is the default snapshot retention of a MemoryRecorder.
const DefaultMemoryCapacity = 100

// MemoryRecorder keeps incident snapshots in a bounded in-memory list,
// oldest dropped first. It is the recorder of choice for tests and for
// embedded deployments without a writable data directory.
type MemoryRecorder struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	max       int
}

// NewMemoryRecorder creates a MemoryRecorder retaining at most capacity
// snapshots. Non-positive values fall back to DefaultMemoryCapacity.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRecorder{max: capacity}
}

// RecordIncident captures and retains a snapshot.
func (m *MemoryRecorder) RecordIncident(incidentType Type, severity event.Severity, message, interfaceID string, context map[string]any, j *journal.Journal) (*Snapshot, error) {
	snap := &Snapshot{
		ID:             uuid.New().String(),
		Type:           incidentType,
		Severity:       severity,
		Message:        message,
		InterfaceID:    interfaceID,
		Context:        context,
		JournalExcerpt: excerpt(j),
		CreatedAt:      time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) >= m.max {
		drop := len(m.snapshots) - m.max + 1
		m.snapshots = m.snapshots[drop:]
	}
	m.snapshots = append(m.snapshots, snap)
	return snap, nil
}

// Snapshots returns a copy of the retained snapshots in recording order.
func (m *MemoryRecorder) Snapshots() []*Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// Len returns the number of retained snapshots.
func (m *MemoryRecorder) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// Clear removes all retained snapshots.
func (m *MemoryRecorder) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = nil
}

// Compile-time interface satisfaction check.
var _ Recorder = (*MemoryRecorder)(nil)
