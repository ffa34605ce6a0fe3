package incident

import (
	"time"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/journal"
)

// Type classifies a recorded incident.
type Type uint8

const (
	// TypePingPongMismatchHigh indicates the pending-ping count crossed its threshold.
	TypePingPongMismatchHigh Type = 0
	// TypePingPongUnknownHigh indicates the unknown-pong count crossed its threshold.
	TypePingPongUnknownHigh Type = 1
)

// String returns the incident type name.
func (t Type) String() string {
	switch t {
	case TypePingPongMismatchHigh:
		return "PING_PONG_MISMATCH_HIGH"
	case TypePingPongUnknownHigh:
		return "PING_PONG_UNKNOWN_HIGH"
	default:
		return "UNKNOWN"
	}
}

// typeFromString parses a stored incident type name.
func typeFromString(s string) Type {
	switch s {
	case "PING_PONG_UNKNOWN_HIGH":
		return TypePingPongUnknownHigh
	default:
		return TypePingPongMismatchHigh
	}
}

// DefaultExcerptSize is the number of journal records captured per snapshot.
const DefaultExcerptSize = 50

// Snapshot is a persisted record of one severe, threshold-crossing condition.
type Snapshot struct {
	// ID uniquely identifies the snapshot (UUID).
	ID string

	// Type classifies the incident.
	Type Type

	// Severity of the condition when it was recorded.
	Severity event.Severity

	// Message is a human-readable description.
	Message string

	// InterfaceID identifies the affected backend interface.
	InterfaceID string

	// Context carries incident details, at minimum the current mismatch count.
	Context map[string]any

	// JournalExcerpt holds the most recent journal records at recording time.
	JournalExcerpt []journal.Record

	// CreatedAt is when the snapshot was recorded.
	CreatedAt time.Time
}

// Recorder persists incident snapshots. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordIncident captures a snapshot of the given condition. The journal
	// is the live instance owned by the reporting tracker; implementations
	// excerpt it and must not retain the reference. j may be nil.
	RecordIncident(incidentType Type, severity event.Severity, message, interfaceID string, context map[string]any, j *journal.Journal) (*Snapshot, error)
}

// excerpt captures the recent journal records for a snapshot.
func excerpt(j *journal.Journal) []journal.Record {
	if j == nil {
		return nil
	}
	return j.Recent(DefaultExcerptSize)
}
