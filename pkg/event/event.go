package event

import "time"

// Type identifies the kind of event carried on the bus.
type Type uint8

const (
	// TypeSystemStatusChanged indicates the set of open integration issues changed.
	TypeSystemStatusChanged Type = 0
	// TypeConnectionStateChanged indicates an interface connection changed state.
	TypeConnectionStateChanged Type = 1
	// TypeParameterChanged indicates a data point reported a new value.
	TypeParameterChanged Type = 2
)

// String returns the event type name.
func (t Type) String() string {
	switch t {
	case TypeSystemStatusChanged:
		return "SYSTEM_STATUS_CHANGED"
	case TypeConnectionStateChanged:
		return "CONNECTION_STATE_CHANGED"
	case TypeParameterChanged:
		return "PARAMETER_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// KeyAll is the subscription key that matches every dispatch key of an
// event type. Events published with an empty key are broadcast events.
const KeyAll = ""

// Event is a notification carried on the bus. Concrete events are
// immutable value types.
type Event interface {
	// Type identifies the concrete event.
	Type() Type

	// Key is the dispatch key used for targeted routing (an interface id,
	// data-point address, or similar). Empty for broadcast events.
	Key() string

	// Time is when the event was created.
	Time() time.Time
}

// IssueType classifies an integration issue.
type IssueType uint8

const (
	// IssuePingPongMismatch indicates pings and pongs on an interface do not
	// reconcile (pending pings without pongs, or pongs without pings).
	IssuePingPongMismatch IssueType = 0
)

// String returns the issue type name.
func (i IssueType) String() string {
	switch i {
	case IssuePingPongMismatch:
		return "PING_PONG_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// MismatchType distinguishes the two ping/pong mismatch directions.
type MismatchType uint8

const (
	// MismatchPending indicates pings sent without a matching pong.
	MismatchPending MismatchType = 0
	// MismatchUnknown indicates pongs received with no matching sent ping.
	MismatchUnknown MismatchType = 1
)

// String returns the mismatch type name.
func (m MismatchType) String() string {
	switch m {
	case MismatchPending:
		return "PENDING"
	case MismatchUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// Severity indicates how serious an integration issue is.
type Severity uint8

const (
	// SeverityError indicates a hard threshold was exceeded and action is required.
	SeverityError Severity = 0
	// SeverityWarning indicates a tolerable or resetting condition.
	SeverityWarning Severity = 1
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IntegrationIssue describes one open issue between the library and the backend.
// A MismatchCount of zero denotes a recovered condition.
type IntegrationIssue struct {
	IssueType     IssueType
	InterfaceID   string
	MismatchType  MismatchType
	MismatchCount int
	Severity      Severity
}

// SystemStatusChanged is a broadcast event carrying the integration issues
// observed at the time of publication.
type SystemStatusChanged struct {
	Issues    []IntegrationIssue
	Timestamp time.Time
}

// NewSystemStatusChanged creates a SystemStatusChanged event stamped with the
// current time.
func NewSystemStatusChanged(issues ...IntegrationIssue) SystemStatusChanged {
	return SystemStatusChanged{Issues: issues, Timestamp: time.Now()}
}

// Type returns TypeSystemStatusChanged.
func (SystemStatusChanged) Type() Type { return TypeSystemStatusChanged }

// Key returns the broadcast key; system status events have no dispatch key.
func (SystemStatusChanged) Key() string { return KeyAll }

// Time returns the event creation time.
func (e SystemStatusChanged) Time() time.Time { return e.Timestamp }

// ConnectionStateChanged signals that an interface connection moved between
// states. The dispatch key is the interface id.
type ConnectionStateChanged struct {
	InterfaceID string
	OldState    string
	NewState    string
	Reason      string
	Timestamp   time.Time
}

// Type returns TypeConnectionStateChanged.
func (ConnectionStateChanged) Type() Type { return TypeConnectionStateChanged }

// Key returns the interface id.
func (e ConnectionStateChanged) Key() string { return e.InterfaceID }

// Time returns the event creation time.
func (e ConnectionStateChanged) Time() time.Time { return e.Timestamp }

// ParameterChanged carries a data-point value pushed by the backend.
// The dispatch key is the data-point address.
type ParameterChanged struct {
	InterfaceID string
	Address     string
	Parameter   string
	Value       any
	Timestamp   time.Time
}

// Type returns TypeParameterChanged.
func (ParameterChanged) Type() Type { return TypeParameterChanged }

// Key returns the data-point address.
func (e ParameterChanged) Key() string { return e.Address }

// Time returns the event creation time.
func (e ParameterChanged) Time() time.Time { return e.Timestamp }

// Compile-time interface satisfaction checks.
var (
	_ Event = SystemStatusChanged{}
	_ Event = ConnectionStateChanged{}
	_ Event = ParameterChanged{}
)
