package event

import (
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Record is one accepted event, stamped and ready for the session log.
// Immutable once constructed.
type Record struct {
	// RelativeTime is seconds since session start, floating point.
	RelativeTime float64 `json:"relativeTime"`

	// Timestamp is the absolute delivery time.
	Timestamp time.Time `json:"timestamp"`

	// Command is the event-type tag, e.g. AXValueChanged.
	Command string `json:"command"`

	// Role is the role of the element that changed, may be empty.
	Role string `json:"role,omitempty"`

	// ElementKey identifies the element that changed.
	ElementKey string `json:"elementKey,omitempty"`

	// Attributes is the element's attribute snapshot at event time.
	Attributes map[string]core.Value `json:"attributes,omitempty"`
}

// newRecord stamps a notification relative to the session start.
func newRecord(n core.Notification, sessionStart time.Time) Record {
	return Record{
		RelativeTime: n.Timestamp.Sub(sessionStart).Seconds(),
		Timestamp:    n.Timestamp,
		Command:      n.Type,
		Role:         n.Role,
		ElementKey:   n.ElementKey,
		Attributes:   n.Attributes,
	}
}
