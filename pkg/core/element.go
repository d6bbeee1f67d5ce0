package core

import (
	"time"
)

// Element is an opaque handle to one node in the target application's
// control tree. The tree is owned and mutated by the target process, so a
// handle can go stale between any two calls; every method may return
// ErrElementStale. Equality is by identity (Key), never by content.
type Element interface {
	// Key returns a stable identity token for the underlying node. Two
	// handles referring to the same node return the same key.
	Key() string

	// Role returns the element's role tag, or "" when the role cannot be
	// read. Role lookup failures are not errors.
	Role() string

	// AttributeNames lists the attribute names the element currently
	// exposes.
	AttributeNames() ([]string, error)

	// Attribute reads a single attribute in its native representation.
	Attribute(name string) (interface{}, error)

	// SetAttribute writes a single attribute.
	SetAttribute(name string, value interface{}) error

	// Children returns the declared child elements.
	Children() ([]Element, error)

	// Perform triggers a named action on the element (press, raise, ...).
	Perform(action string) error
}

// Driver resolves application roots and gates access to the automation API.
// Implementations: the OS accessibility bridge, mock trees for tests.
type Driver interface {
	// CheckPermission reports whether this process is authorized to use
	// the automation API. Returns ErrPermissionDenied when it is not.
	CheckPermission() error

	// AppElement resolves the root element for a running process.
	AppElement(pid int) (Element, error)

	// Activate brings the target application to the foreground.
	Activate(pid int) error
}

// Common attribute names exposed by the automation API.
const (
	AttrRole        = "AXRole"
	AttrTitle       = "AXTitle"
	AttrDescription = "AXDescription"
	AttrValue       = "AXValue"
	AttrPosition    = "AXPosition"
	AttrSize        = "AXSize"
	AttrEnabled     = "AXEnabled"
	AttrFocused     = "AXFocused"
	AttrChildren    = "AXChildren"
)

// Actions understood by Perform.
const (
	ActionPress   = "AXPress"
	ActionRaise   = "AXRaise"
	ActionConfirm = "AXConfirm"
)

// Point is a position in screen coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a width/height pair in screen units.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ElementSummary is a serializable snapshot of an element, attached to
// command results and reports. The live handle is never serialized.
type ElementSummary struct {
	Key         string `json:"key,omitempty"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	Position    *Point `json:"position,omitempty"`
	Size        *Size  `json:"size,omitempty"`
}

// Notification is one UI change event pushed by the automation API.
// Delivery is serialized: the source never invokes the handler for two
// notifications concurrently.
type Notification struct {
	Type       string           // event type tag, e.g. AXValueChanged
	Role       string           // role of the element that changed, may be ""
	ElementKey string           // identity of the element that changed
	Timestamp  time.Time        // delivery time
	Attributes map[string]Value // attribute snapshot at event time
}

// NotificationSource delivers UI change notifications for one target
// application. Implemented by the OS bridge (external) and by mock drivers.
type NotificationSource interface {
	// Subscribe registers the handler. The handler is invoked from a
	// single delivery goroutine, sequentially, in arrival order.
	Subscribe(handler func(Notification)) error

	// Close tears down the subscription.
	Close() error
}
