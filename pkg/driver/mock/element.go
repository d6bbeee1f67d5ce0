package mock

import (
	"sort"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Element is one node in a scripted tree. All state lives behind the
// owning driver's lock, so handles can be poked from tests while an
// executor works against the same tree.
type Element struct {
	drv        *Driver
	key        string
	role       string
	attrs      map[string]interface{}
	failGet    map[string]error
	failSet    map[string]error
	performErr error
	editTarget string
	delay      time.Duration
	stale      bool
	children   []*Element
	performed  []string
}

// sleepDelay blocks for the scripted latency, outside the driver lock so
// a slow element never stalls the rest of the tree.
func (e *Element) sleepDelay() {
	e.drv.mu.Lock()
	d := e.delay
	e.drv.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
}

// Key implements core.Element.
func (e *Element) Key() string { return e.key }

// Role implements core.Element.
func (e *Element) Role() string { return e.role }

// AttributeNames implements core.Element.
func (e *Element) AttributeNames() ([]string, error) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	if e.stale {
		return nil, core.ErrElementStale
	}
	names := make([]string, 0, len(e.attrs))
	for name := range e.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Attribute implements core.Element.
func (e *Element) Attribute(name string) (interface{}, error) {
	e.sleepDelay()

	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	if e.stale {
		return nil, core.ErrElementStale
	}
	if err, ok := e.failGet[name]; ok {
		return nil, err
	}
	v, ok := e.attrs[name]
	if !ok {
		return nil, core.ErrAttributeUnavailable
	}
	return v, nil
}

// SetAttribute implements core.Element. A successful write emits a value
// change notification, the way the live bridge reports edits back.
func (e *Element) SetAttribute(name string, value interface{}) error {
	e.sleepDelay()

	e.drv.mu.Lock()

	if e.stale {
		e.drv.mu.Unlock()
		return core.ErrElementStale
	}
	if err, ok := e.failSet[name]; ok {
		e.drv.mu.Unlock()
		return err
	}
	if name == core.AttrFocused {
		if on, ok := value.(bool); ok && on {
			e.drv.focused = e
		}
	}
	e.attrs[name] = value
	e.drv.mu.Unlock()

	e.drv.notifyValueChanged(e, name, value)
	return nil
}

// Children implements core.Element.
func (e *Element) Children() ([]core.Element, error) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	if e.stale {
		return nil, core.ErrElementStale
	}
	out := make([]core.Element, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out, nil
}

// Perform implements core.Element. A press focuses the element, which is
// what arms it for synthetic input.
func (e *Element) Perform(action string) error {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	if e.stale {
		return core.ErrElementStale
	}
	e.performed = append(e.performed, action)
	if e.performErr != nil {
		return e.performErr
	}
	if action == core.ActionPress {
		e.drv.focused = e
	}
	return nil
}

// Test hooks. These mutate scripted behavior mid-run.

// Set stores an attribute through the application's own path, skipping
// any scripted write failure, and emits the matching notification.
func (e *Element) Set(name string, value interface{}) {
	e.drv.mu.Lock()
	e.attrs[name] = value
	e.drv.mu.Unlock()

	e.drv.notifyValueChanged(e, name, value)
}

// Get reads an attribute without the scripted failures.
func (e *Element) Get(name string) (interface{}, bool) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	v, ok := e.attrs[name]
	return v, ok
}

// RejectReads makes reads of one attribute fail with err.
func (e *Element) RejectReads(name string, err error) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	if e.failGet == nil {
		e.failGet = make(map[string]error)
	}
	e.failGet[name] = err
}

// RejectWrites makes writes of one attribute fail with err.
func (e *Element) RejectWrites(name string, err error) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	if e.failSet == nil {
		e.failSet = make(map[string]error)
	}
	e.failSet[name] = err
}

// Delay makes every attribute read and write on this element take at
// least d.
func (e *Element) Delay(d time.Duration) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	e.delay = d
}

// RejectActions makes every Perform call fail with err.
func (e *Element) RejectActions(err error) {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	e.performErr = err
}

// MarkStale invalidates the handle. Every later call on it fails the way
// a destroyed native element would.
func (e *Element) MarkStale() {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	e.stale = true
}

// Performed returns the actions performed on this element, in order.
func (e *Element) Performed() []string {
	e.drv.mu.Lock()
	defer e.drv.mu.Unlock()

	out := make([]string, len(e.performed))
	copy(out, e.performed)
	return out
}
