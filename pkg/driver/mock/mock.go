// Package mock provides a scripted in-memory control tree so recording
// and replay run without the real application or OS automation bridge.
package mock

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/event"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
)

// eventBuffer bounds undelivered notifications. Overflow is dropped, the
// same policy the OS bridge applies to slow observers.
const eventBuffer = 256

// Config configures mock driver behavior.
type Config struct {
	// PermissionErr, when set, is returned by CheckPermission.
	PermissionErr error
	// Now supplies notification timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Driver is a scripted implementation of core.Driver, core.NotificationSource
// and input.Synthesizer backed by one in-memory tree.
type Driver struct {
	mu      sync.Mutex
	cfg     Config
	root    *Element
	index   map[string]*Element
	focused *Element
	typed   []rune
	pids    []int

	events  chan core.Notification
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// New creates an empty driver. Load a tree before resolving elements.
func New(cfg Config) *Driver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Driver{
		cfg:    cfg,
		index:  make(map[string]*Element),
		events: make(chan core.Notification, eventBuffer),
		done:   make(chan struct{}),
	}
}

// CheckPermission implements core.Driver.
func (d *Driver) CheckPermission() error {
	return d.cfg.PermissionErr
}

// AppElement implements core.Driver. The mock serves its single tree for
// any pid and records which pids were asked for.
func (d *Driver) AppElement(pid int) (core.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pids = append(d.pids, pid)
	if d.root == nil {
		return nil, fmt.Errorf("no application tree loaded")
	}
	return d.root, nil
}

// Activate implements core.Driver.
func (d *Driver) Activate(pid int) error {
	return nil
}

// ElementByKey resolves a loaded element for scripting and assertions.
func (d *Driver) ElementByKey(key string) (*Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[key]
	return e, ok
}

// Focused returns the element armed for synthetic input, if any.
func (d *Driver) Focused() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.focused
}

// Subscribe implements core.NotificationSource. The handler runs on a
// single delivery goroutine in emission order.
func (d *Driver) Subscribe(handler func(core.Notification)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("driver is closed")
	}
	if d.started {
		return fmt.Errorf("already subscribed")
	}
	d.started = true

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case n := <-d.events:
				handler(n)
			case <-d.done:
				return
			}
		}
	}()
	return nil
}

// Close implements core.NotificationSource.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	return nil
}

// Emit injects one notification, stamping it with the driver clock when
// the caller left the timestamp zero.
func (d *Driver) Emit(n core.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = d.cfg.Now()
	}
	select {
	case d.events <- n:
	default:
	}
}

// notifyValueChanged reports one committed attribute write.
func (d *Driver) notifyValueChanged(e *Element, name string, value interface{}) {
	d.Emit(core.Notification{
		Type:       event.TypeValueChanged,
		Role:       e.role,
		ElementKey: e.key,
		Timestamp:  d.cfg.Now(),
		Attributes: map[string]core.Value{name: core.Convert(value)},
	})
}

// TypeCharacter implements input.Synthesizer. Characters buffer until a
// Return commits them.
func (d *Driver) TypeCharacter(ch rune) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.focused == nil {
		return core.ErrInputFailed.WithMessage("no element focused for input")
	}
	d.typed = append(d.typed, ch)
	return nil
}

// PressKey implements input.Synthesizer. Return parses the buffer and
// commits it to the focused element's edit target; Escape discards it.
func (d *Driver) PressKey(key input.Key) error {
	d.mu.Lock()

	switch key {
	case input.KeyEscape:
		d.typed = nil
		d.mu.Unlock()
		return nil
	case input.KeyReturn:
		target := d.focused
		if target == nil {
			d.mu.Unlock()
			return core.ErrInputFailed.WithMessage("no element focused for input")
		}
		text := string(d.typed)
		d.typed = nil
		if text == "" {
			// A bare Return confirms whatever the field already holds.
			d.mu.Unlock()
			return nil
		}
		attr := target.editTarget
		if attr == "" {
			attr = core.AttrValue
		}
		target.attrs[attr] = parseTyped(text)
		value := target.attrs[attr]
		d.mu.Unlock()

		d.notifyValueChanged(target, attr, value)
		return nil
	default:
		d.mu.Unlock()
		return nil
	}
}

// parseTyped interprets committed text the way the application's edit
// fields do: number, "x, y" pair, "WxH" pair, else raw text.
func parseTyped(text string) interface{} {
	s := strings.TrimSpace(text)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if x, y, ok := splitPair(s, ","); ok {
		return core.Point{X: x, Y: y}
	}
	if w, h, ok := splitPair(s, "x"); ok {
		return core.Size{Width: w, Height: h}
	}
	return s
}

func splitPair(s, sep string) (float64, float64, bool) {
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, errA := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
