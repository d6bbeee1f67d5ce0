// Package event classifies, debounces, and rate-limits the live stream of
// accessibility notifications, producing the clean event records that
// protocol recording consumes.
package event

import (
	"sync/atomic"
	"time"
)

// Notification types observed from the automation API.
const (
	TypeValueChanged     = "AXValueChanged"
	TypeElementDestroyed = "AXUIElementDestroyed"
	TypeMenuOpened       = "AXMenuOpened"
	TypeMenuClosed       = "AXMenuClosed"
	TypeWindowCreated    = "AXWindowCreated"
	TypeFocusChanged     = "AXFocusedUIElementChanged"
)

// Config drives the filter pipeline. It is swapped as a whole by
// UpdateFilterConfiguration; the pipeline reads one consistent snapshot per
// incoming event, never individual fields of a shared copy.
type Config struct {
	// MeaningfulEventTypes is the allow-list of notification types.
	MeaningfulEventTypes []string `yaml:"meaningfulEventTypes" json:"meaningfulEventTypes"`

	// MeaningfulRoles is the allow-list of element roles.
	MeaningfulRoles []string `yaml:"meaningfulRoles" json:"meaningfulRoles"`

	// DebounceTime is the minimum spacing between two accepted events that
	// share the same (type, role, element) key.
	DebounceTime time.Duration `yaml:"debounceTime" json:"debounceTime"`

	// MaxEventsPerSecond caps accepted events per rolling second.
	// Zero or negative disables the cap.
	MaxEventsPerSecond int `yaml:"maxEventsPerSecond" json:"maxEventsPerSecond"`

	// StrictMode, when set, rejects events whose element has no role.
	// The permissive default skips the role check for role-less elements.
	StrictMode bool `yaml:"strictMode" json:"strictMode"`
}

// DefaultConfig returns the filter configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		MeaningfulEventTypes: []string{
			TypeValueChanged,
			TypeElementDestroyed,
			TypeMenuOpened,
			TypeMenuClosed,
			TypeWindowCreated,
			TypeFocusChanged,
		},
		MeaningfulRoles: []string{
			"AXButton",
			"AXSlider",
			"AXTextField",
			"AXCheckBox",
			"AXPopUpButton",
			"AXMenuItem",
			"AXStaticText",
		},
		DebounceTime:       500 * time.Millisecond,
		MaxEventsPerSecond: 10,
		StrictMode:         false,
	}
}

// AllowsType reports whether the event type is on the allow-list.
func (c *Config) AllowsType(eventType string) bool {
	for _, t := range c.MeaningfulEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// AllowsRole reports whether the role passes the role allow-list. An empty
// role passes unless StrictMode is set.
func (c *Config) AllowsRole(role string) bool {
	if role == "" {
		return !c.StrictMode
	}
	for _, r := range c.MeaningfulRoles {
		if r == role {
			return true
		}
	}
	return false
}

// clone deep-copies the config so a stored snapshot cannot alias the
// caller's slices.
func (c Config) clone() *Config {
	out := c
	out.MeaningfulEventTypes = append([]string(nil), c.MeaningfulEventTypes...)
	out.MeaningfulRoles = append([]string(nil), c.MeaningfulRoles...)
	return &out
}

// ConfigStore holds the process-wide filter configuration. Updates replace
// the whole config atomically; an event being classified keeps the snapshot
// it started with.
type ConfigStore struct {
	current atomic.Pointer[Config]
}

// NewConfigStore creates a store seeded with the given configuration.
func NewConfigStore(cfg Config) *ConfigStore {
	s := &ConfigStore{}
	s.current.Store(cfg.clone())
	return s
}

// Update atomically replaces the configuration. In-flight classification
// of earlier events is unaffected.
func (s *ConfigStore) Update(cfg Config) {
	s.current.Store(cfg.clone())
}

// Snapshot returns the current configuration. The returned value must be
// treated as read-only.
func (s *ConfigStore) Snapshot() *Config {
	return s.current.Load()
}
