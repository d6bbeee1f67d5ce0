// Package control performs logical get and set operations on region
// control values (volume, pan, velocity, pitch, position, size) through
// an ordered chain of fallback strategies.
package control

import (
	"math"
	"regexp"
	"strconv"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Domain attribute names exposed by region elements. Not every build of
// the target application exposes all of them, which is why the chain
// falls back to sub-controls and description parsing.
const (
	AttrVolume    = "AXVolume"
	AttrPan       = "AXPan"
	AttrVelocity  = "AXVelocity"
	AttrPitch     = "AXPitch"
	AttrStartTime = "AXStartTime"
	AttrEndTime   = "AXEndTime"
)

// Spec describes one logical region control: how to address it directly,
// how to locate its dedicated sub-control, how to parse it out of
// description text, and the value domain it accepts.
type Spec struct {
	Name      string         // logical name used in protocols and results
	Attribute string         // direct attribute on the region element
	Keyword   string         // locator keyword for the dedicated sub-control
	Pattern   *regexp.Regexp // extracts the value from description text
	Default   float64        // returned when every read strategy fails
	Min, Max  float64        // accepted range when Bounded
	Bounded   bool
	Integer   bool
}

// The four numeric region controls. Volume is unbounded because the
// target application expresses it in dB, which has no fixed floor.
var (
	Volume = Spec{
		Name:      "volume",
		Attribute: AttrVolume,
		Keyword:   "volume",
		Pattern:   regexp.MustCompile(`(?i)vol(?:ume)?[:\s]+(-?\d+(?:\.\d+)?)`),
		Default:   0.0,
	}

	Pan = Spec{
		Name:      "pan",
		Attribute: AttrPan,
		Keyword:   "pan",
		Pattern:   regexp.MustCompile(`(?i)pan[:\s]+(-?\d+(?:\.\d+)?)`),
		Default:   0.0,
		Min:       -1,
		Max:       1,
		Bounded:   true,
	}

	Velocity = Spec{
		Name:      "velocity",
		Attribute: AttrVelocity,
		Keyword:   "velocity",
		Pattern:   regexp.MustCompile(`(?i)vel(?:ocity)?[:\s]+(\d+)`),
		Default:   64,
		Min:       1,
		Max:       127,
		Bounded:   true,
		Integer:   true,
	}

	Pitch = Spec{
		Name:      "pitch",
		Attribute: AttrPitch,
		Keyword:   "pitch",
		Pattern:   regexp.MustCompile(`(?i)(?:pitch|transpose)[:\s]+(-?\d+)`),
		Default:   0,
		Min:       -24,
		Max:       24,
		Bounded:   true,
		Integer:   true,
	}
)

// ByName resolves a control spec from its logical name. Used by protocol
// steps that name the control as a string (assertValue).
func ByName(name string) (Spec, bool) {
	switch name {
	case Volume.Name:
		return Volume, true
	case Pan.Name:
		return Pan, true
	case Velocity.Name:
		return Velocity, true
	case Pitch.Name:
		return Pitch, true
	}
	return Spec{}, false
}

// Validate rejects values outside the control's domain before any write
// strategy runs.
func (s Spec) Validate(v float64) error {
	if s.Integer && v != math.Trunc(v) {
		return core.ErrValueOutOfRange.WithMessage(s.Name + " must be an integer").WithDetails(map[string]interface{}{
			"control": s.Name,
			"value":   v,
		})
	}
	if s.Bounded && (v < s.Min || v > s.Max) {
		return core.ErrValueOutOfRange.WithDetails(map[string]interface{}{
			"control": s.Name,
			"value":   v,
			"min":     s.Min,
			"max":     s.Max,
		})
	}
	return nil
}

// Format renders a value the way the target application's edit fields
// expect it typed.
func (s Spec) Format(v float64) string {
	if s.Integer {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NativeValue converts a value to the representation written through the
// automation API: plain int for integer controls, float64 otherwise.
func (s Spec) NativeValue(v float64) interface{} {
	if s.Integer {
		return int(v)
	}
	return v
}

// Verify compares a read-back value against the written one. Integer
// controls compare exactly; float controls within a small tolerance,
// since the target application rounds on display.
func (s Spec) Verify(got, want float64) bool {
	if s.Integer {
		return int(got) == int(want)
	}
	return math.Abs(got-want) <= verifyTolerance
}

// verifyTolerance bounds the float read-back comparison after a write.
const verifyTolerance = 0.001

// Numeric extracts a float64 from a converted value, parsing numeric
// strings as a convenience for controls whose attributes come back as
// formatted text.
func Numeric(v core.Value) (float64, bool) {
	if f, ok := v.AsNumber(); ok {
		return f, true
	}
	if s, ok := v.AsString(); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
