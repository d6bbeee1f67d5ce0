package protocol

import (
	"time"

	"gopkg.in/yaml.v3"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Region commands
	StepSetVolume    StepType = "setVolume"
	StepSetPan       StepType = "setPan"
	StepSetVelocity  StepType = "setVelocity"
	StepSetPitch     StepType = "setPitch"
	StepMoveRegion   StepType = "moveRegion"
	StepResizeRegion StepType = "resizeRegion"
	StepGetValues    StepType = "getValues"

	// Interaction
	StepClick    StepType = "click"
	StepTypeText StepType = "typeText"
	StepPressKey StepType = "pressKey"

	// Assertions
	StepAssertValue   StepType = "assertValue"
	StepAssertVisible StepType = "assertVisible"
	StepAssertTrue    StepType = "assertTrue"

	// Timing
	StepWait          StepType = "wait"
	StepWaitForWindow StepType = "waitForWindow"

	// Flow Control
	StepRepeat          StepType = "repeat"
	StepRetry           StepType = "retry"
	StepRunProtocol     StepType = "runProtocol"
	StepRunScript       StepType = "runScript"
	StepEvalScript      StepType = "evalScript"
	StepDefineVariables StepType = "defineVariables"
)

// Step is the interface for all protocol steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Timeout() time.Duration
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Timeout returns the per-step timeout, zero when unset.
func (b *BaseStep) Timeout() time.Duration { return time.Duration(b.TimeoutMs) * time.Millisecond }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// adoptTargetFlags decodes the common step flags from a mapping whose
// remaining keys describe a target. Used by steps whose YAML form is the
// target itself rather than a "target:" sub-mapping.
func (b *BaseStep) adoptTargetFlags(node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		return
	}
	var raw struct {
		Optional bool   `yaml:"optional"`
		Label    string `yaml:"label"`
		Timeout  int    `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return
	}
	b.Optional = raw.Optional
	b.StepLabel = raw.Label
	b.TimeoutMs = raw.Timeout
}

// ============================================
// Region Command Steps
// ============================================

// SetVolumeStep sets a region's volume.
type SetVolumeStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	Value    string `yaml:"value"` // String for variable support
}

// SetPanStep sets a region's stereo pan (-1..1).
type SetPanStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	Value    string `yaml:"value"` // String for variable support
}

// SetVelocityStep sets a region's note velocity (1-127).
type SetVelocityStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	Value    string `yaml:"value"` // String for variable support
}

// SetPitchStep sets a region's transposition in semitones (-24..24).
type SetPitchStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	Value    string `yaml:"value"` // String for variable support
}

// MoveRegionStep moves a region to an absolute position.
type MoveRegionStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	X        string `yaml:"x"` // String for variable support
	Y        string `yaml:"y"`
}

// ResizeRegionStep resizes a region.
type ResizeRegionStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	Width    string `yaml:"width"` // String for variable support
	Height   string `yaml:"height"`
}

// GetValuesStep reads a region's values into a variable.
type GetValuesStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:"target"`
	Variable string `yaml:"variable"` // Variable to store the snapshot JSON
}

// ============================================
// Interaction Steps
// ============================================

// ClickStep presses a control.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Target   Target
}

// UnmarshalYAML accepts the scalar shorthand and the mapping form. The
// target's optional/label flags land on the step itself.
func (s *ClickStep) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&s.Target); err != nil {
		return err
	}
	s.adoptTargetFlags(node)
	return nil
}

// TypeTextStep types text into the focused or targeted control.
type TypeTextStep struct {
	BaseStep `yaml:",inline"`
	Text     string  `yaml:"text"`
	Target   *Target `yaml:"target"`
	Confirm  *bool   `yaml:"confirm"` // Press Return after typing; default true
}

// PressKeyStep presses a key.
type PressKeyStep struct {
	BaseStep `yaml:",inline"`
	Key      string `yaml:"key"` // return, escape, tab, delete
}

// ============================================
// Assertion Steps
// ============================================

// AssertValueStep asserts a region control holds an expected value.
type AssertValueStep struct {
	BaseStep  `yaml:",inline"`
	Target    Target  `yaml:"target"`
	Control   string  `yaml:"control"` // volume, pan, velocity, pitch
	Expected  string  `yaml:"expected"`
	Tolerance float64 `yaml:"tolerance"` // default 0.001 for float controls
}

// AssertVisibleStep asserts a control matching the target exists.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Target   Target
}

// UnmarshalYAML accepts the scalar shorthand and the mapping form, like
// ClickStep.
func (s *AssertVisibleStep) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&s.Target); err != nil {
		return err
	}
	s.adoptTargetFlags(node)
	return nil
}

// AssertTrueStep asserts a script condition is true.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"condition"`
}

// Condition represents a replay condition.
type Condition struct {
	Visible    *Target `yaml:"visible"`
	NotVisible *Target `yaml:"notVisible"`
	Script     string  `yaml:"scriptCondition"`
}

// ============================================
// Timing Steps
// ============================================

// WaitStep pauses the replay.
type WaitStep struct {
	BaseStep `yaml:",inline"`
	Ms       int `yaml:"ms"`
}

// WaitForWindowStep polls until a window whose description matches appears.
type WaitForWindowStep struct {
	BaseStep `yaml:",inline"`
	Title    string `yaml:"title"`
}

// ============================================
// Flow Control Steps
// ============================================

// RepeatStep repeats steps.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string    `yaml:"times"` // String for variable support
	While    Condition `yaml:"while"`
	Steps    []Step    `yaml:"-"`
}

// RetryStep retries steps on failure.
type RetryStep struct {
	BaseStep   `yaml:",inline"`
	MaxRetries string            `yaml:"maxRetries"` // String for variable support
	Steps      []Step            `yaml:"-"`
	File       string            `yaml:"file"`
	Env        map[string]string `yaml:"env"`
}

// RunProtocolStep runs another protocol.
type RunProtocolStep struct {
	BaseStep `yaml:",inline"`
	File     string            `yaml:"file"`
	Steps    []Step            `yaml:"-"` // Inline steps
	When     *Condition        `yaml:"when"`
	Env      map[string]string `yaml:"env"`
}

// RunScriptStep runs a script.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string            `yaml:"script"` // Script content or filename (string form)
	File     string            `yaml:"file"`   // Script filename (map form)
	Env      map[string]string `yaml:"env"`
}

// ScriptPath returns the script path (either Script or File field).
func (s *RunScriptStep) ScriptPath() string {
	if s.File != "" {
		return s.File
	}
	return s.Script
}

// EvalScriptStep evaluates JavaScript inline.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// DefineVariablesStep defines variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// UnsupportedStep represents an unsupported step.
type UnsupportedStep struct {
	BaseStep `yaml:",inline"`
	Reason   string
}

// Describe returns a description including the unsupported reason.
func (s *UnsupportedStep) Describe() string {
	return string(s.StepType) + " (unsupported: " + s.Reason + ")"
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the set volume step.
func (s *SetVolumeStep) Describe() string {
	return "setVolume: " + s.Target.DescribeQuoted() + " = " + s.Value
}

// Describe returns a human-readable description of the set pan step.
func (s *SetPanStep) Describe() string {
	return "setPan: " + s.Target.DescribeQuoted() + " = " + s.Value
}

// Describe returns a human-readable description of the set velocity step.
func (s *SetVelocityStep) Describe() string {
	return "setVelocity: " + s.Target.DescribeQuoted() + " = " + s.Value
}

// Describe returns a human-readable description of the set pitch step.
func (s *SetPitchStep) Describe() string {
	return "setPitch: " + s.Target.DescribeQuoted() + " = " + s.Value
}

// Describe returns a human-readable description of the move step.
func (s *MoveRegionStep) Describe() string {
	return "moveRegion: " + s.Target.DescribeQuoted() + " to (" + s.X + ", " + s.Y + ")"
}

// Describe returns a human-readable description of the resize step.
func (s *ResizeRegionStep) Describe() string {
	return "resizeRegion: " + s.Target.DescribeQuoted() + " to " + s.Width + "x" + s.Height
}

// Describe returns a human-readable description of the get values step.
func (s *GetValuesStep) Describe() string {
	return "getValues: " + s.Target.DescribeQuoted()
}

// Describe returns a human-readable description of the click step.
func (s *ClickStep) Describe() string {
	return "click: " + s.Target.DescribeQuoted()
}

// Describe returns a human-readable description of the type text step.
func (s *TypeTextStep) Describe() string {
	return "typeText: \"" + s.Text + "\""
}

// Describe returns a human-readable description of the press key step.
func (s *PressKeyStep) Describe() string {
	return "pressKey: " + s.Key
}

// Describe returns a human-readable description of the assert value step.
func (s *AssertValueStep) Describe() string {
	return "assertValue: " + s.Control + " of " + s.Target.DescribeQuoted() + " == " + s.Expected
}

// Describe returns a human-readable description of the assert visible step.
func (s *AssertVisibleStep) Describe() string {
	return "assertVisible: " + s.Target.DescribeQuoted()
}

// Describe returns a human-readable description of the wait step.
func (s *WaitForWindowStep) Describe() string {
	return "waitForWindow: \"" + s.Title + "\""
}

// Describe returns a human-readable description of the run protocol step.
func (s *RunProtocolStep) Describe() string {
	if s.File != "" {
		return "runProtocol: " + s.File
	}
	return "runProtocol"
}
