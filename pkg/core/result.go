package core

import (
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
)

// StrategyAttempt records one strategy's outcome inside a chain run.
// Chains keep the full trail so failures show exactly what was tried.
type StrategyAttempt struct {
	StrategyID string        `json:"strategyId"`
	Succeeded  bool          `json:"succeeded"`
	Value      *Value        `json:"value,omitempty"`
	ErrorKind  string        `json:"errorKind,omitempty"` // code of the absorbed error
	Duration   time.Duration `json:"duration"`
}

// CommandResult represents the outcome of one get/set command against an
// element (a region value read, a volume write, a move).
type CommandResult struct {
	// Core outcome
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Value produced by a get, or the verified value after a set
	Value *Value `json:"value,omitempty"`

	// Element information
	Element *ElementSummary `json:"element,omitempty"`

	// Strategy trail, in attempt order
	Attempts []StrategyAttempt `json:"attempts,omitempty"`
}

// RegionValues is an immutable snapshot of a region's logical control
// values. A new snapshot is built per query; it is never mutated in place.
type RegionValues struct {
	Volume     float64       `json:"volume"`
	Pan        float64       `json:"pan"` // -1 (left) .. 1 (right)
	StartTime  time.Duration `json:"startTime"`
	EndTime    time.Duration `json:"endTime"`
	Velocity   int           `json:"velocity"` // 1..127
	Pitch      int           `json:"pitch"`    // semitones, -24..24
	Position   Point         `json:"position"`
	Size       Size          `json:"size"`
	Properties AttributeSet  `json:"properties,omitempty"`
}

// StepResult captures the complete outcome of executing a single step
type StepResult struct {
	// Identity
	Step    protocol.Step `json:"-"`       // Reference to the step definition
	Index   int           `json:"index"`   // 0-based position in protocol
	Command string        `json:"command"` // Step type: setVolume, wait, etc.

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string          `json:"message,omitempty"`
	Element *ElementSummary `json:"element,omitempty"`
	Value   *Value          `json:"value,omitempty"`

	// Strategy trail from the underlying command, if any
	Attempts []StrategyAttempt `json:"attempts,omitempty"`

	// Error Details
	Error string `json:"error,omitempty"`

	// Retry Tracking
	Attempt     int      `json:"attempt"`               // Current attempt (1-based)
	MaxAttempts int      `json:"maxAttempts"`           // Configured max retries + 1
	RetryErrors []string `json:"retryErrors,omitempty"` // Errors from previous attempts
	Flaky       bool     `json:"flaky,omitempty"`       // True if passed after retry

	// Nested results (for repeat, retry)
	Iterations []StepResult `json:"iterations,omitempty"`
}

// RunResult captures the complete outcome of replaying one protocol
type RunResult struct {
	// Identity
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`

	// Status (aggregated from steps)
	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`
	FlakySteps   int `json:"flakySteps,omitempty"`

	// Error info (if replay failed)
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	// Debug artifacts captured after the run finished
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (r *RunResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0
	r.SkippedSteps = 0
	r.WarnedSteps = 0
	r.FlakySteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
		case StatusSkipped:
			r.SkippedSteps++
		case StatusWarned:
			r.WarnedSteps++
		}
		if step.Flaky {
			r.FlakySteps++
		}
	}
}

// hasFailure checks if any step in the slice has failed or errored
func hasFailure(steps []StepResult) bool {
	for _, step := range steps {
		if step.Status == StatusFailed || step.Status == StatusErrored {
			return true
		}
	}
	return false
}

// hasWarning checks if any step in the slice has warned status
func hasWarning(steps []StepResult) bool {
	for _, step := range steps {
		if step.Status == StatusWarned {
			return true
		}
	}
	return false
}

// AggregateStatus determines the run status from step results
// Rules:
// - Any failed/errored step (non-optional) → StatusFailed
// - All passed (with optional warned) → StatusPassed
func (r *RunResult) AggregateStatus() StepStatus {
	if hasFailure(r.Steps) {
		return StatusFailed
	}
	if hasWarning(r.Steps) {
		return StatusWarned
	}
	return StatusPassed
}

// SuiteResult captures the complete outcome of replaying multiple protocols
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"` // Unique execution ID

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Runs []RunResult `json:"runs"`

	// Summary
	TotalRuns   int `json:"totalRuns"`
	PassedRuns  int `json:"passedRuns"`
	FailedRuns  int `json:"failedRuns"`
	SkippedRuns int `json:"skippedRuns"`
	FlakyRuns   int `json:"flakyRuns,omitempty"`
}

// ComputeSummary calculates run counts from the Runs slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalRuns = len(s.Runs)
	s.PassedRuns = 0
	s.FailedRuns = 0
	s.SkippedRuns = 0
	s.FlakyRuns = 0

	for _, run := range s.Runs {
		switch run.Status {
		case StatusPassed, StatusWarned:
			s.PassedRuns++
		case StatusFailed, StatusErrored:
			s.FailedRuns++
		case StatusSkipped:
			s.SkippedRuns++
		}
		if run.FlakySteps > 0 {
			s.FlakyRuns++
		}
	}
}

// Success returns true if all runs passed (including warned)
func (s *SuiteResult) Success() bool {
	for _, run := range s.Runs {
		if !run.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Runs) > 0
}
