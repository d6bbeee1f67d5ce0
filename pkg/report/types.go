// Package report renders replay results as JSON and plain-text documents.
//
// The JSON document (report.json) is the machine-readable record of one
// replay run: per-protocol entries with per-step command details. The text
// rendering is the human summary the CLI prints and stores alongside it.
package report

import (
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status is the report rendering of an execution status.
type Status string

// Status values.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusWarned  Status = "warned"
	StatusSkipped Status = "skipped"
)

// statusOf converts a core status into its report rendering.
func statusOf(s core.StepStatus) Status {
	return Status(s.String())
}

// Report is the top-level document for one replay run.
type Report struct {
	Version    string     `json:"version"`
	RunID      string     `json:"runId"`
	Name       string     `json:"name,omitempty"`
	App        string     `json:"app,omitempty"`
	Automator  RunnerInfo `json:"automator"`
	Status     Status     `json:"status"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    time.Time  `json:"endTime"`
	DurationMs int64      `json:"durationMs"`
	Summary    Summary    `json:"summary"`
	Runs       []RunEntry `json:"runs"`
}

// RunnerInfo identifies the binary and driver that produced a report.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // ax, mock, snapshot
}

// Summary contains aggregated run counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Flaky   int `json:"flaky,omitempty"`
}

// RunEntry is one replayed protocol.
type RunEntry struct {
	Index      int             `json:"index"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SourceFile string          `json:"sourceFile,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Status     Status          `json:"status"`
	StartTime  time.Time       `json:"startTime"`
	DurationMs int64           `json:"durationMs"`
	Steps      StepSummary     `json:"steps"`
	Error      string          `json:"error,omitempty"`
	Commands   []CommandEntry  `json:"commands"`
	Artifacts  []ArtifactEntry `json:"artifacts,omitempty"`
}

// ArtifactEntry points at a debug attachment stored next to the report.
type ArtifactEntry struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
}

// StepSummary contains step counts for one run.
type StepSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Warned  int `json:"warned"`
	Flaky   int `json:"flaky,omitempty"`
}

// CommandEntry is one executed step.
type CommandEntry struct {
	ID         string               `json:"id"`
	Index      int                  `json:"index"`
	Type       string               `json:"type"`
	Label      string               `json:"label,omitempty"`
	Detail     string               `json:"detail,omitempty"` // step description from the protocol
	Status     Status               `json:"status"`
	DurationMs int64                `json:"durationMs"`
	Message    string               `json:"message,omitempty"`
	Value      *core.Value          `json:"value,omitempty"`
	Element    *core.ElementSummary `json:"element,omitempty"`
	Error      *ErrorEntry          `json:"error,omitempty"`

	// Retry tracking
	Attempts int      `json:"attempts,omitempty"` // total attempts when retried
	Flaky    bool     `json:"flaky,omitempty"`    // passed only after retrying
	Retries  []string `json:"retries,omitempty"`  // errors of earlier attempts

	// Strategy trail behind the command, in attempt order
	Strategies []StrategyEntry `json:"strategies,omitempty"`

	// Nested results for repeat, retry and inline protocols
	SubCommands []CommandEntry `json:"subCommands,omitempty"`
}

// ErrorEntry contains error details for a failed command.
type ErrorEntry struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// StrategyEntry is one entry of the strategy trail behind a command.
type StrategyEntry struct {
	Strategy   string `json:"strategy"`
	Succeeded  bool   `json:"succeeded"`
	ErrorKind  string `json:"errorKind,omitempty"`
	DurationMs int64  `json:"durationMs"`
}
