package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Config describes the run a report is built for.
type Config struct {
	App     string // target application name
	Version string // automator version
	Driver  string // driver name: ax, mock, snapshot
}

// Build converts a finished suite result into a report document.
func Build(suite *core.SuiteResult, cfg Config) *Report {
	r := &Report{
		Version:    Version,
		RunID:      suite.RunID,
		Name:       suite.Name,
		App:        cfg.App,
		Automator:  RunnerInfo{Version: cfg.Version, Driver: cfg.Driver},
		Status:     suiteStatus(suite),
		StartTime:  suite.StartTime,
		EndTime:    suite.StartTime.Add(suite.Duration),
		DurationMs: suite.Duration.Milliseconds(),
		Summary: Summary{
			Total:   suite.TotalRuns,
			Passed:  suite.PassedRuns,
			Failed:  suite.FailedRuns,
			Skipped: suite.SkippedRuns,
			Flaky:   suite.FlakyRuns,
		},
		Runs: make([]RunEntry, len(suite.Runs)),
	}

	for i := range suite.Runs {
		r.Runs[i] = buildRun(i, &suite.Runs[i])
	}

	return r
}

// suiteStatus collapses the run statuses into one report status.
func suiteStatus(suite *core.SuiteResult) Status {
	if suite.FailedRuns > 0 {
		return StatusFailed
	}
	if suite.PassedRuns == 0 && suite.SkippedRuns > 0 {
		return StatusSkipped
	}
	return StatusPassed
}

func buildRun(index int, run *core.RunResult) RunEntry {
	return RunEntry{
		Index:      index,
		ID:         fmt.Sprintf("run-%03d", index),
		Name:       run.Name,
		SourceFile: run.FilePath,
		Tags:       run.Tags,
		Status:     statusOf(run.Status),
		StartTime:  run.StartTime,
		DurationMs: run.Duration.Milliseconds(),
		Steps: StepSummary{
			Total:   run.TotalSteps,
			Passed:  run.PassedSteps,
			Failed:  run.FailedSteps,
			Skipped: run.SkippedSteps,
			Warned:  run.WarnedSteps,
			Flaky:   run.FlakySteps,
		},
		Error:     run.Error,
		Commands:  buildCommands(run.Steps),
		Artifacts: buildArtifacts(run.Attachments),
	}
}

func buildArtifacts(attachments []core.Attachment) []ArtifactEntry {
	if len(attachments) == 0 {
		return nil
	}
	entries := make([]ArtifactEntry, len(attachments))
	for i, att := range attachments {
		entries[i] = ArtifactEntry{
			Name:        att.Name,
			ContentType: att.ContentType,
			Path:        att.Path,
		}
	}
	return entries
}

// buildCommands converts step results, recursing into repeat and retry
// iterations.
func buildCommands(steps []core.StepResult) []CommandEntry {
	if len(steps) == 0 {
		return nil
	}
	commands := make([]CommandEntry, len(steps))
	for i := range steps {
		commands[i] = buildCommand(i, &steps[i])
	}
	return commands
}

func buildCommand(index int, sr *core.StepResult) CommandEntry {
	cmd := CommandEntry{
		ID:          fmt.Sprintf("cmd-%03d", index),
		Index:       index,
		Type:        sr.Command,
		Status:      statusOf(sr.Status),
		DurationMs:  sr.Duration.Milliseconds(),
		Message:     sr.Message,
		Value:       sr.Value,
		Element:     sr.Element,
		Flaky:       sr.Flaky,
		Retries:     sr.RetryErrors,
		Strategies:  buildStrategies(sr.Attempts),
		SubCommands: buildCommands(sr.Iterations),
	}

	if sr.Step != nil {
		cmd.Label = sr.Step.Label()
		cmd.Detail = sr.Step.Describe()
	}
	if sr.Attempt > 1 {
		cmd.Attempts = sr.Attempt
	}

	if sr.Error != "" {
		cmd.Error = &ErrorEntry{
			Category: sr.Category.String(),
			Message:  sr.Error,
		}
	}

	return cmd
}

func buildStrategies(attempts []core.StrategyAttempt) []StrategyEntry {
	if len(attempts) == 0 {
		return nil
	}
	entries := make([]StrategyEntry, len(attempts))
	for i, a := range attempts {
		entries[i] = StrategyEntry{
			Strategy:   a.StrategyID,
			Succeeded:  a.Succeeded,
			ErrorKind:  a.ErrorKind,
			DurationMs: a.Duration.Milliseconds(),
		}
	}
	return entries
}

// Write stores the JSON document and its text rendering under dir as
// report.json and report.txt.
func Write(dir string, r *Report) error {
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(dir, "report.json"), r); err != nil {
		return fmt.Errorf("write report.json: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, r); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report.txt: %w", err)
	}
	return nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes JSON via a temp file and rename, so a reader
// polling the path never observes a half-written document.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
