// Package executor orchestrates protocol replay, connecting drivers,
// controls and synthetic input to per-step results.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tonyatml/logic-automator-sub001/pkg/control"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
)

// RunnerConfig holds replay configuration.
type RunnerConfig struct {
	// PID of the target application process
	PID int

	// StopOnFail stops the suite after the first failed protocol
	StopOnFail bool

	// Retries is the number of retries per failed step (0 = no retry)
	Retries int

	// Timing controls synthetic input pacing; the zero value means no
	// waits, which is what tests want
	Timing input.Timing

	// Timeouts bounds strategy attempts; zero value means defaults
	Timeouts control.Timeouts

	// SuiteName labels the suite result
	SuiteName string

	// Env contains caller-supplied variables, applied over each
	// protocol's own env block
	Env map[string]string

	// Artifacts controls capture of debug attachments on finished runs.
	// The zero value captures nothing.
	Artifacts core.ArtifactConfig

	// Callbacks for progress reporting (optional)
	OnProtocolStart       func(idx, total int, name, file string)
	OnStepComplete        func(idx int, description string, status core.StepStatus, duration time.Duration, errMsg string)
	OnNestedStep          func(depth int, description string, success bool, duration time.Duration, errMsg string)
	OnNestedProtocolStart func(depth int, description string)
	OnProtocolEnd         func(name string, status core.StepStatus, duration time.Duration)
}

// Runner replays protocol suites against a live application.
type Runner struct {
	config RunnerConfig
	driver core.Driver
	synth  input.Synthesizer
}

// New creates a Runner for the given driver and input synthesizer.
func New(driver core.Driver, synth input.Synthesizer, config RunnerConfig) *Runner {
	return &Runner{
		config: config,
		driver: driver,
		synth:  synth,
	}
}

// Run replays all protocols in order and returns the suite result. The
// permission check runs once up front; a denied authorization fails the
// whole run before any protocol starts.
func (r *Runner) Run(ctx context.Context, protocols []*protocol.Protocol) (*core.SuiteResult, error) {
	if len(protocols) == 0 {
		return nil, fmt.Errorf("no protocols to replay")
	}

	if err := r.driver.CheckPermission(); err != nil {
		return nil, err
	}

	suite := &core.SuiteResult{
		Name:      r.config.SuiteName,
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}

	logger.Info("replay run %s started with %d protocol(s)", suite.RunID, len(protocols))

	var events *eventCollector
	if r.config.Artifacts.EventLog {
		events = newEventCollector(r.driver, suite.StartTime)
	}

	stopped := false
	for i, p := range protocols {
		if ctx.Err() != nil {
			suite.Runs = append(suite.Runs, r.skippedRun(p, "run cancelled"))
			continue
		}
		if stopped {
			suite.Runs = append(suite.Runs, r.skippedRun(p, "stopped after earlier failure"))
			continue
		}

		since := 0
		if events != nil {
			since = events.mark()
		}

		run := r.replayProtocol(ctx, p, i, len(protocols))
		if r.config.Artifacts.ShouldCapture(run.Status) {
			r.attachArtifacts(&run, i, events, since)
		}
		suite.Runs = append(suite.Runs, run)

		if r.config.StopOnFail && (run.Status == core.StatusFailed || run.Status == core.StatusErrored) {
			stopped = true
		}
	}

	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()

	logger.Info("replay run %s finished: %d passed, %d failed, %d skipped",
		suite.RunID, suite.PassedRuns, suite.FailedRuns, suite.SkippedRuns)

	return suite, nil
}

// replayProtocol runs one protocol against a fresh application root.
func (r *Runner) replayProtocol(ctx context.Context, p *protocol.Protocol, idx, total int) core.RunResult {
	root, err := r.driver.AppElement(r.config.PID)
	if err != nil {
		return core.RunResult{
			Name:      displayName(p),
			FilePath:  p.SourcePath,
			Tags:      p.Config.Tags,
			Status:    core.StatusErrored,
			StartTime: time.Now(),
			Error:     err.Error(),
			Message:   "cannot resolve application root",
		}
	}

	if err := r.driver.Activate(r.config.PID); err != nil {
		logger.Warn("cannot activate target application: %v", err)
	}

	if p.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.Config.Timeout)*time.Millisecond)
		defer cancel()
	}

	typer := input.NewTyper(r.synth, r.config.Timing)

	timeouts := r.config.Timeouts
	if timeouts == (control.Timeouts{}) {
		timeouts = control.DefaultTimeouts()
	}

	script := NewScriptEngine()
	defer script.Close()

	pr := &ProtocolRunner{
		ctx:      ctx,
		proto:    p,
		root:     root,
		controls: control.NewWithTimeouts(typer, timeouts),
		typer:    typer,
		script:   script,
		config:   r.config,
		protoIdx: idx,
		total:    total,
	}
	return pr.Run()
}

// skippedRun builds a result for a protocol that never ran.
func (r *Runner) skippedRun(p *protocol.Protocol, reason string) core.RunResult {
	return core.RunResult{
		Name:      displayName(p),
		FilePath:  p.SourcePath,
		Tags:      p.Config.Tags,
		Status:    core.StatusSkipped,
		StartTime: time.Now(),
		Message:   reason,
	}
}
