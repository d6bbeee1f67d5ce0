package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/control"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

const (
	// windowPollInterval is how often waitForWindow re-queries the tree.
	windowPollInterval = 100 * time.Millisecond

	// defaultWindowTimeout bounds waitForWindow when the step sets none.
	defaultWindowTimeout = 5 * time.Second

	// maxWhileIterations caps while-loops so a condition that never
	// flips cannot hang a replay.
	maxWhileIterations = 1000
)

// ProtocolRunner executes the steps of a single protocol against one
// application tree. It is created per protocol by Runner and not reused.
type ProtocolRunner struct {
	ctx      context.Context
	proto    *protocol.Protocol
	root     core.Element
	controls *control.Controller
	typer    *input.Typer
	script   *ScriptEngine
	config   RunnerConfig

	depth    int // nesting depth for runProtocol
	protoIdx int // position in the suite (0-based)
	total    int // suite size

	// nested collects sub-results while a compound step dispatches
	nested []core.StepResult
}

// Run executes all steps and returns the per-protocol result.
func (pr *ProtocolRunner) Run() core.RunResult {
	run := core.RunResult{
		Name:      displayName(pr.proto),
		FilePath:  pr.proto.SourcePath,
		Tags:      pr.proto.Config.Tags,
		StartTime: time.Now(),
	}

	pr.script.SetProtocolDir(filepath.Dir(pr.proto.SourcePath))
	pr.script.ImportSystemEnv()
	if app := pr.proto.Config.App; app != "" {
		pr.script.SetApp(app)
		pr.script.SetVariable("APP", app)
	}
	pr.script.SetVariables(pr.proto.Config.Env)
	pr.script.SetVariables(pr.config.Env)

	if pr.config.OnProtocolStart != nil {
		pr.config.OnProtocolStart(pr.protoIdx, pr.total, run.Name, filepath.Base(pr.proto.SourcePath))
	}

	failed := false
	cancelled := false
	for i, step := range pr.proto.Steps {
		if cancelled {
			run.Steps = append(run.Steps, skippedStep(i, step, "replay cancelled"))
			continue
		}
		if failed {
			run.Steps = append(run.Steps, skippedStep(i, step, "earlier step failed"))
			continue
		}
		if pr.ctx.Err() != nil {
			cancelled = true
			run.Steps = append(run.Steps, skippedStep(i, step, "replay cancelled"))
			continue
		}

		sr := pr.runStep(i, step)
		run.Steps = append(run.Steps, sr)

		if pr.config.OnStepComplete != nil {
			pr.config.OnStepComplete(i, step.Describe(), sr.Status, sr.Duration, sr.Error)
		}

		if sr.Status == core.StatusFailed || sr.Status == core.StatusErrored {
			run.Error = sr.Error
			failed = true
		}
	}

	run.Duration = time.Since(run.StartTime)
	run.ComputeSummary()
	if cancelled {
		run.Status = core.StatusSkipped
		run.Error = "replay cancelled"
	} else {
		run.Status = run.AggregateStatus()
	}

	if pr.config.OnProtocolEnd != nil {
		pr.config.OnProtocolEnd(run.Name, run.Status, run.Duration)
	}

	return run
}

// runStep executes one top-level step with retry handling. Optional and
// compound steps never retry; their inner steps manage their own policy.
func (pr *ProtocolRunner) runStep(idx int, step protocol.Step) core.StepResult {
	maxAttempts := 1
	if pr.config.Retries > 0 && !step.IsOptional() && !isCompound(step) {
		maxAttempts = pr.config.Retries + 1
	}

	var retryErrors []string
	for attempt := 1; ; attempt++ {
		sr := pr.executeStep(idx, step)
		sr.Attempt = attempt
		sr.MaxAttempts = maxAttempts
		sr.RetryErrors = retryErrors

		if sr.Status != core.StatusFailed && sr.Status != core.StatusErrored {
			sr.Flaky = attempt > 1 && sr.Status == core.StatusPassed
			return sr
		}
		if attempt >= maxAttempts {
			return sr
		}

		retryErrors = append(retryErrors, sr.Error)
		logger.Debug("step %d %q failed (attempt %d/%d), retrying: %s",
			idx+1, step.Describe(), attempt, maxAttempts, sr.Error)
	}
}

// executeStep runs one step once, applying its per-step timeout and
// variable expansion, and converts the outcome into a StepResult.
func (pr *ProtocolRunner) executeStep(idx int, step protocol.Step) core.StepResult {
	ctx := pr.ctx
	if d := step.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	pr.script.ExpandStep(step)

	start := time.Now()

	var res *core.CommandResult
	var subs []core.StepResult
	if isCompound(step) {
		// Compound steps report their inner steps as iterations. The
		// nested collector must be read before any parent appends to it.
		pr.nested = nil
		res = pr.dispatch(ctx, step)
		subs = pr.nested
		pr.nested = nil
	} else {
		res = pr.dispatch(ctx, step)
	}

	sr := newStepResult(idx, step, res, start)
	sr.Iterations = subs
	return sr
}

// dispatch routes a step to its handler.
func (pr *ProtocolRunner) dispatch(ctx context.Context, step protocol.Step) *core.CommandResult {
	switch s := step.(type) {
	case *protocol.DefineVariablesStep:
		return pr.script.ExecuteDefineVariables(s)
	case *protocol.RunScriptStep:
		return pr.script.ExecuteRunScript(s)
	case *protocol.EvalScriptStep:
		return pr.script.ExecuteEvalScript(s)
	case *protocol.AssertTrueStep:
		return pr.script.ExecuteAssertTrue(s)
	case *protocol.RepeatStep:
		return pr.executeRepeat(ctx, s)
	case *protocol.RetryStep:
		return pr.executeRetry(ctx, s)
	case *protocol.RunProtocolStep:
		return pr.executeRunProtocol(ctx, s)
	default:
		return pr.executeCommand(ctx, step)
	}
}

// executeCommand handles the leaf steps that touch the application tree.
func (pr *ProtocolRunner) executeCommand(ctx context.Context, step protocol.Step) *core.CommandResult {
	switch s := step.(type) {
	case *protocol.SetVolumeStep:
		return pr.executeSetControl(ctx, &s.Target, "volume", s.Value)
	case *protocol.SetPanStep:
		return pr.executeSetControl(ctx, &s.Target, "pan", s.Value)
	case *protocol.SetVelocityStep:
		return pr.executeSetControl(ctx, &s.Target, "velocity", s.Value)
	case *protocol.SetPitchStep:
		return pr.executeSetControl(ctx, &s.Target, "pitch", s.Value)
	case *protocol.MoveRegionStep:
		return pr.executeMoveRegion(ctx, s)
	case *protocol.ResizeRegionStep:
		return pr.executeResizeRegion(ctx, s)
	case *protocol.GetValuesStep:
		return pr.executeGetValues(ctx, s)
	case *protocol.ClickStep:
		return pr.executeClick(ctx, s)
	case *protocol.TypeTextStep:
		return pr.executeTypeText(ctx, s)
	case *protocol.PressKeyStep:
		return pr.executePressKey(ctx, s)
	case *protocol.AssertValueStep:
		return pr.executeAssertValue(ctx, s)
	case *protocol.AssertVisibleStep:
		return pr.executeAssertVisible(s)
	case *protocol.WaitStep:
		return pr.executeWait(ctx, s)
	case *protocol.WaitForWindowStep:
		return pr.executeWaitForWindow(ctx, s)
	case *protocol.UnsupportedStep:
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrUnknownStep.WithMessage(s.Reason),
			Message: s.Describe(),
		}
	default:
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrUnknownStep.WithDetails(map[string]interface{}{"type": string(step.Type())}),
			Message: fmt.Sprintf("no handler for step type %q", step.Type()),
		}
	}
}

// resolveTarget finds the element a target describes, first-match in
// pre-order from the application root.
func (pr *ProtocolRunner) resolveTarget(t *protocol.Target) (core.Element, *core.CommandResult) {
	if t == nil || t.IsEmpty() {
		return nil, &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidProtocol.WithMessage("step requires a target"),
			Message: "no target specified",
		}
	}

	q := tree.Query{Description: t.Description, Role: t.Role, MaxDepth: t.MaxDepth}
	el, ok := tree.Find(pr.root, q)
	if !ok {
		return nil, &core.CommandResult{
			Success: false,
			Error:   core.ErrControlNotFound.WithDetails(map[string]interface{}{"target": t.Describe()}),
			Message: "no element matching " + t.DescribeQuoted(),
		}
	}
	return el, nil
}

// executeSetControl writes one named region control (volume, pan,
// velocity, pitch) through the strategy chain.
func (pr *ProtocolRunner) executeSetControl(ctx context.Context, target *protocol.Target, name, raw string) *core.CommandResult {
	if _, ok := control.ByName(name); !ok {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidProtocol.WithMessage(fmt.Sprintf("unknown control %q", name)),
			Message: "unknown control " + strconv.Quote(name),
		}
	}

	el, fail := pr.resolveTarget(target)
	if fail != nil {
		return fail
	}

	value, err := pr.script.ParseFloat(raw)
	if err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: "invalid " + name + " value " + strconv.Quote(raw),
		}
	}

	var res *core.CommandResult
	switch name {
	case "volume":
		res, _ = pr.controls.SetRegionVolume(ctx, el, value)
	case "pan":
		res, _ = pr.controls.SetRegionPan(ctx, el, value)
	case "velocity":
		res, _ = pr.controls.SetRegionVelocity(ctx, el, int(value))
	case "pitch":
		res, _ = pr.controls.SetRegionPitch(ctx, el, int(value))
	}
	return res
}

func (pr *ProtocolRunner) executeMoveRegion(ctx context.Context, s *protocol.MoveRegionStep) *core.CommandResult {
	el, fail := pr.resolveTarget(&s.Target)
	if fail != nil {
		return fail
	}

	x, errX := pr.script.ParseFloat(s.X)
	y, errY := pr.script.ParseFloat(s.Y)
	if errX != nil || errY != nil {
		err := errX
		if err == nil {
			err = errY
		}
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("invalid position (%s, %s)", s.X, s.Y),
		}
	}

	res, _ := pr.controls.MoveRegion(ctx, el, core.Point{X: x, Y: y})
	return res
}

func (pr *ProtocolRunner) executeResizeRegion(ctx context.Context, s *protocol.ResizeRegionStep) *core.CommandResult {
	el, fail := pr.resolveTarget(&s.Target)
	if fail != nil {
		return fail
	}

	w, errW := pr.script.ParseFloat(s.Width)
	h, errH := pr.script.ParseFloat(s.Height)
	if errW != nil || errH != nil {
		err := errW
		if err == nil {
			err = errH
		}
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("invalid size (%s, %s)", s.Width, s.Height),
		}
	}

	res, _ := pr.controls.ResizeRegion(ctx, el, core.Size{Width: w, Height: h})
	return res
}

// executeGetValues snapshots a region and publishes it to scripts as
// automator.lastValues, plus a named variable when the step asks for one.
func (pr *ProtocolRunner) executeGetValues(ctx context.Context, s *protocol.GetValuesStep) *core.CommandResult {
	el, fail := pr.resolveTarget(&s.Target)
	if fail != nil {
		return fail
	}

	rv, res, err := pr.controls.GetRegionValues(ctx, el)
	if err != nil {
		return res
	}

	pr.script.SetLastValues(rv)
	if s.Variable != "" {
		if data, merr := json.Marshal(rv); merr == nil {
			pr.script.SetVariable(s.Variable, string(data))
		}
	}
	return res
}

func (pr *ProtocolRunner) executeClick(ctx context.Context, s *protocol.ClickStep) *core.CommandResult {
	el, fail := pr.resolveTarget(&s.Target)
	if fail != nil {
		return fail
	}
	if err := ctx.Err(); err != nil {
		return &core.CommandResult{Success: false, Error: err, Message: "click cancelled"}
	}

	if err := el.Perform(core.ActionPress); err != nil {
		var ae *core.AutomationError
		if !errors.As(err, &ae) {
			err = core.ErrActionFailed.WithCause(err)
		}
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: "press failed on " + s.Target.DescribeQuoted(),
			Element: tree.Summarize(el),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "clicked " + s.Target.DescribeQuoted(),
		Element: tree.Summarize(el),
	}
}

func (pr *ProtocolRunner) executeTypeText(ctx context.Context, s *protocol.TypeTextStep) *core.CommandResult {
	var el core.Element
	if s.Target != nil && !s.Target.IsEmpty() {
		var fail *core.CommandResult
		el, fail = pr.resolveTarget(s.Target)
		if fail != nil {
			return fail
		}
	}

	confirm := s.Confirm == nil || *s.Confirm
	if err := pr.typer.TypeValue(ctx, el, s.Text, confirm); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("typing failed: %v", err),
		}
	}

	res := &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("typed %q", s.Text),
	}
	if el != nil {
		res.Element = tree.Summarize(el)
	}
	return res
}

func (pr *ProtocolRunner) executePressKey(ctx context.Context, s *protocol.PressKeyStep) *core.CommandResult {
	key, ok := input.KeyByName(s.Key)
	if !ok {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidProtocol.WithMessage(fmt.Sprintf("unknown key %q", s.Key)),
			Message: fmt.Sprintf("unknown key %q", s.Key),
		}
	}

	if err := pr.typer.Press(ctx, key); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("pressing %s failed: %v", s.Key, err),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "pressed " + s.Key,
	}
}

func (pr *ProtocolRunner) executeAssertValue(ctx context.Context, s *protocol.AssertValueStep) *core.CommandResult {
	spec, ok := control.ByName(s.Control)
	if !ok {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidProtocol.WithMessage(fmt.Sprintf("unknown control %q", s.Control)),
			Message: fmt.Sprintf("unknown control %q", s.Control),
		}
	}

	el, fail := pr.resolveTarget(&s.Target)
	if fail != nil {
		return fail
	}

	want, err := pr.script.ParseFloat(s.Expected)
	if err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: "invalid expected value " + strconv.Quote(s.Expected),
		}
	}

	got, attempts, err := pr.controls.GetValue(ctx, el, spec)
	if err != nil {
		return &core.CommandResult{
			Success:  false,
			Error:    err,
			Message:  "cannot read " + spec.Name,
			Element:  tree.Summarize(el),
			Attempts: attempts,
		}
	}

	matched := spec.Verify(got, want)
	if s.Tolerance > 0 {
		matched = math.Abs(got-want) <= s.Tolerance
	}
	if !matched {
		return &core.CommandResult{
			Success:  false,
			Error:    fmt.Errorf("%s is %s, want %s", spec.Name, spec.Format(got), spec.Format(want)),
			Message:  fmt.Sprintf("%s is %s, want %s", spec.Name, spec.Format(got), spec.Format(want)),
			Element:  tree.Summarize(el),
			Attempts: attempts,
		}
	}

	v := core.NumberValue(got)
	return &core.CommandResult{
		Success:  true,
		Message:  spec.Name + " = " + spec.Format(got),
		Value:    &v,
		Element:  tree.Summarize(el),
		Attempts: attempts,
	}
}

func (pr *ProtocolRunner) executeAssertVisible(s *protocol.AssertVisibleStep) *core.CommandResult {
	el, fail := pr.resolveTarget(&s.Target)
	if fail != nil {
		return fail
	}

	return &core.CommandResult{
		Success: true,
		Message: s.Target.DescribeQuoted() + " is visible",
		Element: tree.Summarize(el),
	}
}

func (pr *ProtocolRunner) executeWait(ctx context.Context, s *protocol.WaitStep) *core.CommandResult {
	if err := sleepFor(ctx, time.Duration(s.Ms)*time.Millisecond); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: "wait interrupted",
		}
	}
	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("waited %dms", s.Ms),
	}
}

// executeWaitForWindow polls the tree until a window with the given
// title appears or the deadline passes.
func (pr *ProtocolRunner) executeWaitForWindow(ctx context.Context, s *protocol.WaitForWindowStep) *core.CommandResult {
	q := tree.Query{Description: s.Title, Role: "AXWindow"}

	timeout := s.Timeout()
	if timeout <= 0 {
		timeout = defaultWindowTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if el, ok := tree.Find(pr.root, q); ok {
			return &core.CommandResult{
				Success: true,
				Message: fmt.Sprintf("window %q appeared", s.Title),
				Element: tree.Summarize(el),
			}
		}
		if err := sleepFor(waitCtx, windowPollInterval); err != nil {
			return &core.CommandResult{
				Success: false,
				Error:   core.ErrTimeout.WithDetails(map[string]interface{}{"window": s.Title}),
				Message: fmt.Sprintf("window %q did not appear", s.Title),
			}
		}
	}
}

// executeRepeat runs the nested steps a fixed number of times, or while
// a condition holds. A non-optional inner failure stops the loop.
func (pr *ProtocolRunner) executeRepeat(ctx context.Context, s *protocol.RepeatStep) *core.CommandResult {
	times := pr.script.ParseInt(s.Times, 1)
	hasWhile := s.While.Visible != nil || s.While.NotVisible != nil || s.While.Script != ""
	if hasWhile && (s.Times == "" || times <= 0) {
		times = maxWhileIterations
	}
	if times < 0 {
		times = 0
	}

	iterations := 0
	for i := 0; i < times; i++ {
		if err := ctx.Err(); err != nil {
			return &core.CommandResult{Success: false, Error: err, Message: "repeat cancelled"}
		}
		if hasWhile && !pr.checkCondition(s.While) {
			break
		}

		iterations++
		for _, inner := range s.Steps {
			res := pr.executeNestedStep(ctx, inner)
			if res != nil && !res.Success && !inner.IsOptional() {
				return res
			}
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("repeat completed (%d iterations)", iterations),
	}
}

// executeRetry runs the nested steps (or a referenced protocol file) up
// to maxRetries times until one full pass succeeds.
func (pr *ProtocolRunner) executeRetry(ctx context.Context, s *protocol.RetryStep) *core.CommandResult {
	maxRetries := pr.script.ParseInt(s.MaxRetries, 3)
	if maxRetries < 1 {
		maxRetries = 1
	}
	restore := pr.script.withEnvVars(s.Env)
	defer restore()

	if s.File != "" && len(s.Steps) == 0 {
		path := pr.script.ResolvePath(s.File)
		sub, err := protocol.ParseFile(path)
		if err != nil {
			return &core.CommandResult{
				Success: false,
				Error:   err,
				Message: "cannot parse protocol file " + path,
			}
		}
		return pr.executeSubProtocolWithRetry(ctx, sub, maxRetries)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &core.CommandResult{Success: false, Error: err, Message: "retry cancelled"}
		}

		lastErr = nil
		for _, inner := range s.Steps {
			res := pr.executeNestedStep(ctx, inner)
			if res != nil && !res.Success && !inner.IsOptional() {
				lastErr = res.Error
				if lastErr == nil {
					lastErr = fmt.Errorf("%s", res.Message)
				}
				break
			}
		}
		if lastErr == nil {
			return &core.CommandResult{
				Success: true,
				Message: fmt.Sprintf("retry succeeded on attempt %d", attempt),
			}
		}
	}

	return &core.CommandResult{
		Success: false,
		Error:   lastErr,
		Message: fmt.Sprintf("retry failed after %d attempts", maxRetries),
	}
}

// executeRunProtocol runs another protocol inline or from a file, with
// an optional when-condition gate.
func (pr *ProtocolRunner) executeRunProtocol(ctx context.Context, s *protocol.RunProtocolStep) *core.CommandResult {
	if s.When != nil && !pr.checkCondition(*s.When) {
		return &core.CommandResult{
			Success: true,
			Message: "skipped (when condition not met)",
		}
	}

	if s.File != "" && pr.config.OnNestedProtocolStart != nil {
		pr.config.OnNestedProtocolStart(pr.depth+1, "run "+s.File)
	}

	pr.depth++
	defer func() { pr.depth-- }()

	restore := pr.script.withEnvVars(s.Env)
	defer restore()

	if len(s.Steps) > 0 {
		for _, inner := range s.Steps {
			if err := ctx.Err(); err != nil {
				return &core.CommandResult{Success: false, Error: err, Message: "sub-protocol cancelled"}
			}
			res := pr.executeNestedStep(ctx, inner)
			if res != nil && !res.Success && !inner.IsOptional() {
				return res
			}
		}
		return &core.CommandResult{
			Success: true,
			Message: "inline protocol completed",
		}
	}

	if s.File == "" {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrInvalidProtocol.WithMessage("runProtocol requires file or inline steps"),
			Message: "runProtocol requires file or inline steps",
		}
	}

	path := pr.script.ResolvePath(s.File)
	sub, err := protocol.ParseFile(path)
	if err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: "cannot parse protocol file " + path,
		}
	}
	return pr.executeSubProtocol(ctx, sub)
}

// executeNestedStep runs a step inside a compound construct, records it
// in the nested collector, and returns the raw command outcome. A nested
// compound swaps the collector out before dispatch so its own children
// attach to it rather than to the parent's list.
func (pr *ProtocolRunner) executeNestedStep(ctx context.Context, step protocol.Step) *core.CommandResult {
	if d := step.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	pr.script.ExpandStep(step)

	start := time.Now()

	var result *core.CommandResult
	var subs []core.StepResult
	if isCompound(step) {
		parentSubs := pr.nested
		pr.nested = nil
		result = pr.dispatch(ctx, step)
		subs = pr.nested
		pr.nested = parentSubs
	} else {
		result = pr.dispatch(ctx, step)
	}

	sr := newStepResult(len(pr.nested), step, result, start)
	sr.Iterations = subs

	if pr.config.OnNestedStep != nil && pr.depth > 0 {
		errMsg := sr.Error
		pr.config.OnNestedStep(pr.depth, step.Describe(), result == nil || result.Success, sr.Duration, errMsg)
	}

	pr.nested = append(pr.nested, sr)
	return result
}

// executeSubProtocol runs a parsed protocol file's steps in the current
// session, scoping its env and relative-path base to the file.
func (pr *ProtocolRunner) executeSubProtocol(ctx context.Context, sub *protocol.Protocol) *core.CommandResult {
	savedDir := pr.script.protocolDir
	pr.script.SetProtocolDir(filepath.Dir(sub.SourcePath))
	defer pr.script.SetProtocolDir(savedDir)

	restore := pr.script.withEnvVars(sub.Config.Env)
	defer restore()

	for _, inner := range sub.Steps {
		if err := ctx.Err(); err != nil {
			return &core.CommandResult{Success: false, Error: err, Message: "sub-protocol cancelled"}
		}
		res := pr.executeNestedStep(ctx, inner)
		if res != nil && !res.Success && !inner.IsOptional() {
			return res
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("sub-protocol %q completed", displayName(sub)),
	}
}

func (pr *ProtocolRunner) executeSubProtocolWithRetry(ctx context.Context, sub *protocol.Protocol, maxRetries int) *core.CommandResult {
	var last *core.CommandResult
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &core.CommandResult{Success: false, Error: err, Message: "retry cancelled"}
		}

		last = pr.executeSubProtocol(ctx, sub)
		if last.Success {
			if attempt > 1 {
				last.Message = fmt.Sprintf("retry succeeded on attempt %d", attempt)
			}
			return last
		}
	}

	return &core.CommandResult{
		Success: false,
		Error:   last.Error,
		Message: fmt.Sprintf("retry failed after %d attempts", maxRetries),
	}
}

// checkCondition evaluates a visibility or script condition. Evaluation
// errors count as false.
func (pr *ProtocolRunner) checkCondition(cond protocol.Condition) bool {
	if cond.Visible != nil {
		t := pr.script.expandTarget(cond.Visible)
		q := tree.Query{Description: t.Description, Role: t.Role, MaxDepth: t.MaxDepth}
		_, ok := tree.Find(pr.root, q)
		if !ok {
			return false
		}
	}
	if cond.NotVisible != nil {
		t := pr.script.expandTarget(cond.NotVisible)
		q := tree.Query{Description: t.Description, Role: t.Role, MaxDepth: t.MaxDepth}
		if _, ok := tree.Find(pr.root, q); ok {
			return false
		}
	}
	if cond.Script != "" {
		ok, err := pr.script.EvalCondition(cond.Script)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// isCompound reports whether a step contains nested steps.
func isCompound(step protocol.Step) bool {
	switch step.Type() {
	case protocol.StepRepeat, protocol.StepRetry, protocol.StepRunProtocol:
		return true
	default:
		return false
	}
}

// skippedStep builds a result for a step that never ran.
func skippedStep(idx int, step protocol.Step, reason string) core.StepResult {
	return core.StepResult{
		Step:      step,
		Index:     idx,
		Command:   string(step.Type()),
		Status:    core.StatusSkipped,
		StartTime: time.Now(),
		Message:   reason,
	}
}

// displayName picks the best human name for a protocol.
func displayName(p *protocol.Protocol) string {
	if p.Config.Name != "" {
		return p.Config.Name
	}
	if p.SourcePath != "" {
		base := filepath.Base(p.SourcePath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "protocol"
}

// sleepFor sleeps for d or until the context is done.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
