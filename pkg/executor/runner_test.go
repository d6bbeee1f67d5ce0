package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/driver/mock"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
)

func newTestDriver(t *testing.T) *mock.Driver {
	t.Helper()
	d := mock.New(mock.Config{})
	if err := d.Load(mock.DemoProject()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return d
}

func parseProtocol(t *testing.T, text string) *protocol.Protocol {
	t.Helper()
	p, err := protocol.Parse([]byte(text), "test.yaml")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	return p
}

func replay(t *testing.T, d *mock.Driver, cfg RunnerConfig, texts ...string) *core.SuiteResult {
	t.Helper()
	var protocols []*protocol.Protocol
	for _, text := range texts {
		protocols = append(protocols, parseProtocol(t, text))
	}
	r := New(d, d, cfg)
	suite, err := r.Run(context.Background(), protocols)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	return suite
}

func TestRun_AllPassed(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{SuiteName: "smoke"},
		`
- assertVisible: "Play"
- setVolume:
    target: {description: "Vocals", role: "AXLayoutItem"}
    value: "0.7"
- assertValue:
    target: {description: "Vocals", role: "AXLayoutItem"}
    control: volume
    expected: "0.7"
`,
		`
- click: "Play"
- assertVisible: "Tracks Area"
`,
	)

	if suite.Name != "smoke" {
		t.Errorf("suite.Name = %q, want %q", suite.Name, "smoke")
	}
	if suite.RunID == "" {
		t.Error("suite.RunID is empty")
	}
	if suite.TotalRuns != 2 || suite.PassedRuns != 2 {
		t.Errorf("summary = %d total %d passed, want 2/2", suite.TotalRuns, suite.PassedRuns)
	}
	for i, run := range suite.Runs {
		if run.Status != core.StatusPassed {
			t.Errorf("run %d status = %v, want passed (error: %s)", i, run.Status, run.Error)
		}
	}
	if !suite.Success() {
		t.Error("Success() = false, want true")
	}
}

func TestRun_FailedAssertionSkipsRest(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- assertValue:
    target: {description: "Vocals", role: "AXLayoutItem"}
    control: volume
    expected: "0.9"
- click: "Play"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusFailed {
		t.Fatalf("run status = %v, want failed", run.Status)
	}
	if run.Steps[0].Status != core.StatusFailed {
		t.Errorf("step 0 status = %v, want failed", run.Steps[0].Status)
	}
	if !strings.Contains(run.Steps[0].Error, "want") {
		t.Errorf("step 0 error %q does not describe the mismatch", run.Steps[0].Error)
	}
	if run.Steps[1].Status != core.StatusSkipped {
		t.Errorf("step 1 status = %v, want skipped", run.Steps[1].Status)
	}
	if run.Error == "" {
		t.Error("run.Error is empty after failure")
	}

	// The play button must not have been pressed
	btn, _ := d.ElementByKey("btn-play")
	if got := btn.Performed(); len(got) != 0 {
		t.Errorf("skipped click still performed actions: %v", got)
	}
}

func TestRun_OptionalStepWarns(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- click:
    description: "No Such Button"
    optional: true
- click: "Play"
`,
	)

	run := suite.Runs[0]
	if run.Steps[0].Status != core.StatusWarned {
		t.Errorf("optional step status = %v, want warned", run.Steps[0].Status)
	}
	if run.Steps[1].Status != core.StatusPassed {
		t.Errorf("following step status = %v, want passed", run.Steps[1].Status)
	}
	if run.Status != core.StatusWarned {
		t.Errorf("run status = %v, want warned", run.Status)
	}
	if suite.PassedRuns != 1 {
		t.Errorf("PassedRuns = %d, want 1 (warned counts as passed)", suite.PassedRuns)
	}
}

func TestRun_PermissionDenied(t *testing.T) {
	d := mock.New(mock.Config{PermissionErr: core.ErrPermissionDenied})
	if err := d.Load(mock.DemoProject()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	r := New(d, d, RunnerConfig{})
	_, err := r.Run(context.Background(), []*protocol.Protocol{
		parseProtocol(t, `- click: "Play"`),
	})
	if !errors.Is(err, core.ErrPermissionDenied) {
		t.Errorf("Run() error = %v, want ErrPermissionDenied", err)
	}
}

func TestRun_NoProtocols(t *testing.T) {
	d := newTestDriver(t)
	r := New(d, d, RunnerConfig{})
	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Error("Run() with no protocols succeeded, want error")
	}
}

func TestRun_StopOnFail(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{StopOnFail: true},
		`- click: "No Such Button"`,
		`- click: "Play"`,
	)

	if suite.Runs[0].Status != core.StatusFailed {
		t.Errorf("run 0 status = %v, want failed", suite.Runs[0].Status)
	}
	if suite.Runs[1].Status != core.StatusSkipped {
		t.Errorf("run 1 status = %v, want skipped", suite.Runs[1].Status)
	}
	if suite.Runs[1].Message != "stopped after earlier failure" {
		t.Errorf("run 1 message = %q", suite.Runs[1].Message)
	}
	if suite.SkippedRuns != 1 {
		t.Errorf("SkippedRuns = %d, want 1", suite.SkippedRuns)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	d := newTestDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(d, d, RunnerConfig{})
	suite, err := r.Run(ctx, []*protocol.Protocol{
		parseProtocol(t, `- click: "Play"`),
		parseProtocol(t, `- click: "Play"`),
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	for i, run := range suite.Runs {
		if run.Status != core.StatusSkipped {
			t.Errorf("run %d status = %v, want skipped", i, run.Status)
		}
		if run.Message != "run cancelled" {
			t.Errorf("run %d message = %q", i, run.Message)
		}
	}
}

func TestRun_RootResolutionError(t *testing.T) {
	d := mock.New(mock.Config{}) // no tree loaded
	r := New(d, d, RunnerConfig{})
	suite, err := r.Run(context.Background(), []*protocol.Protocol{
		parseProtocol(t, `- click: "Play"`),
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	run := suite.Runs[0]
	if run.Status != core.StatusErrored {
		t.Errorf("run status = %v, want errored", run.Status)
	}
	if run.Message != "cannot resolve application root" {
		t.Errorf("run message = %q", run.Message)
	}
}

func TestRun_RetriedStepIsFlaky(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{Retries: 1},
		`- assertTrue: "${(output.tries = (output.tries || 0) + 1) >= 2}"`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed (error: %s)", step.Status, step.Error)
	}
	if step.Attempt != 2 {
		t.Errorf("step.Attempt = %d, want 2", step.Attempt)
	}
	if !step.Flaky {
		t.Error("step.Flaky = false, want true")
	}
	if len(step.RetryErrors) != 1 {
		t.Errorf("len(RetryErrors) = %d, want 1", len(step.RetryErrors))
	}
	if suite.FlakyRuns != 1 {
		t.Errorf("FlakyRuns = %d, want 1", suite.FlakyRuns)
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{Retries: 2},
		`- assertTrue: "${false}"`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusFailed {
		t.Errorf("step status = %v, want failed", step.Status)
	}
	if step.Attempt != 3 || step.MaxAttempts != 3 {
		t.Errorf("attempts = %d/%d, want 3/3", step.Attempt, step.MaxAttempts)
	}
	if len(step.RetryErrors) != 2 {
		t.Errorf("len(RetryErrors) = %d, want 2", len(step.RetryErrors))
	}
}

func TestRun_OptionalStepNeverRetries(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{Retries: 3},
		`
- assertTrue:
    condition: "${false}"
    optional: true
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusWarned {
		t.Errorf("step status = %v, want warned", step.Status)
	}
	if step.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1 for optional step", step.MaxAttempts)
	}
}

func TestRun_RepeatIterations(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- repeat:
    times: "3"
    commands:
      - evalScript: "${output.n = (output.n || 0) + 1}"
- assertTrue: "${output.n == 3}"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", run.Status, run.Error)
	}
	step := run.Steps[0]
	if len(step.Iterations) != 3 {
		t.Errorf("len(Iterations) = %d, want 3", len(step.Iterations))
	}
	if !strings.Contains(step.Message, "3 iterations") {
		t.Errorf("repeat message = %q", step.Message)
	}
}

func TestRun_RepeatWhileCondition(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- evalScript: "${output.n = 0}"
- repeat:
    while:
      scriptCondition: "${output.n < 5}"
    commands:
      - evalScript: "${output.n = output.n + 1}"
- assertTrue: "${output.n == 5}"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", run.Status, run.Error)
	}
	if got := len(run.Steps[1].Iterations); got != 5 {
		t.Errorf("len(Iterations) = %d, want 5", got)
	}
}

func TestRun_RepeatStopsOnInnerFailure(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- repeat:
    times: "4"
    commands:
      - click: "No Such Button"
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusErrored {
		t.Errorf("step status = %v, want errored", step.Status)
	}
	if len(step.Iterations) != 1 {
		t.Errorf("len(Iterations) = %d, want 1 (loop stops on failure)", len(step.Iterations))
	}
}

func TestRun_RetryStepRecovers(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- retry:
    maxRetries: "3"
    commands:
      - assertTrue: "${(output.n = (output.n || 0) + 1) >= 2}"
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed (error: %s)", step.Status, step.Error)
	}
	if !strings.Contains(step.Message, "attempt 2") {
		t.Errorf("retry message = %q, want success on attempt 2", step.Message)
	}
	if len(step.Iterations) != 2 {
		t.Errorf("len(Iterations) = %d, want 2", len(step.Iterations))
	}
}

func TestRun_RunProtocolInline(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- runProtocol:
    commands:
      - click: "Play"
      - assertVisible: "Tracks Area"
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed (error: %s)", step.Status, step.Error)
	}
	if len(step.Iterations) != 2 {
		t.Errorf("len(Iterations) = %d, want 2", len(step.Iterations))
	}
}

func TestRun_RunProtocolWhenSkipped(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- runProtocol:
    when:
      visible: "No Such Window"
    commands:
      - click: "Play"
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed", step.Status)
	}
	if !strings.Contains(step.Message, "skipped") {
		t.Errorf("step message = %q, want condition skip", step.Message)
	}

	btn, _ := d.ElementByKey("btn-play")
	if got := btn.Performed(); len(got) != 0 {
		t.Errorf("gated protocol still performed actions: %v", got)
	}
}

func TestRun_StepTimeout(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- wait:
    ms: 2000
    timeout: 50
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusErrored {
		t.Errorf("step status = %v, want errored", step.Status)
	}
	if step.Category != core.ErrCategoryTimeout {
		t.Errorf("step category = %v, want timeout", step.Category)
	}
	if step.Duration > time.Second {
		t.Errorf("step duration = %v, want well under the wait", step.Duration)
	}
}

func TestRun_WaitForWindow(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`- waitForWindow: "Demo Project"`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed (error: %s)", step.Status, step.Error)
	}
	if step.Element == nil || step.Element.Role != "AXWindow" {
		t.Errorf("step element = %+v, want the window", step.Element)
	}
}

func TestRun_WaitForWindowTimesOut(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- waitForWindow:
    title: "No Such Window"
    timeout: 150
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusErrored {
		t.Errorf("step status = %v, want errored", step.Status)
	}
	if step.Category != core.ErrCategoryTimeout {
		t.Errorf("step category = %v, want timeout", step.Category)
	}
}

func TestRun_Click(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{}, `- click: "Play"`)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed (error: %s)", step.Status, step.Error)
	}

	btn, ok := d.ElementByKey("btn-play")
	if !ok {
		t.Fatal("btn-play not in tree")
	}
	performed := btn.Performed()
	if len(performed) != 1 || performed[0] != core.ActionPress {
		t.Errorf("Performed() = %v, want [AXPress]", performed)
	}
}

func TestRun_TypeText(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- typeText:
    target: "Volume Fader"
    text: "0.25"
`,
	)

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusPassed {
		t.Fatalf("step status = %v, want passed (error: %s)", step.Status, step.Error)
	}

	fader, _ := d.ElementByKey("track-1-volume")
	if v, _ := fader.Get(core.AttrValue); v != 0.25 {
		t.Errorf("typed value = %v, want 0.25", v)
	}
}

func TestRun_PressKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want core.StepStatus
	}{
		{"escape", "escape", core.StatusPassed},
		{"return alias", "enter", core.StatusPassed},
		{"unknown key", "superkey", core.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDriver(t)
			suite := replay(t, d, RunnerConfig{},
				"- click: \"Play\"\n- pressKey: \""+tt.key+"\"",
			)
			step := suite.Runs[0].Steps[1]
			if step.Status != tt.want {
				t.Errorf("pressKey %q status = %v, want %v (error: %s)", tt.key, step.Status, tt.want, step.Error)
			}
		})
	}
}

func TestRun_MoveAndResizeRegion(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- moveRegion:
    target: {description: "Bass", role: "AXLayoutItem"}
    x: "200"
    y: "350"
- resizeRegion:
    target: {description: "Bass", role: "AXLayoutItem"}
    width: "400"
    height: "48"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", run.Status, run.Error)
	}

	region, _ := d.ElementByKey("region-bass")
	if v, _ := region.Get(core.AttrPosition); v != (core.Point{X: 200, Y: 350}) {
		t.Errorf("position = %v, want (200, 350)", v)
	}
	if v, _ := region.Get(core.AttrSize); v != (core.Size{Width: 400, Height: 48}) {
		t.Errorf("size = %v, want 400x48", v)
	}
}

func TestRun_VariablesFlowThroughSteps(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
- defineVariables:
    GAIN: "0.35"
- setVolume:
    target: {description: "Vocals", role: "AXLayoutItem"}
    value: "${GAIN}"
- assertValue:
    target: {description: "Vocals", role: "AXLayoutItem"}
    control: volume
    expected: "${GAIN}"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", run.Status, run.Error)
	}

	region, _ := d.ElementByKey("region-vocals")
	if v, _ := region.Get("AXVolume"); v != 0.35 {
		t.Errorf("volume = %v, want 0.35", v)
	}
}

func TestRun_ConfigEnvAndApp(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
app: Logic Pro
name: env check
env:
  TRACK: Drums
---
- assertTrue: "${automator.app == 'Logic Pro'}"
- assertVisible:
    description: "${TRACK}"
    role: "AXLayoutItem"
`,
	)

	run := suite.Runs[0]
	if run.Name != "env check" {
		t.Errorf("run.Name = %q, want config name", run.Name)
	}
	if run.Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", run.Status, run.Error)
	}
}

func TestRun_CallerEnvOverridesProtocolEnv(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{Env: map[string]string{"GAIN": "0.4"}},
		`
env:
  GAIN: "0.9"
---
- setVolume:
    target: {description: "Vocals", role: "AXLayoutItem"}
    value: "${GAIN}"
`,
	)

	if suite.Runs[0].Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", suite.Runs[0].Status, suite.Runs[0].Error)
	}

	region, _ := d.ElementByKey("region-vocals")
	if v, _ := region.Get("AXVolume"); v != 0.4 {
		t.Errorf("volume = %v, want caller env value 0.4", v)
	}
}

func TestRun_CapturesArtifactsOnFailure(t *testing.T) {
	d := newTestDriver(t)
	cfg := RunnerConfig{Artifacts: core.ArtifactConfig{
		CaptureOnFailure: true,
		Hierarchy:        true,
		EventLog:         true,
	}}
	suite := replay(t, d, cfg,
		`
- setVolume:
    target: {description: "Vocals", role: "AXLayoutItem"}
    value: "0.7"
- assertValue:
    target: {description: "Vocals", role: "AXLayoutItem"}
    control: volume
    expected: "0.9"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusFailed {
		t.Fatalf("run status = %v, want failed", run.Status)
	}
	if len(run.Attachments) != 2 {
		t.Fatalf("attachments = %d, want hierarchy and event log", len(run.Attachments))
	}

	hier := run.Attachments[0]
	if hier.Name != core.AttachmentHierarchy || hier.Path != "run-000-hierarchy.json" {
		t.Errorf("hierarchy attachment = %s %s", hier.Name, hier.Path)
	}
	var snap map[string]interface{}
	if err := json.Unmarshal(hier.Body, &snap); err != nil {
		t.Fatalf("hierarchy body is not JSON: %v", err)
	}
	if snap["role"] != "AXApplication" {
		t.Errorf("hierarchy root role = %v, want AXApplication", snap["role"])
	}

	events := run.Attachments[1]
	if events.Name != core.AttachmentEventLog || events.ContentType != core.ContentTypeJSONL {
		t.Errorf("event log attachment = %s %s", events.Name, events.ContentType)
	}
	if events.Path != "run-000-events.jsonl" {
		t.Errorf("event log path = %s", events.Path)
	}
}

func TestRun_NoArtifactsOnPassedRun(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{Artifacts: core.DefaultArtifactConfig()},
		`
- assertVisible: "Play"
`,
	)

	if suite.Runs[0].Status != core.StatusPassed {
		t.Fatalf("run status = %v, want passed (error: %s)", suite.Runs[0].Status, suite.Runs[0].Error)
	}
	if len(suite.Runs[0].Attachments) != 0 {
		t.Errorf("passed run captured %d attachment(s), want none", len(suite.Runs[0].Attachments))
	}
}

func TestRun_EndToEndDemoMix(t *testing.T) {
	d := newTestDriver(t)
	suite := replay(t, d, RunnerConfig{},
		`
app: Logic Pro
name: demo mix
---
- waitForWindow: "Demo Project"
- assertValue:
    target: {description: "Drums", role: "AXLayoutItem"}
    control: velocity
    expected: "110"
- setVelocity:
    target: {description: "Drums", role: "AXLayoutItem"}
    value: "100"
- getValues:
    target: {description: "Drums", role: "AXLayoutItem"}
    variable: drums
- assertTrue: "${automator.lastValues.velocity == 100}"
- assertTrue: "${json(drums).pan == -0.2}"
`,
	)

	run := suite.Runs[0]
	if run.Status != core.StatusPassed {
		for _, s := range run.Steps {
			t.Logf("step %d %s: %v %s", s.Index, s.Command, s.Status, s.Error)
		}
		t.Fatalf("run status = %v, want passed", run.Status)
	}

	// The initial velocity read has no direct attribute on the drums
	// region, so the chain must have fallen through to discovery.
	assertStep := run.Steps[1]
	if len(assertStep.Attempts) < 2 {
		t.Fatalf("len(Attempts) = %d, want the discovery fallback trail", len(assertStep.Attempts))
	}
	if assertStep.Attempts[0].Succeeded {
		t.Error("direct read succeeded, want failure before discovery")
	}
	if !assertStep.Attempts[1].Succeeded {
		t.Error("discovery read failed, want success")
	}
}

func TestRun_UnsupportedStep(t *testing.T) {
	d := newTestDriver(t)

	// Unknown step types cannot come from the parser, but recordings
	// replayed from a newer build carry them.
	p := &protocol.Protocol{
		SourcePath: "test.yaml",
		Steps: []protocol.Step{
			&protocol.UnsupportedStep{
				BaseStep: protocol.BaseStep{StepType: "hoverElement"},
				Reason:   "recorded by a newer build",
			},
		},
	}

	r := New(d, d, RunnerConfig{})
	suite, err := r.Run(context.Background(), []*protocol.Protocol{p})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	step := suite.Runs[0].Steps[0]
	if step.Status != core.StatusFailed {
		t.Errorf("step status = %v, want failed", step.Status)
	}
	if step.Category != core.ErrCategoryProtocol {
		t.Errorf("step category = %v, want protocol", step.Category)
	}
}

func TestRun_CallbacksFire(t *testing.T) {
	d := newTestDriver(t)

	var started, completed, ended int
	cfg := RunnerConfig{
		OnProtocolStart: func(idx, total int, name, file string) { started++ },
		OnStepComplete: func(idx int, desc string, status core.StepStatus, dur time.Duration, errMsg string) {
			completed++
		},
		OnProtocolEnd: func(name string, status core.StepStatus, dur time.Duration) { ended++ },
	}

	replay(t, d, cfg,
		`
- click: "Play"
- assertVisible: "Tracks Area"
`,
	)

	if started != 1 {
		t.Errorf("OnProtocolStart fired %d times, want 1", started)
	}
	if completed != 2 {
		t.Errorf("OnStepComplete fired %d times, want 2", completed)
	}
	if ended != 1 {
		t.Errorf("OnProtocolEnd fired %d times, want 1", ended)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.StepStatus
	}{
		{"nil", nil, core.StatusFailed},
		{"stale element", core.ErrElementStale, core.StatusErrored},
		{"control not found", core.ErrControlNotFound, core.StatusErrored},
		{"timeout", core.ErrTimeout, core.StatusErrored},
		{"permission", core.ErrPermissionDenied, core.StatusErrored},
		{"input", core.ErrInputFailed, core.StatusErrored},
		{"strategy exhausted", core.ErrStrategyExhausted, core.StatusFailed},
		{"value mismatch", core.ErrValueMismatch, core.StatusFailed},
		{"invalid protocol", core.ErrInvalidProtocol, core.StatusFailed},
		{"deadline", context.DeadlineExceeded, core.StatusErrored},
		{"plain error", errors.New("boom"), core.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ErrorCategory
	}{
		{"nil", nil, core.ErrCategoryNone},
		{"automation error", core.ErrTimeout, core.ErrCategoryTimeout},
		{"wrapped", core.ErrControlNotFound.WithCause(errors.New("x")), core.ErrCategoryElement},
		{"deadline", context.DeadlineExceeded, core.ErrCategoryTimeout},
		{"plain", errors.New("boom"), core.ErrCategoryNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorCategory(tt.err); got != tt.want {
				t.Errorf("errorCategory(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
