package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/jsengine"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript execution and variable management.
type ScriptEngine struct {
	js          *jsengine.Engine
	variables   map[string]string
	protocolDir string // Directory of current protocol (for resolving relative paths)
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetProtocolDir sets the current protocol directory for relative path resolution.
func (se *ScriptEngine) SetProtocolDir(dir string) {
	se.protocolDir = dir
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			name := parts[0]
			value := parts[1]
			// Import if it matches env var pattern (uppercase like THING, MY_VAR)
			if envVarPattern.MatchString(name) {
				se.SetVariable(name, value)
			}
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// SetApp sets the target application name in the JS engine.
func (se *ScriptEngine) SetApp(app string) {
	se.js.SetApp(app)
}

// SetLastValues publishes a region snapshot to scripts as automator.lastValues.
func (se *ScriptEngine) SetLastValues(rv *core.RegionValues) {
	if rv == nil {
		return
	}
	data, err := json.Marshal(rv)
	if err != nil {
		return
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	se.js.SetLastValues(m)
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// SyncOutputToVariables copies JS output back to variables.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.GetOutput() {
		se.SetVariable(k, fmt.Sprintf("%v", v))
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	// First pass: JS engine for ${expression} syntax
	result, err := se.js.ExpandVariables(text)
	if err == nil {
		text = result
	}

	// Second pass: expand $VAR syntax (without braces)
	// Sort by length (longest first) to avoid partial matches
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		value := se.variables[name]
		text = expandDollarVar(text, name, value)
	}

	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Check if followed by alphanumeric (would be different variable)
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		// Replace
		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// RunScript executes a JavaScript script.
func (se *ScriptEngine) RunScript(script string, env map[string]string) error {
	// Expand variables in script
	script = se.ExpandVariables(script)

	// Apply env variables
	for k, v := range env {
		se.SetVariable(k, v)
	}

	// Pre-define potential env variables as undefined to avoid ReferenceError
	matches := envVarPattern.FindAllString(script, -1)
	for _, name := range matches {
		se.js.DefineUndefinedIfMissing(name)
	}

	// Execute script
	if err := se.js.RunScript(script); err != nil {
		return err
	}

	// Sync output back to variables
	se.SyncOutputToVariables()
	return nil
}

// EvalCondition evaluates a script condition and returns true/false.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	// Extract JS from ${...} wrapper if present
	script = extractJS(script)
	// Expand any remaining $VAR style variables
	script = se.expandDollarVars(script)

	// Pre-define potential env variables as undefined to avoid ReferenceError
	matches := envVarPattern.FindAllString(script, -1)
	for _, name := range matches {
		se.js.DefineUndefinedIfMissing(name)
	}

	result, err := se.js.Eval(script)
	if err != nil {
		return false, err
	}

	// Convert result to boolean
	switch v := result.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true", nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return result != nil, nil
	}
}

// ResolvePath resolves a relative path against the protocol directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.protocolDir == "" {
		return path
	}
	return filepath.Join(se.protocolDir, path)
}

// ============================================
// Step Execution Helpers
// ============================================

// ExecuteDefineVariables handles defineVariables step.
func (se *ScriptEngine) ExecuteDefineVariables(step *protocol.DefineVariablesStep) *core.CommandResult {
	for k, v := range step.Env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("defined %d variable(s)", len(step.Env)),
	}
}

// ExecuteRunScript handles runScript step.
func (se *ScriptEngine) ExecuteRunScript(step *protocol.RunScriptStep) *core.CommandResult {
	script := step.ScriptPath()

	// Check if it's a file path (ends with .js)
	if strings.HasSuffix(script, ".js") {
		filePath := se.ResolvePath(script)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return &core.CommandResult{
				Success: false,
				Error:   err,
				Message: fmt.Sprintf("cannot read script file: %s", filePath),
			}
		}
		script = string(content)
	}

	if err := se.RunScript(script, step.Env); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("script execution failed: %v", err),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "script executed",
	}
}

// ExecuteEvalScript handles evalScript step.
func (se *ScriptEngine) ExecuteEvalScript(step *protocol.EvalScriptStep) *core.CommandResult {
	script := extractJS(step.Script)
	if err := se.js.RunScript(script); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("eval failed: %v", err),
		}
	}

	// Sync output back to variables
	se.SyncOutputToVariables()

	return &core.CommandResult{
		Success: true,
		Message: "eval completed",
	}
}

// ExecuteAssertTrue handles assertTrue step.
func (se *ScriptEngine) ExecuteAssertTrue(step *protocol.AssertTrueStep) *core.CommandResult {
	result, err := se.EvalCondition(step.Script)
	if err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   err,
			Message: fmt.Sprintf("condition evaluation failed: %v", err),
		}
	}

	if !result {
		return &core.CommandResult{
			Success: false,
			Error:   fmt.Errorf("assertion failed"),
			Message: fmt.Sprintf("assertTrue failed: %s", step.Script),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "assertion passed",
	}
}

// extractJS extracts JavaScript from a ${...} wrapper if present.
// Protocols use ${...} syntax to mark JavaScript expressions.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// expandDollarVars expands $VAR syntax (without braces) using stored variables.
func (se *ScriptEngine) expandDollarVars(text string) string {
	// Sort by length (longest first) to avoid partial matches
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		value := se.variables[name]
		text = expandDollarVar(text, name, value)
	}

	return text
}

// withEnvVars applies environment variables and returns a restore function.
func (se *ScriptEngine) withEnvVars(env map[string]string) func() {
	oldVars := make(map[string]string)
	for k, v := range env {
		oldVars[k] = se.GetVariable(k)
		se.SetVariable(k, v)
	}
	return func() {
		for k, v := range oldVars {
			se.SetVariable(k, v)
		}
	}
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultVal
}

// ParseFloat parses a number from string, supporting variable expansion.
func (se *ScriptEngine) ParseFloat(s string) (float64, error) {
	expanded := strings.TrimSpace(se.ExpandVariables(s))
	val, err := strconv.ParseFloat(expanded, 64)
	if err != nil {
		return 0, core.ErrInvalidProtocol.WithMessage(fmt.Sprintf("not a number: %q", expanded))
	}
	return val, nil
}

// ExpandStep expands variables in all string fields of a step.
// Note: This modifies the step in place; expansion of an already expanded
// step is a no-op unless the variables changed in between.
func (se *ScriptEngine) ExpandStep(step protocol.Step) {
	switch s := step.(type) {
	case *protocol.SetVolumeStep:
		s.Value = se.ExpandVariables(s.Value)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.SetPanStep:
		s.Value = se.ExpandVariables(s.Value)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.SetVelocityStep:
		s.Value = se.ExpandVariables(s.Value)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.SetPitchStep:
		s.Value = se.ExpandVariables(s.Value)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.MoveRegionStep:
		s.X = se.ExpandVariables(s.X)
		s.Y = se.ExpandVariables(s.Y)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.ResizeRegionStep:
		s.Width = se.ExpandVariables(s.Width)
		s.Height = se.ExpandVariables(s.Height)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.GetValuesStep:
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.ClickStep:
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.TypeTextStep:
		s.Text = se.ExpandVariables(s.Text)
		s.Target = se.expandTarget(s.Target)
	case *protocol.PressKeyStep:
		s.Key = se.ExpandVariables(s.Key)
	case *protocol.AssertValueStep:
		s.Expected = se.ExpandVariables(s.Expected)
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.AssertVisibleStep:
		s.Target = *se.expandTarget(&s.Target)
	case *protocol.WaitForWindowStep:
		s.Title = se.ExpandVariables(s.Title)
	}
}

// expandTarget expands variables in target fields and returns a copy.
func (se *ScriptEngine) expandTarget(t *protocol.Target) *protocol.Target {
	if t == nil {
		return nil
	}
	// Create a copy to avoid modifying the original
	expanded := *t
	expanded.Description = se.ExpandVariables(expanded.Description)
	expanded.Role = se.ExpandVariables(expanded.Role)
	return &expanded
}
