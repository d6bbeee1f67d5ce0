// Package validator checks protocol files before replay.
// It parses all files upfront, resolves runProtocol references, and runs
// the semantic checks the parser cannot: literal values in range, targets
// present, sane repeat and retry counts.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tonyatml/logic-automator-sub001/pkg/control"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
)

// ValidationError represents a validation error with file context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Protocols is the list of protocol file paths in replay order.
	Protocols []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates protocol files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates a file or directory.
// It parses all protocols, resolves runProtocol references, and returns
// the combined result.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = collectProtocolFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
	} else {
		files = []string{path}
	}

	// Validate each file and resolve dependencies
	validated := make(map[string]bool)
	listed := make(map[string]bool)
	for _, file := range files {
		v.validateFile(file, result, validated, listed, nil)
	}

	return result
}

// collectProtocolFiles finds all .yaml/.yml files under a directory.
func collectProtocolFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// validateFile validates a single file and its runProtocol dependencies.
// Only top-level files land in result.Protocols; referenced files are
// checked but replayed through their parent.
func (v *Validator) validateFile(filePath string, result *Result, validated, listed map[string]bool, chain []string) {
	top := len(chain) == 0

	// Check for circular references
	for _, ancestor := range chain {
		if ancestor == filePath {
			cycle := append(chain, filePath)
			result.Errors = append(result.Errors, &ValidationError{
				File:    filePath,
				Message: fmt.Sprintf("circular reference detected: %s", strings.Join(cycle, " -> ")),
			})
			return
		}
	}

	if validated[filePath] {
		// A file checked earlier as a dependency can still be a
		// top-level protocol of its own.
		if top && !listed[filePath] {
			if p, err := protocol.ParseFile(filePath); err == nil && protocol.ShouldInclude(p, v.includeTags, v.excludeTags) {
				listed[filePath] = true
				result.Protocols = append(result.Protocols, filePath)
			}
		}
		return
	}

	p, err := protocol.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	// Tag filters apply to top-level files only, never to referenced ones
	if top && !protocol.ShouldInclude(p, v.includeTags, v.excludeTags) {
		return
	}

	validated[filePath] = true
	if top {
		listed[filePath] = true
		result.Protocols = append(result.Protocols, filePath)
	}

	result.Errors = append(result.Errors, CheckProtocol(p)...)

	// Recursively validate referenced files
	newChain := append(chain, filePath)
	v.validateReferences(p.Steps, filePath, result, validated, listed, newChain)
}

// validateReferences resolves file references in steps: runProtocol and
// retry protocol files recurse into validateFile, runScript files must
// exist on disk.
func (v *Validator) validateReferences(steps []protocol.Step, parentFile string, result *Result, validated, listed map[string]bool, chain []string) {
	parentDir := filepath.Dir(parentFile)

	for _, step := range steps {
		switch s := step.(type) {
		case *protocol.RunProtocolStep:
			if s.File != "" {
				refPath := resolveFilePath(parentDir, s.File)
				v.validateFile(refPath, result, validated, listed, chain)
			}
			// Also check inline steps
			v.validateReferences(s.Steps, parentFile, result, validated, listed, chain)

		case *protocol.RepeatStep:
			v.validateReferences(s.Steps, parentFile, result, validated, listed, chain)

		case *protocol.RetryStep:
			if s.File != "" {
				refPath := resolveFilePath(parentDir, s.File)
				v.validateFile(refPath, result, validated, listed, chain)
			}
			v.validateReferences(s.Steps, parentFile, result, validated, listed, chain)

		case *protocol.RunScriptStep:
			path := s.ScriptPath()
			if strings.HasSuffix(path, ".js") && !hasVariable(path) {
				if _, err := os.Stat(resolveFilePath(parentDir, path)); err != nil {
					result.Errors = append(result.Errors, &ValidationError{
						File:    parentFile,
						Message: fmt.Sprintf("script file not found: %s", path),
					})
				}
			}
		}
	}
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}

// CheckProtocol runs the semantic checks on an already-parsed protocol.
// Values carrying variable references are left for replay time.
func CheckProtocol(p *protocol.Protocol) []error {
	var errs []error
	for _, msg := range checkSteps(p.Steps, "") {
		errs = append(errs, &ValidationError{File: p.SourcePath, Message: msg})
	}
	return errs
}

func checkSteps(steps []protocol.Step, prefix string) []string {
	var msgs []string

	for i, step := range steps {
		label := fmt.Sprintf("%sstep %d (%s)", prefix, i+1, step.Type())
		msgs = append(msgs, checkStep(label, step)...)

		switch s := step.(type) {
		case *protocol.RepeatStep:
			msgs = append(msgs, checkSteps(s.Steps, label+": ")...)
		case *protocol.RetryStep:
			msgs = append(msgs, checkSteps(s.Steps, label+": ")...)
		case *protocol.RunProtocolStep:
			msgs = append(msgs, checkSteps(s.Steps, label+": ")...)
		}
	}

	return msgs
}

type failFn func(format string, args ...interface{})

// checkStep returns the semantic problems of a single step.
func checkStep(label string, step protocol.Step) []string {
	var msgs []string
	fail := func(format string, args ...interface{}) {
		msgs = append(msgs, label+": "+fmt.Sprintf(format, args...))
	}

	switch s := step.(type) {
	case *protocol.SetVolumeStep:
		checkSet(fail, control.Volume, s.Target, s.Value)
	case *protocol.SetPanStep:
		checkSet(fail, control.Pan, s.Target, s.Value)
	case *protocol.SetVelocityStep:
		checkSet(fail, control.Velocity, s.Target, s.Value)
	case *protocol.SetPitchStep:
		checkSet(fail, control.Pitch, s.Target, s.Value)

	case *protocol.MoveRegionStep:
		checkTarget(fail, s.Target)
		checkNumber(fail, "x", s.X)
		checkNumber(fail, "y", s.Y)
	case *protocol.ResizeRegionStep:
		checkTarget(fail, s.Target)
		checkNumber(fail, "width", s.Width)
		checkNumber(fail, "height", s.Height)

	case *protocol.GetValuesStep:
		checkTarget(fail, s.Target)
	case *protocol.ClickStep:
		checkTarget(fail, s.Target)
	case *protocol.AssertVisibleStep:
		checkTarget(fail, s.Target)

	case *protocol.AssertValueStep:
		checkTarget(fail, s.Target)
		if spec, ok := control.ByName(s.Control); !ok {
			fail("unknown control %q", s.Control)
		} else if s.Expected == "" {
			fail("missing expected value")
		} else {
			checkValue(fail, spec, s.Expected)
		}

	case *protocol.TypeTextStep:
		if s.Text == "" {
			fail("missing text")
		}

	case *protocol.PressKeyStep:
		if s.Key == "" {
			fail("missing key")
		} else if !hasVariable(s.Key) {
			if _, ok := input.KeyByName(s.Key); !ok {
				fail("unknown key %q", s.Key)
			}
		}

	case *protocol.WaitStep:
		if s.Ms < 0 {
			fail("negative duration %dms", s.Ms)
		}

	case *protocol.WaitForWindowStep:
		if s.Title == "" {
			fail("missing window title")
		}

	case *protocol.AssertTrueStep:
		if s.Script == "" {
			fail("missing condition")
		}
	case *protocol.EvalScriptStep:
		if s.Script == "" {
			fail("missing script")
		}
	case *protocol.RunScriptStep:
		if s.ScriptPath() == "" {
			fail("missing script")
		}
	case *protocol.DefineVariablesStep:
		if len(s.Env) == 0 {
			fail("no variables defined")
		}

	case *protocol.RepeatStep:
		hasWhile := s.While.Visible != nil || s.While.NotVisible != nil || s.While.Script != ""
		if s.Times == "" && !hasWhile {
			fail("needs times or while")
		}
		if s.Times != "" && !hasVariable(s.Times) {
			if n, err := strconv.Atoi(normalizeInt(s.Times)); err != nil {
				fail("times is not a number: %q", s.Times)
			} else if n <= 0 && !hasWhile {
				fail("times must be positive, got %d", n)
			}
		}
		if len(s.Steps) == 0 {
			fail("no steps")
		}

	case *protocol.RetryStep:
		if s.MaxRetries != "" && !hasVariable(s.MaxRetries) {
			if n, err := strconv.Atoi(normalizeInt(s.MaxRetries)); err != nil {
				fail("maxRetries is not a number: %q", s.MaxRetries)
			} else if n < 1 {
				fail("maxRetries must be at least 1, got %d", n)
			}
		}
		if s.File == "" && len(s.Steps) == 0 {
			fail("needs a file or inline steps")
		}

	case *protocol.RunProtocolStep:
		if s.File == "" && len(s.Steps) == 0 {
			fail("needs a file or inline steps")
		}

	case *protocol.UnsupportedStep:
		fail("unsupported step: %s", s.Reason)
	}

	return msgs
}

// checkSet validates the common shape of the four set-control steps.
func checkSet(fail failFn, spec control.Spec, target protocol.Target, value string) {
	checkTarget(fail, target)
	if value == "" {
		fail("missing value")
		return
	}
	checkValue(fail, spec, value)
}

// checkValue validates a literal control value against its spec.
func checkValue(fail failFn, spec control.Spec, value string) {
	if hasVariable(value) {
		return
	}
	trimmed := strings.TrimSpace(value)
	val, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		fail("%s value is not a number: %q", spec.Name, value)
		return
	}
	if spec.Validate(val) == nil {
		return
	}
	if spec.Bounded && (val < spec.Min || val > spec.Max) {
		fail("%s %s out of range [%g, %g]", spec.Name, trimmed, spec.Min, spec.Max)
	} else {
		fail("%s must be an integer, got %s", spec.Name, trimmed)
	}
}

func checkTarget(fail failFn, target protocol.Target) {
	if target.IsEmpty() {
		fail("empty target")
	}
}

func checkNumber(fail failFn, field, value string) {
	if value == "" {
		fail("missing %s", field)
		return
	}
	if hasVariable(value) {
		return
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
		fail("%s is not a number: %q", field, value)
	}
}

// hasVariable reports whether a value references a variable and therefore
// cannot be checked until replay.
func hasVariable(s string) bool {
	return strings.Contains(s, "$")
}

// normalizeInt strips the underscore digit separators the replay parser
// accepts ("10_000").
func normalizeInt(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "_", "")
}
