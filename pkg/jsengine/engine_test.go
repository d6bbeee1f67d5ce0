package jsengine

import (
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	engine := New()
	defer engine.Close()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("track", "Vocals")
	engine.SetVariable("count", 42)

	// Test string variable
	result, err := engine.EvalString("track")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Vocals" {
		t.Errorf("expected 'Vocals', got %q", result)
	}

	// Test number variable
	result, err = engine.EvalString("count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("region", "Vocals")
	engine.SetVariable("gain", -3)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "Set ${region}", "Set Vocals"},
		{"expression", "Gain: ${gain + 5}", "Gain: 2"},
		{"multiple vars", "${region} at ${gain}", "Vocals at -3"},
		{"no vars", "plain text", "plain text"},
		{"string concat", "${region + ' Take 2'}", "Vocals Take 2"},
		{"nested braces", "${({a: 1}).a}", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestConsoleLog(t *testing.T) {
	engine := New()
	defer engine.Close()

	// Just make sure it doesn't panic
	err := engine.RunScript(`
		console.log("test message");
		console.error("error message");
		console.warn("warning message");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetTimeout(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		var fired = false;
		setTimeout(function() { fired = true; }, 10);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	result, err := engine.Eval("fired")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != true {
		t.Error("expected timer callback to fire")
	}
}

func TestClearTimeout(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		var fired = false;
		var id = setTimeout(function() { fired = true; }, 20);
		clearTimeout(id);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	result, err := engine.Eval("fired")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != false {
		t.Error("expected cleared timer not to fire")
	}
}

func TestJSON(t *testing.T) {
	engine := New()
	defer engine.Close()

	result, err := engine.Eval(`json('{"volume": -3.5, "velocity": 96}').velocity`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(96) {
		t.Errorf("expected 96, got %v (%T)", result, result)
	}
}

func TestOutput(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		output.result = "passed";
		output.count = 3;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := engine.GetOutput()
	if out["result"] != "passed" {
		t.Errorf("expected output.result 'passed', got %v", out["result"])
	}
	if out["count"] != int64(3) {
		t.Errorf("expected output.count 3, got %v (%T)", out["count"], out["count"])
	}
}

func TestAutomatorObject(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetApp("Logic Pro")
	engine.SetLastValues(map[string]interface{}{
		"volume":   -3.5,
		"velocity": int64(96),
	})

	result, err := engine.Eval("automator.app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Logic Pro" {
		t.Errorf("expected 'Logic Pro', got %v", result)
	}

	result, err = engine.Eval("automator.lastValues.velocity")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(96) {
		t.Errorf("expected 96, got %v (%T)", result, result)
	}
}

func TestAutomatorLastValuesUnset(t *testing.T) {
	engine := New()
	defer engine.Close()

	// No snapshot stored yet - should be null/undefined, not a crash
	result, err := engine.Eval("automator.lastValues == null")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != true {
		t.Errorf("expected lastValues to be null before any getValues, got %v", result)
	}
}

func TestDefineUndefinedIfMissing(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("DEFINED", "yes")
	engine.DefineUndefinedIfMissing("DEFINED")
	engine.DefineUndefinedIfMissing("MISSING")

	// Defined variable keeps its value
	result, err := engine.Eval("DEFINED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "yes" {
		t.Errorf("expected 'yes', got %v", result)
	}

	// Missing variable is undefined but does not throw
	result, err = engine.Eval("MISSING === undefined")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != true {
		t.Error("expected MISSING to evaluate as undefined")
	}
}

func TestArrowFunctions(t *testing.T) {
	engine := New()
	defer engine.Close()

	result, err := engine.Eval(`[1, 2, 3].map(x => x * 2).join(",")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "2,4,6" {
		t.Errorf("expected '2,4,6', got %v", result)
	}
}

func TestTemplateLiterals(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("region", "Drums")

	result, err := engine.Eval("`region: ${region}`")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "region: Drums" {
		t.Errorf("expected 'region: Drums', got %v", result)
	}
}

func TestRunScriptError(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript("this is not valid javascript {{{")
	if err == nil {
		t.Fatal("expected error for invalid script")
	}
	if !strings.Contains(err.Error(), "JS runtime error") {
		t.Errorf("expected JS runtime error, got: %v", err)
	}
}

func TestEvalError(t *testing.T) {
	engine := New()
	defer engine.Close()

	_, err := engine.Eval("undefined_thing.property")
	if err == nil {
		t.Fatal("expected error for invalid eval")
	}
}

func TestExpandVariablesUnmatchedBrace(t *testing.T) {
	engine := New()
	defer engine.Close()

	// Unmatched brace is left as-is rather than failing the expansion
	result, err := engine.ExpandVariables("value: ${unclosed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "value: ${unclosed" {
		t.Errorf("expected input unchanged, got %q", result)
	}
}

func TestCloseIdempotent(t *testing.T) {
	engine := New()
	engine.Close()
	engine.Close() // must not panic
}
