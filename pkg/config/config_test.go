package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/control"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/event"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
protocols:
  - "protocols/**"
includeTags:
  - smoke
excludeTags:
  - wip
app: Logic Pro
env:
  TRACK: Vocals
  TARGET_VOL: "0.7"
retries: 2
stopOnFail: true
automation:
  maxDepth: 8
  discoveryTimeout: 3s
  activateSettle: 250ms
filter:
  debounceTime: 200ms
  maxEventsPerSecond: 25
  strictMode: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Protocols) != 1 || cfg.Protocols[0] != "protocols/**" {
		t.Errorf("expected protocols [protocols/**], got %v", cfg.Protocols)
	}
	if len(cfg.IncludeTags) != 1 || cfg.IncludeTags[0] != "smoke" {
		t.Errorf("expected includeTags [smoke], got %v", cfg.IncludeTags)
	}
	if len(cfg.ExcludeTags) != 1 || cfg.ExcludeTags[0] != "wip" {
		t.Errorf("expected excludeTags [wip], got %v", cfg.ExcludeTags)
	}
	if cfg.App != "Logic Pro" {
		t.Errorf("expected app Logic Pro, got %s", cfg.App)
	}
	if cfg.Env["TRACK"] != "Vocals" || cfg.Env["TARGET_VOL"] != "0.7" {
		t.Errorf("expected env {TRACK:Vocals, TARGET_VOL:0.7}, got %v", cfg.Env)
	}
	if cfg.Retries != 2 {
		t.Errorf("expected retries 2, got %d", cfg.Retries)
	}
	if !cfg.StopOnFail {
		t.Error("expected stopOnFail true")
	}
	if cfg.Automation.MaxDepth != 8 {
		t.Errorf("expected maxDepth 8, got %d", cfg.Automation.MaxDepth)
	}
	if cfg.Automation.DiscoveryTimeout != 3*time.Second {
		t.Errorf("expected discoveryTimeout 3s, got %v", cfg.Automation.DiscoveryTimeout)
	}
	if cfg.Automation.ActivateSettle != 250*time.Millisecond {
		t.Errorf("expected activateSettle 250ms, got %v", cfg.Automation.ActivateSettle)
	}
	if cfg.Filter == nil {
		t.Fatal("expected filter section")
	}
	if cfg.Filter.DebounceTime != 200*time.Millisecond {
		t.Errorf("expected debounceTime 200ms, got %v", cfg.Filter.DebounceTime)
	}
	if cfg.Filter.MaxEventsPerSecond != 25 {
		t.Errorf("expected maxEventsPerSecond 25, got %d", cfg.Filter.MaxEventsPerSecond)
	}
	if !cfg.Filter.StrictMode {
		t.Error("expected strictMode true")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `protocols: [invalid yaml`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(``), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Protocols) != 0 {
		t.Errorf("expected empty protocols, got %v", cfg.Protocols)
	}
}

func TestLoadFromDir_ConfigYaml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `app: Logic Pro`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App != "Logic Pro" {
		t.Errorf("expected app Logic Pro, got %s", cfg.App)
	}
}

func TestLoadFromDir_ConfigYml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	content := `app: MainStage`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App != "MainStage" {
		t.Errorf("expected app MainStage, got %s", cfg.App)
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should return empty config
	if cfg.App != "" {
		t.Errorf("expected empty app, got %s", cfg.App)
	}
	if len(cfg.Protocols) != 0 {
		t.Errorf("expected empty protocols, got %v", cfg.Protocols)
	}
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()

	// Create both config.yaml and config.yml
	yamlContent := `app: Logic Pro`
	ymlContent := `app: MainStage`

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(ymlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should prefer config.yaml
	if cfg.App != "Logic Pro" {
		t.Errorf("expected app Logic Pro (from config.yaml), got %s", cfg.App)
	}
}

func TestWalkDepth(t *testing.T) {
	cfg := &Config{}
	if got := cfg.WalkDepth(); got != tree.DefaultMaxDepth {
		t.Errorf("WalkDepth() = %d, want %d", got, tree.DefaultMaxDepth)
	}

	cfg.Automation.MaxDepth = 12
	if got := cfg.WalkDepth(); got != 12 {
		t.Errorf("WalkDepth() = %d, want 12", got)
	}
}

func TestTimeouts_ZeroKeepsDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.Timeouts(); got != control.DefaultTimeouts() {
		t.Errorf("Timeouts() = %+v, want defaults", got)
	}
}

func TestTimeouts_Override(t *testing.T) {
	cfg := &Config{Automation: Automation{DiscoveryTimeout: 3 * time.Second}}

	got := cfg.Timeouts()
	if got.Discovery != 3*time.Second {
		t.Errorf("Discovery = %v, want 3s", got.Discovery)
	}
	if got.Direct != control.DefaultTimeouts().Direct {
		t.Errorf("Direct = %v, want default", got.Direct)
	}
}

func TestInputTiming_Override(t *testing.T) {
	cfg := &Config{Automation: Automation{PerCharacter: 1 * time.Millisecond}}

	got := cfg.InputTiming()
	if got.PerCharacter != 1*time.Millisecond {
		t.Errorf("PerCharacter = %v, want 1ms", got.PerCharacter)
	}
	if got.ActivateSettle != input.DefaultTiming().ActivateSettle {
		t.Errorf("ActivateSettle = %v, want default", got.ActivateSettle)
	}
}

func TestFilterConfig_Defaults(t *testing.T) {
	cfg := &Config{}

	got := cfg.FilterConfig()
	want := event.DefaultConfig()
	if got.DebounceTime != want.DebounceTime {
		t.Errorf("DebounceTime = %v, want %v", got.DebounceTime, want.DebounceTime)
	}
	if got.MaxEventsPerSecond != want.MaxEventsPerSecond {
		t.Errorf("MaxEventsPerSecond = %d, want %d", got.MaxEventsPerSecond, want.MaxEventsPerSecond)
	}
	if len(got.MeaningfulEventTypes) != len(want.MeaningfulEventTypes) {
		t.Errorf("MeaningfulEventTypes = %v", got.MeaningfulEventTypes)
	}
}

func TestFilterConfig_Overlay(t *testing.T) {
	cfg := &Config{Filter: &event.Config{
		DebounceTime:    100 * time.Millisecond,
		MeaningfulRoles: []string{"AXSlider"},
	}}

	got := cfg.FilterConfig()
	if got.DebounceTime != 100*time.Millisecond {
		t.Errorf("DebounceTime = %v, want 100ms", got.DebounceTime)
	}
	if len(got.MeaningfulRoles) != 1 || got.MeaningfulRoles[0] != "AXSlider" {
		t.Errorf("MeaningfulRoles = %v, want [AXSlider]", got.MeaningfulRoles)
	}

	// Untouched fields keep defaults
	if got.MaxEventsPerSecond != event.DefaultConfig().MaxEventsPerSecond {
		t.Errorf("MaxEventsPerSecond = %d, want default", got.MaxEventsPerSecond)
	}
	if len(got.MeaningfulEventTypes) == 0 {
		t.Error("MeaningfulEventTypes lost its defaults")
	}
}

func TestFilterConfig_DisableRateCap(t *testing.T) {
	cfg := &Config{Filter: &event.Config{MaxEventsPerSecond: -1}}

	if got := cfg.FilterConfig().MaxEventsPerSecond; got != -1 {
		t.Errorf("MaxEventsPerSecond = %d, want -1", got)
	}
}

func TestArtifactConfig_Defaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.ArtifactConfig(); got != core.DefaultArtifactConfig() {
		t.Errorf("ArtifactConfig() = %+v, want defaults", got)
	}
}

func TestArtifactConfig_Section(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
artifacts:
  captureOnFailure: true
  captureOnSuccess: true
  hierarchy: true
  eventLog: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := cfg.ArtifactConfig()
	if !got.CaptureOnSuccess || !got.EventLog {
		t.Errorf("ArtifactConfig() = %+v, want section values", got)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv(EnvApp, "Logic Pro")
	t.Setenv(EnvRetries, "3")
	t.Setenv(EnvStopOnFail, "true")
	t.Setenv(EnvDebounce, "250ms")

	cfg := &Config{App: "GarageBand", Retries: 1}
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App != "Logic Pro" {
		t.Errorf("App = %q, want Logic Pro", cfg.App)
	}
	if cfg.Retries != 3 {
		t.Errorf("Retries = %d, want 3", cfg.Retries)
	}
	if !cfg.StopOnFail {
		t.Error("StopOnFail not overridden")
	}
	if cfg.Filter == nil || cfg.Filter.DebounceTime != 250*time.Millisecond {
		t.Errorf("Filter = %+v, want debounce 250ms", cfg.Filter)
	}

	// Filter fields not named by a variable keep defaults
	if got := cfg.FilterConfig().MaxEventsPerSecond; got != event.DefaultConfig().MaxEventsPerSecond {
		t.Errorf("MaxEventsPerSecond = %d, want default", got)
	}
}

func TestApplyEnv_NoVariables(t *testing.T) {
	t.Setenv(EnvApp, "")
	t.Setenv(EnvRetries, "")
	t.Setenv(EnvDebounce, "")

	cfg := &Config{App: "Logic Pro", Retries: 2}
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App != "Logic Pro" || cfg.Retries != 2 {
		t.Errorf("config changed without variables: %+v", cfg)
	}
	if cfg.Filter != nil {
		t.Errorf("Filter allocated without variables: %+v", cfg.Filter)
	}
}

func TestApplyEnv_InvalidInteger(t *testing.T) {
	t.Setenv(EnvRetries, "many")

	cfg := &Config{}
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-integer retries")
	}
}

func TestApplyEnv_InvalidDuration(t *testing.T) {
	t.Setenv(EnvDebounce, "fast")

	cfg := &Config{}
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for invalid debounce duration")
	}
}
