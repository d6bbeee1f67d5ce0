// Package config handles workspace configuration for the automator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tonyatml/logic-automator-sub001/pkg/control"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/event"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Protocol selection
	Protocols   []string `yaml:"protocols"`   // Glob patterns for protocol files
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Replay settings
	App        string            `yaml:"app"` // Target application name
	Env        map[string]string `yaml:"env"` // Variables exposed to protocols
	Retries    int               `yaml:"retries"`
	StopOnFail bool              `yaml:"stopOnFail"`

	// Automation tuning
	Automation Automation `yaml:"automation"`

	// Event filter overrides for recording
	Filter *event.Config `yaml:"filter"`

	// Artifact capture overrides for replay. Absent section keeps the
	// defaults (hierarchy dump on failure).
	Artifacts *core.ArtifactConfig `yaml:"artifacts"`
}

// Automation tunes tree traversal, strategy timeouts and input pacing.
// Zero fields keep the built-in defaults.
type Automation struct {
	MaxDepth int `yaml:"maxDepth"` // Traversal depth limit

	// Per-strategy timeouts
	DirectTimeout    time.Duration `yaml:"directTimeout"`
	DiscoveryTimeout time.Duration `yaml:"discoveryTimeout"`
	HeuristicTimeout time.Duration `yaml:"heuristicTimeout"`
	SyntheticTimeout time.Duration `yaml:"syntheticTimeout"`

	// Synthetic input settle delays
	ActivateSettle time.Duration `yaml:"activateSettle"`
	PerCharacter   time.Duration `yaml:"perCharacter"`
	PreConfirm     time.Duration `yaml:"preConfirm"`
	PostConfirm    time.Duration `yaml:"postConfirm"`
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// WalkDepth returns the traversal depth limit.
func (c *Config) WalkDepth() int {
	if c.Automation.MaxDepth > 0 {
		return c.Automation.MaxDepth
	}
	return tree.DefaultMaxDepth
}

// Timeouts returns strategy timeouts with zero fields replaced by defaults.
func (c *Config) Timeouts() control.Timeouts {
	t := control.DefaultTimeouts()
	a := c.Automation
	if a.DirectTimeout > 0 {
		t.Direct = a.DirectTimeout
	}
	if a.DiscoveryTimeout > 0 {
		t.Discovery = a.DiscoveryTimeout
	}
	if a.HeuristicTimeout > 0 {
		t.Heuristic = a.HeuristicTimeout
	}
	if a.SyntheticTimeout > 0 {
		t.Synthetic = a.SyntheticTimeout
	}
	return t
}

// InputTiming returns input settle delays with zero fields replaced by
// defaults.
func (c *Config) InputTiming() input.Timing {
	t := input.DefaultTiming()
	a := c.Automation
	if a.ActivateSettle > 0 {
		t.ActivateSettle = a.ActivateSettle
	}
	if a.PerCharacter > 0 {
		t.PerCharacter = a.PerCharacter
	}
	if a.PreConfirm > 0 {
		t.PreConfirm = a.PreConfirm
	}
	if a.PostConfirm > 0 {
		t.PostConfirm = a.PostConfirm
	}
	return t
}

// ArtifactConfig returns the effective artifact capture settings. A
// present artifacts section is taken verbatim.
func (c *Config) ArtifactConfig() core.ArtifactConfig {
	if c.Artifacts == nil {
		return core.DefaultArtifactConfig()
	}
	return *c.Artifacts
}

// FilterConfig returns the effective event filter configuration. Fields
// absent from the file's filter section keep the pipeline defaults; a
// negative maxEventsPerSecond disables the rate cap.
func (c *Config) FilterConfig() event.Config {
	cfg := event.DefaultConfig()
	if c.Filter == nil {
		return cfg
	}
	if len(c.Filter.MeaningfulEventTypes) > 0 {
		cfg.MeaningfulEventTypes = c.Filter.MeaningfulEventTypes
	}
	if len(c.Filter.MeaningfulRoles) > 0 {
		cfg.MeaningfulRoles = c.Filter.MeaningfulRoles
	}
	if c.Filter.DebounceTime > 0 {
		cfg.DebounceTime = c.Filter.DebounceTime
	}
	if c.Filter.MaxEventsPerSecond != 0 {
		cfg.MaxEventsPerSecond = c.Filter.MaxEventsPerSecond
	}
	cfg.StrictMode = c.Filter.StrictMode
	return cfg
}

// Environment variables understood by ApplyEnv.
const (
	EnvApp        = "LOGICAUTO_APP"
	EnvRetries    = "LOGICAUTO_RETRIES"
	EnvStopOnFail = "LOGICAUTO_STOP_ON_FAIL"
	EnvMaxDepth   = "LOGICAUTO_MAX_DEPTH"
	EnvDebounce   = "LOGICAUTO_DEBOUNCE"
	EnvMaxEvents  = "LOGICAUTO_MAX_EVENTS"
	EnvStrict     = "LOGICAUTO_STRICT"
)

// ApplyEnv overlays LOGICAUTO_* environment variables on the loaded
// configuration. Variables win over file values.
func (c *Config) ApplyEnv() error {
	c.App = getEnv(EnvApp, c.App)
	c.StopOnFail = getEnvAsBool(EnvStopOnFail, c.StopOnFail)

	retries, err := getEnvAsInt(EnvRetries, c.Retries)
	if err != nil {
		return err
	}
	c.Retries = retries

	depth, err := getEnvAsInt(EnvMaxDepth, c.Automation.MaxDepth)
	if err != nil {
		return err
	}
	c.Automation.MaxDepth = depth

	// Filter overrides allocate the section on demand so FilterConfig
	// still falls back to defaults for untouched fields.
	if os.Getenv(EnvDebounce) != "" || os.Getenv(EnvMaxEvents) != "" || os.Getenv(EnvStrict) != "" {
		if c.Filter == nil {
			c.Filter = &event.Config{}
		}
		debounce, err := getEnvAsDuration(EnvDebounce, c.Filter.DebounceTime)
		if err != nil {
			return err
		}
		c.Filter.DebounceTime = debounce

		maxEvents, err := getEnvAsInt(EnvMaxEvents, c.Filter.MaxEventsPerSecond)
		if err != nil {
			return err
		}
		c.Filter.MaxEventsPerSecond = maxEvents
		c.Filter.StrictMode = getEnvAsBool(EnvStrict, c.Filter.StrictMode)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var result int
	_, err := fmt.Sscanf(value, "%d", &result)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected integer)", key, value)
	}
	return result, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected duration, e.g., '500ms', '5s')", key, value)
	}
	return d, nil
}
