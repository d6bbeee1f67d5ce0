package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tonyatml/logic-automator-sub001/pkg/config"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/driver/mock"
	"github.com/tonyatml/logic-automator-sub001/pkg/executor"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
	"github.com/tonyatml/logic-automator-sub001/pkg/protocol"
	"github.com/tonyatml/logic-automator-sub001/pkg/report"
	"github.com/tonyatml/logic-automator-sub001/pkg/validator"
)

var replayCommand = &cli.Command{
	Name:      "replay",
	Usage:     "Replay protocol files against the target application",
	ArgsUsage: "<protocol-file-or-folder>...",
	Description: `Replay one or more protocol files against the target application.
Without arguments, the protocols listed in the workspace config are
replayed.

Reports are written to the output directory:
  - Default: <home>/runs/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  logic-automator replay protocol.yaml
  logic-automator replay protocols/
  logic-automator replay intro.yaml chorus.yaml

  # With environment variables
  logic-automator replay protocols/ -e TRACK="Track 1 Vocals" -e VOL=0.7

  # With tag filtering
  logic-automator replay protocols/ --include-tags smoke

  # Against a saved tree snapshot
  logic-automator --driver snapshot --tree dump.json replay protocol.yaml

  # Custom output directory
  logic-automator replay protocols/ --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		// Environment variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variables (KEY=VALUE)",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include protocols with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude protocols with these tags",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: <home>/runs)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},

		// Execution
		&cli.StringFlag{
			Name:  "name",
			Usage: "Suite name for the report",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Stop the suite after the first failed protocol",
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Retries per failed step",
		},
	},
	Action: runReplay,
}

// RunConfig holds the complete replay run configuration.
type RunConfig struct {
	// Paths
	ProtocolPaths []string

	// Environment
	Env map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string // Final resolved output directory
	SuiteName string

	// Execution
	StopOnFail bool
	Retries    int

	// Target
	Driver   string // mock, snapshot
	TreePath string // Snapshot JSON for the snapshot driver
	PID      int
	Verbose  bool

	// Workspace carries the loaded config.yaml, never nil
	Workspace *config.Config
}

func runReplay(c *cli.Context) error {
	printBanner()

	// Helper to get flag value from current or parent context
	// When run as subcommand, global flags are in parent context
	getString := func(name string) string {
		if c.IsSet(name) {
			return c.String(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].String(name)
		}
		return c.String(name)
	}
	getInt := func(name string) int {
		if c.IsSet(name) {
			return c.Int(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].Int(name)
		}
		return c.Int(name)
	}
	getBool := func(name string) bool {
		if c.IsSet(name) {
			return c.Bool(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].Bool(name)
		}
		return c.Bool(name)
	}
	getStringSlice := func(name string) []string {
		if c.IsSet(name) {
			return c.StringSlice(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].StringSlice(name)
		}
		return c.StringSlice(name)
	}

	// Resolve output directory
	outputDir, err := resolveOutputDir(getString("output"), getBool("flatten"))
	if err != nil {
		return err
	}

	wsCfg, err := loadWorkspaceConfig(getString("config"))
	if err != nil {
		return err
	}

	// Merge env variables: workspace config env + CLI env (CLI takes precedence)
	mergedEnv := make(map[string]string)
	for k, v := range wsCfg.Env {
		mergedEnv[k] = v
	}
	for k, v := range parseEnvVars(getStringSlice("env")) {
		mergedEnv[k] = v
	}

	// CLI flags override workspace settings
	stopOnFail := wsCfg.StopOnFail
	if c.IsSet("stop-on-fail") {
		stopOnFail = c.Bool("stop-on-fail")
	}
	retries := wsCfg.Retries
	if c.IsSet("retries") {
		retries = c.Int("retries")
	}

	// Tag filters from CLI extend the workspace lists
	includeTags := append(wsCfg.IncludeTags, getStringSlice("include-tags")...)
	excludeTags := append(wsCfg.ExcludeTags, getStringSlice("exclude-tags")...)

	// Protocol paths: args, falling back to the workspace protocol list
	paths := c.Args().Slice()
	if len(paths) == 0 {
		paths = expandProtocolGlobs(wsCfg.Protocols)
	}
	if len(paths) == 0 {
		return fmt.Errorf("at least one protocol file or folder is required")
	}

	cfg := &RunConfig{
		ProtocolPaths: paths,
		Env:           mergedEnv,
		IncludeTags:   includeTags,
		ExcludeTags:   excludeTags,
		OutputDir:     outputDir,
		SuiteName:     c.String("name"),
		StopOnFail:    stopOnFail,
		Retries:       retries,
		Driver:        getString("driver"),
		TreePath:      getString("tree"),
		PID:           getInt("pid"),
		Verbose:       getBool("verbose"),
		Workspace:     wsCfg,
	}

	return executeReplay(cfg)
}

// loadWorkspaceConfig loads config.yaml from the given path, or from the
// working directory when no path is set. A missing file is an empty
// config; LOGICAUTO_* environment overrides apply either way.
func loadWorkspaceConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandProtocolGlobs expands glob patterns from the workspace protocol
// list. Entries that match nothing pass through so the validator can
// report them.
func expandProtocolGlobs(patterns []string) []string {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			paths = append(paths, pattern)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/runs/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetRunsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeReplay(cfg *RunConfig) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(cfg.OutputDir, "automator.log")
	if err := logger.Init(logPath, cfg.Verbose); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Replay started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Driver: %s", cfg.Driver)

	// Cancel the run on SIGINT/SIGTERM; protocols not yet replayed land
	// in the report as skipped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Validate and parse protocols
	protocols, err := validateAndParseProtocols(cfg)
	if err != nil {
		logger.Error("Protocol validation failed: %v", err)
		return err
	}
	logger.Info("Validated %d protocol(s)", len(protocols))

	// Take the app name from the first protocol if the workspace didn't set one
	app := cfg.Workspace.App
	if app == "" && len(protocols) > 0 {
		app = protocols[0].Config.App
	}

	// 4. Create driver
	driver, cleanup, err := createDriver(cfg)
	if err != nil {
		logger.Error("Failed to create driver: %v", err)
		return fmt.Errorf("failed to create driver: %w", err)
	}
	defer cleanup()

	// 5. Replay
	runner := executor.New(driver, driver, executor.RunnerConfig{
		PID:                   cfg.PID,
		StopOnFail:            cfg.StopOnFail,
		Retries:               cfg.Retries,
		Timing:                cfg.Workspace.InputTiming(),
		Timeouts:              cfg.Workspace.Timeouts(),
		SuiteName:             cfg.SuiteName,
		Env:                   cfg.Env,
		Artifacts:             cfg.Workspace.ArtifactConfig(),
		OnProtocolStart:       onProtocolStart,
		OnStepComplete:        onStepComplete,
		OnNestedStep:          onNestedStep,
		OnNestedProtocolStart: onNestedProtocolStart,
	})

	suite, err := runner.Run(ctx, protocols)
	if err != nil {
		logger.Error("Replay failed: %v", err)
		if errors.Is(err, core.ErrPermissionDenied) {
			printPermissionHelp()
			return cli.Exit("", 1)
		}
		return err
	}
	logger.Info("Replay completed: %d passed, %d failed, %d skipped",
		suite.PassedRuns, suite.FailedRuns, suite.SkippedRuns)

	// 6. Print summary
	printSummary(suite)

	// 7. Generate reports and write captured artifacts
	rep := report.Build(suite, report.Config{
		App:     app,
		Version: Version,
		Driver:  strings.ToLower(cfg.Driver),
	})
	if err := report.Write(cfg.OutputDir, rep); err != nil {
		fmt.Printf("  %s⚠%s Warning: failed to write reports: %v\n", color(colorYellow), color(colorReset), err)
	} else {
		fmt.Println("  Reports:")
		fmt.Printf("    JSON:   %s\n", filepath.Join(cfg.OutputDir, "report.json"))
		fmt.Printf("    Text:   %s\n", filepath.Join(cfg.OutputDir, "report.txt"))
		fmt.Println()
	}
	if err := writeAttachments(cfg.OutputDir, suite); err != nil {
		fmt.Printf("  %s⚠%s Warning: failed to write artifacts: %v\n", color(colorYellow), color(colorReset), err)
	}

	// Exit with code 1 if any protocols failed (summary already printed)
	if !suite.Success() {
		return cli.Exit("", 1)
	}

	return nil
}

// validateAndParseProtocols validates and parses all protocol files.
func validateAndParseProtocols(cfg *RunConfig) ([]*protocol.Protocol, error) {
	v := validator.New(cfg.IncludeTags, cfg.ExcludeTags)
	var allProtocols []string
	var allErrors []error

	for _, path := range cfg.ProtocolPaths {
		result := v.Validate(path)
		allProtocols = append(allProtocols, result.Protocols...)
		allErrors = append(allErrors, result.Errors...)
	}

	if len(allErrors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation errors:\n")
		for _, err := range allErrors {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(allErrors))
	}

	if len(allProtocols) == 0 {
		return nil, fmt.Errorf("no protocols found")
	}

	fmt.Printf("\n%sSetup%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))
	fmt.Printf("  %s✓%s Found %d protocol(s)\n", color(colorGreen), color(colorReset), len(allProtocols))

	var protocols []*protocol.Protocol
	for _, path := range allProtocols {
		p, err := protocol.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		protocols = append(protocols, p)
	}

	return protocols, nil
}

// createDriver builds the driver selected by --driver. The returned
// cleanup stops notification delivery.
func createDriver(cfg *RunConfig) (*mock.Driver, func(), error) {
	name := strings.ToLower(cfg.Driver)
	if name == "" {
		name = "mock"
	}

	d := mock.New(mock.Config{})
	cleanup := func() { _ = d.Close() }

	switch name {
	case "mock":
		// The mock serves its built-in demo project, or a custom tree
		// when --tree is given
		if cfg.TreePath != "" {
			if err := d.LoadFile(cfg.TreePath); err != nil {
				return nil, nil, err
			}
		} else if err := d.Load(mock.DemoProject()); err != nil {
			return nil, nil, err
		}
	case "snapshot":
		if cfg.TreePath == "" {
			return nil, nil, fmt.Errorf("the snapshot driver requires --tree")
		}
		if err := d.LoadFile(cfg.TreePath); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown driver %q (expected mock or snapshot)", cfg.Driver)
	}

	return d, cleanup, nil
}

// writeAttachments stores captured debug artifacts next to the reports,
// at the relative paths the report's artifact entries name.
func writeAttachments(dir string, suite *core.SuiteResult) error {
	for _, run := range suite.Runs {
		for _, att := range run.Attachments {
			if err := os.WriteFile(filepath.Join(dir, att.Path), att.Body, 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
