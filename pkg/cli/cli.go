// Package cli provides the command-line interface for logic-automator.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (mock, snapshot)",
		Value:   "mock",
		EnvVars: []string{"LOGICAUTO_DRIVER"},
	},
	&cli.StringFlag{
		Name:    "tree",
		Usage:   "Element tree snapshot JSON for the snapshot driver",
		EnvVars: []string{"LOGICAUTO_TREE"},
	},
	&cli.IntFlag{
		Name:    "pid",
		Usage:   "Target application process id",
		EnvVars: []string{"LOGICAUTO_PID"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to workspace config.yaml",
		EnvVars: []string{"LOGICAUTO_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"LOGICAUTO_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "logic-automator",
		Usage:   "Accessibility automation for Logic Pro projects",
		Version: Version,
		Description: `Logic Automator replays editing protocols against a running Logic Pro
instance and records the meaningful UI events it raises. The bundled
mock driver serves a scripted project tree, so protocols can be
developed and replayed without the application.

Examples:
  logic-automator replay protocol.yaml
  logic-automator replay protocols/ -e TRACK="Track 1 Vocals"
  logic-automator record --duration 30s --name "chorus tweaks"
  logic-automator inspect --format json --output dump.json
  logic-automator validate protocols/`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			replayCommand,
			recordCommand,
			inspectCommand,
			validateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
