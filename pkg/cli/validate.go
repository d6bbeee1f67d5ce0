package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tonyatml/logic-automator-sub001/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Validate protocol files without replaying them",
	ArgsUsage: "<protocol-file-or-folder>...",
	Description: `Parse protocol files, resolve runProtocol references, and run the
semantic checks: values in range, targets present, known keys and
controls. Nothing is replayed.

Examples:
  logic-automator validate protocol.yaml
  logic-automator validate protocols/ --exclude-tags wip`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include protocols with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude protocols with these tags",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one protocol file or folder is required")
	}

	v := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))

	var allProtocols []string
	var allErrors []error
	for _, path := range c.Args().Slice() {
		result := v.Validate(path)
		allProtocols = append(allProtocols, result.Protocols...)
		allErrors = append(allErrors, result.Errors...)
	}

	for _, path := range allProtocols {
		fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), path)
	}

	if len(allErrors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation errors:\n")
		for _, err := range allErrors {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return cli.Exit(fmt.Sprintf("validation failed with %d error(s)", len(allErrors)), 1)
	}

	if len(allProtocols) == 0 {
		return fmt.Errorf("no protocols found")
	}

	fmt.Printf("\n%d protocol(s) valid\n", len(allProtocols))
	return nil
}
