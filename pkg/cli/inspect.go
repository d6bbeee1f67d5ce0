package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Print the element tree of the target application",
	Description: `Walk the element tree and print it, as an indented outline or as a
JSON snapshot. A JSON snapshot can be replayed later with the snapshot
driver:

  logic-automator inspect --format json --output dump.json
  logic-automator --driver snapshot --tree dump.json replay protocol.yaml

With --find, print every element whose description matches instead of
the whole tree, to preview what a protocol target would resolve to:

  logic-automator inspect --find volume`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "depth",
			Usage: "Maximum walk depth (default: workspace config, or 5)",
		},
		&cli.StringFlag{
			Name:  "find",
			Usage: "Print elements whose description contains this text",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format (text, json)",
			Value: "text",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Write output to a file instead of stdout",
		},
	},
	Action: runInspect,
}

func runInspect(c *cli.Context) error {
	wsCfg, err := loadWorkspaceConfig(c.String("config"))
	if err != nil {
		return err
	}

	cfg := &RunConfig{
		Driver:   c.String("driver"),
		TreePath: c.String("tree"),
		PID:      c.Int("pid"),
	}
	driver, cleanup, err := createDriver(cfg)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}
	defer cleanup()

	if err := driver.CheckPermission(); err != nil {
		printPermissionHelp()
		return cli.Exit("", 1)
	}

	root, err := driver.AppElement(cfg.PID)
	if err != nil {
		return fmt.Errorf("failed to resolve application element: %w", err)
	}

	depth := wsCfg.WalkDepth()
	if c.IsSet("depth") {
		depth = c.Int("depth")
	}

	format := c.String("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (expected text or json)", format)
	}

	var out bytes.Buffer
	if q := c.String("find"); q != "" {
		if err := writeMatches(&out, root, tree.Query{Description: q, MaxDepth: depth}, format); err != nil {
			return err
		}
	} else {
		snap := tree.Snapshot(root, depth)
		if format == "json" {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode snapshot: %w", err)
			}
			out.Write(data)
			out.WriteByte('\n')
		} else {
			writeTreeText(&out, snap)
			fmt.Fprintf(&out, "\n%d element(s)\n", tree.Count(snap))
		}
	}

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}

	_, err = os.Stdout.Write(out.Bytes())
	return err
}

// writeMatches lists every element a description query resolves to, in
// the pre-order the locator would visit them. The first line is what a
// protocol target with the same description picks.
func writeMatches(w io.Writer, root core.Element, q tree.Query, format string) error {
	matches := tree.FindAll(root, q)
	summaries := make([]*core.ElementSummary, len(matches))
	for i, el := range matches {
		summaries[i] = tree.Summarize(el)
	}

	if format == "json" {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode matches: %w", err)
		}
		w.Write(data)
		io.WriteString(w, "\n")
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintf(w, "%s %q key=%s\n", s.Role, s.Description, s.Key)
	}
	fmt.Fprintf(w, "%d match(es)\n", len(summaries))
	return nil
}

// writeTreeText renders a snapshot as an indented outline, one element
// per line: role, description, current value.
func writeTreeText(w io.Writer, n *tree.Node) {
	indent := strings.Repeat("  ", n.Depth)
	line := n.Role
	if desc, ok := n.Attributes.GetString(core.AttrDescription); ok && desc != "" {
		line += fmt.Sprintf(" %q", desc)
	}
	if v, ok := n.Attributes.Get(core.AttrValue); ok {
		line += fmt.Sprintf(" = %s", v)
	}
	fmt.Fprintf(w, "%s%s\n", indent, line)
	for _, child := range n.Children {
		writeTreeText(w, child)
	}
}
