package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// WriteText renders the human-readable summary of a report.
func WriteText(w io.Writer, r *Report) error {
	name := r.Name
	if name == "" {
		name = "replay"
	}
	if _, err := fmt.Fprintf(w, "%s (%s)\n", name, r.RunID); err != nil {
		return err
	}

	var info []string
	if r.App != "" {
		info = append(info, "app: "+r.App)
	}
	if r.Automator.Driver != "" {
		info = append(info, "driver: "+r.Automator.Driver)
	}
	info = append(info, "started: "+r.StartTime.Format(time.RFC3339))
	if _, err := fmt.Fprintf(w, "%s\n\n", strings.Join(info, "  ")); err != nil {
		return err
	}

	for i := range r.Runs {
		if err := writeRun(w, &r.Runs[i]); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d passed, %d failed, %d skipped",
		r.Summary.Passed, r.Summary.Failed, r.Summary.Skipped)
	if r.Summary.Flaky > 0 {
		summary += fmt.Sprintf(", %d flaky", r.Summary.Flaky)
	}
	_, err := fmt.Fprintf(w, "\n%s (%s)\n", summary, formatMs(r.DurationMs))
	return err
}

func writeRun(w io.Writer, run *RunEntry) error {
	line := fmt.Sprintf("%-7s %s", statusLabel(run.Status), run.Name)
	if run.SourceFile != "" {
		line += fmt.Sprintf(" (%s)", filepath.Base(run.SourceFile))
	}
	if run.Steps.Total > 0 {
		line += fmt.Sprintf("  %d steps, %s", run.Steps.Total, formatMs(run.DurationMs))
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	detailed := false
	for i := range run.Commands {
		cmd := &run.Commands[i]
		if cmd.Status != StatusFailed && cmd.Status != StatusErrored && cmd.Status != StatusWarned {
			continue
		}
		msg := cmd.Message
		if cmd.Error != nil {
			msg = cmd.Error.Message
		}
		if _, err := fmt.Fprintf(w, "        step %d %s: %s\n", cmd.Index+1, cmd.Type, msg); err != nil {
			return err
		}
		detailed = true
	}

	// Skipped and errored runs carry their reason on the run itself.
	if run.Error != "" && !detailed {
		if _, err := fmt.Fprintf(w, "        %s\n", run.Error); err != nil {
			return err
		}
	}
	return nil
}

func statusLabel(s Status) string {
	switch s {
	case StatusPassed:
		return "PASS"
	case StatusFailed:
		return "FAIL"
	case StatusErrored:
		return "ERROR"
	case StatusSkipped:
		return "SKIP"
	case StatusWarned:
		return "WARN"
	default:
		return strings.ToUpper(string(s))
	}
}

func formatMs(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%dm%02ds", ms/60000, (ms%60000)/1000)
	}
}
