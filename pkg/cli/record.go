package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tonyatml/logic-automator-sub001/pkg/config"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/driver/mock"
	"github.com/tonyatml/logic-automator-sub001/pkg/event"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
	"github.com/tonyatml/logic-automator-sub001/pkg/session"
)

var recordCommand = &cli.Command{
	Name:  "record",
	Usage: "Record filtered UI events into a session log",
	Description: `Record accessibility notifications from the target application.

Events pass through the meaningful-event filter before they are stored:
allow-listed types and roles only, debounced per element, rate capped.
The filter section of the workspace config adjusts all three stages.

Recording stops after --duration, or on Ctrl+C.

Examples:
  logic-automator record --duration 30s --name "chorus tweaks"
  logic-automator record --stdout
  logic-automator record --demo --name demo`,
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Stop recording after this long (0 = until interrupted)",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Recording name",
			Value: "session",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "Recording description",
		},
		&cli.StringSliceFlag{
			Name:  "tags",
			Usage: "Tags stored with the recording",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory (default: <home>/recordings)",
		},
		&cli.BoolFlag{
			Name:  "stdout",
			Usage: "Write the recording to stdout instead of a file",
		},
		&cli.BoolFlag{
			Name:  "demo",
			Usage: "Drive a scripted editing burst through the mock driver",
		},
	},
	Action: runRecord,
}

func runRecord(c *cli.Context) error {
	wsCfg, err := loadWorkspaceConfig(c.String("config"))
	if err != nil {
		return err
	}

	// A recording has no run directory of its own; the session log goes
	// under the home logs dir.
	if err := os.MkdirAll(config.GetLogsDir(), 0o755); err == nil {
		logPath := filepath.Join(config.GetLogsDir(), "record.log")
		if err := logger.Init(logPath, c.Bool("verbose")); err != nil {
			fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
		}
		defer logger.Close()
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

	store := event.NewConfigStore(wsCfg.FilterConfig())
	rec := session.NewRecorder(driver, store)
	if err := rec.Start(); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	logger.Info("recording session %s started", rec.ID())

	if c.Bool("demo") {
		playDemoActivity(driver)
		// Let the delivery goroutine drain before finishing
		time.Sleep(100 * time.Millisecond)
	} else {
		fmt.Printf("Recording session %s, press Ctrl+C to finish...\n", rec.ID())
		waitForStop(c.Duration("duration"))
	}

	meta := session.Meta{
		Name:        c.String("name"),
		Description: c.String("description"),
		Tags:        c.StringSlice("tags"),
	}

	if c.Bool("stdout") {
		if _, err := rec.FinishTo(meta, session.NewJSONLSink(os.Stdout)); err != nil {
			return fmt.Errorf("failed to write recording: %w", err)
		}
		return nil
	}

	outDir := c.String("output")
	if outDir == "" {
		outDir = config.GetRecordingsDir()
	}
	sink := session.FileSink{Dir: outDir}
	recording, err := rec.FinishTo(meta, sink)
	if err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	logger.Info("recording %s finished: %d accepted, %d dropped",
		recording.ID, len(recording.Records), recording.Drops.Total())

	fmt.Println()
	fmt.Printf("  %s✓%s Recorded %d event(s) (%d dropped by filters)\n",
		color(colorGreen), color(colorReset), len(recording.Records), recording.Drops.Total())
	fmt.Printf("  Recording: %s\n", sink.Path(recording))

	return nil
}

// waitForStop blocks for the recording duration, or until interrupted.
func waitForStop(d time.Duration) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if d > 0 {
		select {
		case <-time.After(d):
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nReceived %v, finishing recording...\n", sig)
		}
		return
	}

	sig := <-sigCh
	fmt.Fprintf(os.Stderr, "\nReceived %v, finishing recording...\n", sig)
}

// playDemoActivity runs a short scripted editing burst against the demo
// project: a fader sweep the debouncer collapses, then a velocity edit.
func playDemoActivity(d *mock.Driver) {
	set := func(key, attr string, value interface{}) {
		if el, ok := d.ElementByKey(key); ok {
			_ = el.SetAttribute(attr, value)
		}
	}

	for i := 0; i <= 4; i++ {
		set("track-1-volume", core.AttrValue, 0.5+float64(i)*0.05)
	}
	set("region-drums-velocity", core.AttrValue, 112.0)
}
