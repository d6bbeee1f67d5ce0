package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/event"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

// eventCollector taps the driver's notification stream during replay so a
// captured run can attach the events that fired while it executed. The
// stream is recorded raw, without the session filter pipeline: a debug
// artifact wants everything.
type eventCollector struct {
	mu      sync.Mutex
	start   time.Time
	records []event.Record
}

// newEventCollector subscribes to the driver when it can push
// notifications. Returns nil otherwise and the event log attachment is
// skipped. The subscription stays open for the duration of the suite; the
// driver owner tears it down with the driver.
func newEventCollector(driver core.Driver, start time.Time) *eventCollector {
	source, ok := driver.(core.NotificationSource)
	if !ok {
		logger.Debug("driver has no notification stream, event log capture off")
		return nil
	}

	c := &eventCollector{start: start}
	if err := source.Subscribe(c.observe); err != nil {
		logger.Warn("cannot subscribe for event log capture: %v", err)
		return nil
	}
	return c
}

func (c *eventCollector) observe(n core.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, event.Record{
		RelativeTime: n.Timestamp.Sub(c.start).Seconds(),
		Timestamp:    n.Timestamp,
		Command:      n.Type,
		Role:         n.Role,
		ElementKey:   n.ElementKey,
		Attributes:   n.Attributes,
	})
}

// mark returns the current log position, taken before a run starts.
func (c *eventCollector) mark() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.records)
}

// dump renders the records observed since the given position, one JSON
// document per line.
func (c *eventCollector) dump(since int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	for _, rec := range c.records[since:] {
		line, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// attachArtifacts captures debug attachments for one finished run. since
// is the collector position taken before the run started, so the event
// log covers just that run.
func (r *Runner) attachArtifacts(run *core.RunResult, idx int, events *eventCollector, since int) {
	if r.config.Artifacts.Hierarchy {
		if data, err := r.hierarchyDump(); err != nil {
			logger.Warn("cannot capture hierarchy for run %d: %v", idx, err)
		} else {
			run.Attachments = append(run.Attachments,
				core.NewHierarchyAttachment(fmt.Sprintf("run-%03d-hierarchy.json", idx), data))
		}
	}

	if r.config.Artifacts.EventLog && events != nil {
		run.Attachments = append(run.Attachments,
			core.NewEventLogAttachment(fmt.Sprintf("run-%03d-events.jsonl", idx), events.dump(since)))
	}
}

// hierarchyDump snapshots the application tree as pretty JSON.
func (r *Runner) hierarchyDump() ([]byte, error) {
	root, err := r.driver.AppElement(r.config.PID)
	if err != nil {
		return nil, err
	}
	snap := tree.Snapshot(root, tree.DefaultMaxDepth)
	return json.MarshalIndent(snap, "", "  ")
}
