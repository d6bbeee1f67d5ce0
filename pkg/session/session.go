// Package session records filtered event streams into ordered, immutable
// protocol recordings.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/event"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
)

// Meta describes a finished recording.
type Meta struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Recording is the completed artifact handed to a sink: the ordered event
// log plus metadata and pipeline counters.
type Recording struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
	Records     []event.Record `json:"records"`
	Accepted    uint64         `json:"accepted"`
	Drops       event.Drops    `json:"drops"`
}

// Recorder wires a notification source through the filter pipeline into
// an in-memory event log. One recorder records one session.
type Recorder struct {
	id     string
	source core.NotificationSource
	store  *event.ConfigStore

	mu       sync.Mutex
	pipeline *event.Pipeline
	records  []event.Record
	started  time.Time
	running  bool
	finished bool
}

// NewRecorder creates a recorder over the given source. A nil store uses
// the default filter configuration.
func NewRecorder(source core.NotificationSource, store *event.ConfigStore) *Recorder {
	if store == nil {
		store = event.NewConfigStore(event.DefaultConfig())
	}
	return &Recorder{
		id:     uuid.NewString(),
		source: source,
		store:  store,
	}
}

// ID returns the session identifier.
func (r *Recorder) ID() string { return r.id }

// Start subscribes to the source and begins accepting events, measuring
// relative times from now.
func (r *Recorder) Start() error {
	return r.StartAt(time.Now())
}

// StartAt begins the session with an explicit start instant. Relative
// times in the log are measured against it.
func (r *Recorder) StartAt(start time.Time) error {
	r.mu.Lock()
	if r.running || r.finished {
		r.mu.Unlock()
		return fmt.Errorf("session %s already started", r.id)
	}
	r.running = true
	r.started = start
	r.pipeline = event.NewPipeline(r.store, start)
	r.mu.Unlock()

	if err := r.source.Subscribe(r.handle); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("subscribe: %w", err)
	}

	logger.Info("session %s started", r.id)
	return nil
}

// handle classifies one notification and appends it when accepted. It runs
// on the source's single delivery goroutine, which keeps the log append
// single-writer. Rejections and post-finish stragglers are dropped without
// disturbing the session.
func (r *Recorder) handle(n core.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	rec, ok := r.pipeline.Process(n)
	if !ok {
		return
	}
	r.records = append(r.records, rec)
}

// Records returns a snapshot of the accepted log so far, in arrival order.
func (r *Recorder) Records() []event.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]event.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Drops returns the per-stage rejection counters.
func (r *Recorder) Drops() event.Drops {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipeline == nil {
		return event.Drops{}
	}
	return r.pipeline.Drops()
}

// Accepted returns the number of events accepted so far.
func (r *Recorder) Accepted() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipeline == nil {
		return 0
	}
	return r.pipeline.Accepted()
}

// UpdateConfig swaps the filter configuration. In-flight events keep the
// snapshot they started with; the next event sees the new one.
func (r *Recorder) UpdateConfig(cfg event.Config) {
	r.store.Update(cfg)
	logger.Info("session %s filter configuration updated", r.id)
}

// Finish stops the session, detaches from the source, and returns the
// completed recording.
func (r *Recorder) Finish(meta Meta) (*Recording, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("session %s is not running", r.id)
	}
	r.running = false
	r.finished = true
	r.mu.Unlock()

	if err := r.source.Close(); err != nil {
		// The log is already complete at this point.
		logger.Warn("session %s source close: %v", r.id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &Recording{
		ID:          r.id,
		Name:        meta.Name,
		Description: meta.Description,
		Tags:        meta.Tags,
		StartedAt:   r.started,
		FinishedAt:  time.Now(),
		Records:     r.records,
		Accepted:    r.pipeline.Accepted(),
		Drops:       r.pipeline.Drops(),
	}
	if rec.Name == "" {
		rec.Name = r.id
	}
	r.records = nil

	logger.Info("session %s finished: %d events accepted, %d dropped",
		r.id, rec.Accepted, rec.Drops.Total())
	return rec, nil
}

// FinishTo finishes the session and hands the recording to a sink.
func (r *Recorder) FinishTo(meta Meta, sink Sink) (*Recording, error) {
	rec, err := r.Finish(meta)
	if err != nil {
		return nil, err
	}
	if err := sink.Write(rec); err != nil {
		return rec, fmt.Errorf("persist recording %s: %w", rec.ID, err)
	}
	return rec, nil
}
