package event

import (
	"sync"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// debounceKey classifies an event for duplicate suppression.
type debounceKey struct {
	eventType  string
	role       string
	elementKey string
}

// Drops counts rejected events by pipeline stage. Rejection is silent and
// permanent; the counters exist for diagnostics only.
type Drops struct {
	AllowList uint64 `json:"allowList"`
	Debounce  uint64 `json:"debounce"`
	RateLimit uint64 `json:"rateLimit"`
}

// Total returns the number of rejected events across all stages.
func (d Drops) Total() uint64 {
	return d.AllowList + d.Debounce + d.RateLimit
}

// Pipeline runs each incoming notification through the allow-list,
// debounce, and rate-limit stages, in that order. Events are processed in
// arrival order; the lock serializes deliveries should the source ever
// overlap them.
type Pipeline struct {
	store *ConfigStore

	mu           sync.Mutex
	sessionStart time.Time
	lastAccepted map[debounceKey]time.Time
	limiter      *windowLimiter
	drops        Drops
	accepted     uint64
}

// NewPipeline creates a pipeline whose relative times are measured from
// sessionStart. A nil store falls back to the default configuration.
func NewPipeline(store *ConfigStore, sessionStart time.Time) *Pipeline {
	if store == nil {
		store = NewConfigStore(DefaultConfig())
	}
	return &Pipeline{
		store:        store,
		sessionStart: sessionStart,
		lastAccepted: make(map[debounceKey]time.Time),
		limiter:      newWindowLimiter(time.Second),
	}
}

// UpdateConfig atomically replaces the filter configuration. Events already
// being classified keep the snapshot they started with.
func (p *Pipeline) UpdateConfig(cfg Config) {
	p.store.Update(cfg)
}

// Config returns the current configuration snapshot.
func (p *Pipeline) Config() Config {
	return *p.store.Snapshot()
}

// Process classifies one notification. It returns the stamped record and
// true when the event passed every stage, or a zero record and false when
// it was dropped. The debounce stamp is updated when an event clears the
// debounce stage, even if the rate limiter subsequently rejects it.
func (p *Pipeline) Process(n core.Notification) (Record, bool) {
	cfg := p.store.Snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !cfg.AllowsType(n.Type) || !cfg.AllowsRole(n.Role) {
		p.drops.AllowList++
		return Record{}, false
	}

	key := debounceKey{eventType: n.Type, role: n.Role, elementKey: n.ElementKey}
	if last, ok := p.lastAccepted[key]; ok && n.Timestamp.Sub(last) < cfg.DebounceTime {
		p.drops.Debounce++
		return Record{}, false
	}
	p.lastAccepted[key] = n.Timestamp

	if !p.limiter.allow(n.Timestamp, cfg.MaxEventsPerSecond) {
		p.drops.RateLimit++
		return Record{}, false
	}

	p.accepted++
	return newRecord(n, p.sessionStart), true
}

// Drops returns the per-stage rejection counters.
func (p *Pipeline) Drops() Drops {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drops
}

// Accepted returns the number of events that passed every stage.
func (p *Pipeline) Accepted() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted
}
