package control

import (
	"context"
	"errors"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
)

// Strategy IDs as recorded in attempt trails.
const (
	StrategyDirect    = "direct_attribute"
	StrategyDiscovery = "control_discovery"
	StrategyHeuristic = "description_heuristic"
	StrategySynthetic = "synthetic_input"
)

// Timeouts bounds a single attempt of each strategy family. Discovery
// walks the subtree and synthetic input sleeps through settle delays, so
// they get more room than plain attribute calls.
type Timeouts struct {
	Direct    time.Duration
	Discovery time.Duration
	Heuristic time.Duration
	Synthetic time.Duration
}

// DefaultTimeouts returns the per-strategy timeouts used in production.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Direct:    500 * time.Millisecond,
		Discovery: 2 * time.Second,
		Heuristic: 500 * time.Millisecond,
		Synthetic: 5 * time.Second,
	}
}

// Strategy is one way of performing a logical operation. Run returns the
// value produced by a read, or nil for writes.
type Strategy struct {
	ID      string
	Timeout time.Duration
	Run     func(ctx context.Context) (*core.Value, error)
}

// Execute tries strategies in order and returns the first success,
// together with the full attempt trail. A strategy timeout falls through
// to the next strategy. Stale handles, missing authorization and caller
// cancellation abort the chain instead; retrying those with a different
// strategy cannot succeed. When every strategy has failed the chain
// reports ErrStrategyExhausted.
func Execute(ctx context.Context, strategies []Strategy) (*core.Value, []core.StrategyAttempt, error) {
	attempts := make([]core.StrategyAttempt, 0, len(strategies))

	for _, s := range strategies {
		start := time.Now()
		v, err := runStrategy(ctx, s)
		attempt := core.StrategyAttempt{
			StrategyID: s.ID,
			Duration:   time.Since(start),
		}

		if err == nil {
			attempt.Succeeded = true
			attempt.Value = v
			attempts = append(attempts, attempt)
			return v, attempts, nil
		}

		attempt.ErrorKind = errorKind(err)
		attempts = append(attempts, attempt)
		logger.Debug("strategy %s failed: %v", s.ID, err)

		if errors.Is(err, core.ErrElementStale) || errors.Is(err, core.ErrPermissionDenied) {
			return nil, attempts, err
		}
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
	}

	return nil, attempts, core.ErrStrategyExhausted
}

// runStrategy bounds one attempt with the strategy's own timeout. The
// attempt keeps running in its goroutine after a timeout fires; element
// calls do not take a context, so an abandoned attempt finishes on its
// own and its result is dropped.
func runStrategy(parent context.Context, s Strategy) (*core.Value, error) {
	ctx := parent
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.Timeout)
		defer cancel()
	}

	type outcome struct {
		value *core.Value
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := s.Run(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, core.ErrTimeout.WithDetails(map[string]interface{}{"strategy": s.ID})
	}
}

// errorKind maps a strategy error to the code recorded in the trail.
func errorKind(err error) string {
	var ae *core.AutomationError
	if errors.As(err, &ae) {
		return ae.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "error"
}
