package input

import (
	"context"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Typer runs the activate-type-confirm sequence against one element.
//
// Cancellation is honored only between steps, and never once the first
// keystroke has been issued: a partial input sequence runs to its confirm
// step rather than aborting mid-edit, which would leave the target
// application's editor in an inconsistent state.
type Typer struct {
	synth  Synthesizer
	timing Timing
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewTyper creates a Typer with the given synthesizer and timing.
func NewTyper(synth Synthesizer, timing Timing) *Typer {
	return &Typer{
		synth:  synth,
		timing: timing,
		sleep:  sleepCtx,
	}
}

// TypeValue activates the element, types text character by character, and
// when confirm is set commits the edit with Return. A nil element skips
// activation and types into whatever currently holds focus.
func (t *Typer) TypeValue(ctx context.Context, el core.Element, text string, confirm bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if el != nil {
		if err := t.activate(el); err != nil {
			return err
		}
	}

	// Still cancellable: no keystroke has been issued yet.
	if err := t.sleep(ctx, t.timing.ActivateSettle); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Point of no return: the sequence now runs through confirm.
	bg := context.Background()
	for _, ch := range text {
		if err := t.synth.TypeCharacter(ch); err != nil {
			return core.ErrInputFailed.WithCause(err)
		}
		if err := t.sleep(bg, t.timing.PerCharacter); err != nil {
			return err
		}
	}

	if err := t.sleep(bg, t.timing.PreConfirm); err != nil {
		return err
	}

	if confirm {
		if err := t.synth.PressKey(KeyReturn); err != nil {
			return core.ErrInputFailed.WithCause(err)
		}
	}

	return t.sleep(bg, t.timing.PostConfirm)
}

// Press injects a single non-printing key press, with no settle delays.
func (t *Typer) Press(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.synth.PressKey(key); err != nil {
		return core.ErrInputFailed.WithCause(err)
	}
	return nil
}

// activate gives the element keyboard focus. Pressing the control is the
// normal route; controls that reject the press action get a focus write
// instead.
func (t *Typer) activate(el core.Element) error {
	if err := el.Perform(core.ActionPress); err == nil {
		return nil
	}
	if err := el.SetAttribute(core.AttrFocused, true); err != nil {
		return core.ErrInputFailed.WithCause(err)
	}
	return nil
}

// sleepCtx parks the goroutine for d, or until ctx is done, whichever
// comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
