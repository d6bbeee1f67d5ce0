package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/logger"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

// Controller executes region-level get and set commands through the
// strategy chain.
type Controller struct {
	typer    *input.Typer
	timeouts Timeouts
}

// New creates a Controller with default strategy timeouts.
func New(typer *input.Typer) *Controller {
	return NewWithTimeouts(typer, DefaultTimeouts())
}

// NewWithTimeouts creates a Controller with explicit strategy timeouts.
func NewWithTimeouts(typer *input.Typer, timeouts Timeouts) *Controller {
	return &Controller{typer: typer, timeouts: timeouts}
}

// GetValue reads one control value through the read chain. When every
// strategy fails the control's domain default is returned without error.
// Stale handles, missing authorization and cancellation still propagate.
func (c *Controller) GetValue(ctx context.Context, el core.Element, spec Spec) (float64, []core.StrategyAttempt, error) {
	v, attempts, err := Execute(ctx, readStrategies(el, spec, c.timeouts))
	if err != nil {
		if errors.Is(err, core.ErrStrategyExhausted) {
			logger.Debug("%s read exhausted all strategies, returning default %s", spec.Name, spec.Format(spec.Default))
			return spec.Default, attempts, nil
		}
		return 0, attempts, err
	}
	f, _ := v.AsNumber()
	return f, attempts, nil
}

// SetValue writes one control value through the write chain, then reads
// it back. A write only counts once the read-back agrees with it.
func (c *Controller) SetValue(ctx context.Context, el core.Element, spec Spec, value float64) ([]core.StrategyAttempt, error) {
	if err := spec.Validate(value); err != nil {
		return nil, err
	}

	strategies := writeStrategies(el, spec.Attribute, spec.Keyword, spec.NativeValue(value), spec.Format(value), c.typer, c.timeouts)
	_, attempts, err := Execute(ctx, strategies)
	if err != nil {
		return attempts, err
	}

	got, readAttempts, err := c.GetValue(ctx, el, spec)
	attempts = append(attempts, readAttempts...)
	if err != nil {
		return attempts, err
	}
	if !spec.Verify(got, value) {
		logger.Warn("%s read back %s after writing %s", spec.Name, spec.Format(got), spec.Format(value))
		return attempts, core.ErrValueMismatch.WithDetails(map[string]interface{}{
			"control": spec.Name,
			"want":    value,
			"got":     got,
		})
	}
	return attempts, nil
}

// GetRegionValues reads the full control snapshot for one region. The
// snapshot is built fresh on every call.
func (c *Controller) GetRegionValues(ctx context.Context, el core.Element) (*core.RegionValues, *core.CommandResult, error) {
	start := time.Now()
	res := &core.CommandResult{Element: tree.Summarize(el)}

	rv := &core.RegionValues{}
	var err error
	read := func(spec Spec) float64 {
		if err != nil {
			return 0
		}
		var f float64
		var attempts []core.StrategyAttempt
		f, attempts, err = c.GetValue(ctx, el, spec)
		res.Attempts = append(res.Attempts, attempts...)
		return f
	}

	rv.Volume = read(Volume)
	rv.Pan = read(Pan)
	rv.Velocity = int(read(Velocity))
	rv.Pitch = int(read(Pitch))
	if err != nil {
		res.Error = err
		res.Duration = time.Since(start)
		return nil, res, err
	}

	rv.StartTime = durationAttr(el, AttrStartTime)
	rv.EndTime = durationAttr(el, AttrEndTime)
	if p, ok := pointFrom(el, core.AttrPosition); ok {
		rv.Position = p
	}
	if s, ok := sizeFrom(el, core.AttrSize); ok {
		rv.Size = s
	}
	rv.Properties = tree.Attributes(el)

	v := regionValuesValue(rv)
	res.Success = true
	res.Value = &v
	res.Duration = time.Since(start)
	res.Message = fmt.Sprintf("volume=%s pan=%s velocity=%d pitch=%d",
		Volume.Format(rv.Volume), Pan.Format(rv.Pan), rv.Velocity, rv.Pitch)
	return rv, res, nil
}

// SetRegionVolume sets the region's volume.
func (c *Controller) SetRegionVolume(ctx context.Context, el core.Element, volume float64) (*core.CommandResult, error) {
	return c.setNumeric(ctx, el, Volume, volume)
}

// SetRegionPan sets the region's stereo pan, -1 (left) to 1 (right).
func (c *Controller) SetRegionPan(ctx context.Context, el core.Element, pan float64) (*core.CommandResult, error) {
	return c.setNumeric(ctx, el, Pan, pan)
}

// SetRegionVelocity sets the region's note velocity, 1 to 127.
func (c *Controller) SetRegionVelocity(ctx context.Context, el core.Element, velocity int) (*core.CommandResult, error) {
	return c.setNumeric(ctx, el, Velocity, float64(velocity))
}

// SetRegionPitch sets the region's pitch offset in semitones, -24 to 24.
func (c *Controller) SetRegionPitch(ctx context.Context, el core.Element, pitch int) (*core.CommandResult, error) {
	return c.setNumeric(ctx, el, Pitch, float64(pitch))
}

// MoveRegion repositions the region through the write chain and verifies
// the new position when it can be read back.
func (c *Controller) MoveRegion(ctx context.Context, el core.Element, to core.Point) (*core.CommandResult, error) {
	verify := func() error {
		got, ok := pointFrom(el, core.AttrPosition)
		if !ok {
			logger.Debug("position not readable after move, skipping verification")
			return nil
		}
		if math.Abs(got.X-to.X) > verifyTolerance || math.Abs(got.Y-to.Y) > verifyTolerance {
			return core.ErrValueMismatch.WithDetails(map[string]interface{}{
				"want": formatPoint(to),
				"got":  formatPoint(got),
			})
		}
		return nil
	}
	return c.setGeometry(ctx, el, core.AttrPosition, "position", to,
		formatPoint(to), "moved region to ("+formatPoint(to)+")", verify)
}

// ResizeRegion changes the region's on-screen extent, which in the
// target application stretches or trims its time range.
func (c *Controller) ResizeRegion(ctx context.Context, el core.Element, to core.Size) (*core.CommandResult, error) {
	verify := func() error {
		got, ok := sizeFrom(el, core.AttrSize)
		if !ok {
			logger.Debug("size not readable after resize, skipping verification")
			return nil
		}
		if math.Abs(got.Width-to.Width) > verifyTolerance || math.Abs(got.Height-to.Height) > verifyTolerance {
			return core.ErrValueMismatch.WithDetails(map[string]interface{}{
				"want": formatSize(to),
				"got":  formatSize(got),
			})
		}
		return nil
	}
	return c.setGeometry(ctx, el, core.AttrSize, "size", to,
		formatSize(to), "resized region to "+formatSize(to), verify)
}

func (c *Controller) setNumeric(ctx context.Context, el core.Element, spec Spec, value float64) (*core.CommandResult, error) {
	start := time.Now()
	attempts, err := c.SetValue(ctx, el, spec, value)
	res := &core.CommandResult{
		Success:  err == nil,
		Error:    err,
		Duration: time.Since(start),
		Element:  tree.Summarize(el),
		Attempts: attempts,
	}
	if err != nil {
		return res, err
	}
	v := core.NumberValue(value)
	res.Value = &v
	res.Message = "set " + spec.Name + " to " + spec.Format(value)
	return res, nil
}

func (c *Controller) setGeometry(ctx context.Context, el core.Element, attr, keyword string, native interface{}, text, message string, verify func() error) (*core.CommandResult, error) {
	start := time.Now()
	strategies := writeStrategies(el, attr, keyword, native, text, c.typer, c.timeouts)
	_, attempts, err := Execute(ctx, strategies)
	if err == nil {
		err = verify()
	}

	res := &core.CommandResult{
		Success:  err == nil,
		Error:    err,
		Duration: time.Since(start),
		Element:  tree.Summarize(el),
		Attempts: attempts,
	}
	if err != nil {
		return res, err
	}
	v := core.Convert(native)
	res.Value = &v
	res.Message = message
	return res, nil
}

// regionValuesValue renders the snapshot as a mapping for results and
// script bindings.
func regionValuesValue(rv *core.RegionValues) core.Value {
	return core.MappingValue(map[string]core.Value{
		"volume":    core.NumberValue(rv.Volume),
		"pan":       core.NumberValue(rv.Pan),
		"velocity":  core.NumberValue(float64(rv.Velocity)),
		"pitch":     core.NumberValue(float64(rv.Pitch)),
		"startTime": core.NumberValue(rv.StartTime.Seconds()),
		"endTime":   core.NumberValue(rv.EndTime.Seconds()),
		"position":  core.Convert(rv.Position),
		"size":      core.Convert(rv.Size),
	})
}

// durationAttr reads a seconds-valued attribute. Unreadable start and end
// times collapse to zero rather than failing the snapshot.
func durationAttr(el core.Element, attr string) time.Duration {
	v, err := directRead(el, attr)
	if err != nil {
		return 0
	}
	f, _ := v.AsNumber()
	return time.Duration(f * float64(time.Second))
}

// pointFrom reads an attribute as a screen point.
func pointFrom(el core.Element, attr string) (core.Point, bool) {
	m, ok := mappingAttr(el, attr)
	if !ok {
		return core.Point{}, false
	}
	x, xok := m.GetNumber("x")
	y, yok := m.GetNumber("y")
	if !xok || !yok {
		return core.Point{}, false
	}
	return core.Point{X: x, Y: y}, true
}

// sizeFrom reads an attribute as a width/height pair.
func sizeFrom(el core.Element, attr string) (core.Size, bool) {
	m, ok := mappingAttr(el, attr)
	if !ok {
		return core.Size{}, false
	}
	w, wok := m.GetNumber("width")
	h, hok := m.GetNumber("height")
	if !wok || !hok {
		return core.Size{}, false
	}
	return core.Size{Width: w, Height: h}, true
}

func mappingAttr(el core.Element, attr string) (core.AttributeSet, bool) {
	native, err := el.Attribute(attr)
	if err != nil {
		return nil, false
	}
	m, ok := core.Convert(native).AsMapping()
	if !ok {
		return nil, false
	}
	return core.AttributeSet(m), true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatPoint(p core.Point) string {
	return formatFloat(p.X) + ", " + formatFloat(p.Y)
}

func formatSize(s core.Size) string {
	return formatFloat(s.Width) + "x" + formatFloat(s.Height)
}
