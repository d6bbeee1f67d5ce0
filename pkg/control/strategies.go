package control

import (
	"context"
	"strconv"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
	"github.com/tonyatml/logic-automator-sub001/pkg/input"
	"github.com/tonyatml/logic-automator-sub001/pkg/tree"
)

// subControlDepth bounds the discovery search. Dedicated value controls
// sit deeper under a region than the general walker default reaches.
const subControlDepth = 10

// readStrategies builds the get chain for one control: direct attribute
// read, then the discovered sub-control's value, then a parse of the
// region's description text.
func readStrategies(el core.Element, spec Spec, timeouts Timeouts) []Strategy {
	return []Strategy{
		{
			ID:      StrategyDirect,
			Timeout: timeouts.Direct,
			Run: func(context.Context) (*core.Value, error) {
				return directRead(el, spec.Attribute)
			},
		},
		{
			ID:      StrategyDiscovery,
			Timeout: timeouts.Discovery,
			Run: func(context.Context) (*core.Value, error) {
				sub, ok := tree.Find(el, tree.Query{Description: spec.Keyword, MaxDepth: subControlDepth})
				if !ok {
					return nil, core.ErrControlNotFound.WithMessage("no sub-control matching " + strconv.Quote(spec.Keyword))
				}
				return directRead(sub, core.AttrValue)
			},
		},
		{
			ID:      StrategyHeuristic,
			Timeout: timeouts.Heuristic,
			Run: func(context.Context) (*core.Value, error) {
				return heuristicRead(el, spec)
			},
		},
	}
}

// writeStrategies builds the set chain: direct attribute write, then a
// write to the discovered sub-control's value, then synthetic input of
// the serialized value. Shared by the numeric controls and the move and
// resize commands.
func writeStrategies(el core.Element, attr, keyword string, native interface{}, text string, typer *input.Typer, timeouts Timeouts) []Strategy {
	return []Strategy{
		{
			ID:      StrategyDirect,
			Timeout: timeouts.Direct,
			Run: func(context.Context) (*core.Value, error) {
				return nil, el.SetAttribute(attr, native)
			},
		},
		{
			ID:      StrategyDiscovery,
			Timeout: timeouts.Discovery,
			Run: func(context.Context) (*core.Value, error) {
				sub, ok := tree.Find(el, tree.Query{Description: keyword, MaxDepth: subControlDepth})
				if !ok {
					return nil, core.ErrControlNotFound.WithMessage("no sub-control matching " + strconv.Quote(keyword))
				}
				return nil, sub.SetAttribute(core.AttrValue, native)
			},
		},
		{
			ID:      StrategySynthetic,
			Timeout: timeouts.Synthetic,
			Run: func(ctx context.Context) (*core.Value, error) {
				return nil, typer.TypeValue(ctx, el, text, true)
			},
		},
	}
}

// directRead reads one attribute and normalizes it to a number. Numeric
// strings count; anything else is treated as unavailable so the chain
// can fall through.
func directRead(el core.Element, attr string) (*core.Value, error) {
	native, err := el.Attribute(attr)
	if err != nil {
		return nil, err
	}
	f, ok := Numeric(core.Convert(native))
	if !ok {
		return nil, core.ErrAttributeUnavailable.WithMessage("attribute " + attr + " is not numeric")
	}
	v := core.NumberValue(f)
	return &v, nil
}

// heuristicRead extracts the control value from the region's description
// text. Last read resort: some builds expose values only as display text
// like "Vocals vol: -3.5 pan: 0.2".
func heuristicRead(el core.Element, spec Spec) (*core.Value, error) {
	desc := tree.Description(el)
	if desc == "" {
		return nil, core.ErrAttributeUnavailable.WithMessage("element has no description to parse")
	}
	m := spec.Pattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, core.ErrControlNotFound.WithMessage(spec.Name + " not present in description")
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, core.ErrAttributeUnavailable.WithCause(err)
	}
	v := core.NumberValue(f)
	return &v, nil
}
