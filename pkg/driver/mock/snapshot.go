package mock

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tonyatml/logic-automator-sub001/pkg/control"
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Node describes one element of a scripted tree. Trees load from JSON
// snapshot files or are built in code.
type Node struct {
	Key        string                 `json:"key"`
	Role       string                 `json:"role"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	EditTarget string                 `json:"editTarget,omitempty"`
	Children   []Node                 `json:"children,omitempty"`
}

// Load replaces the driver's tree with the one described by root.
func (d *Driver) Load(root Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.index = make(map[string]*Element)
	el, err := d.build(root)
	if err != nil {
		d.index = make(map[string]*Element)
		return err
	}
	d.root = el
	d.focused = nil
	return nil
}

// LoadFile loads a JSON snapshot from disk.
func (d *Driver) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return d.Load(root)
}

func (d *Driver) build(n Node) (*Element, error) {
	if n.Key == "" {
		return nil, fmt.Errorf("node without key")
	}
	if _, dup := d.index[n.Key]; dup {
		return nil, fmt.Errorf("duplicate key %q", n.Key)
	}

	attrs := make(map[string]interface{}, len(n.Attributes))
	for k, v := range n.Attributes {
		attrs[k] = v
	}
	el := &Element{
		drv:        d,
		key:        n.Key,
		role:       n.Role,
		attrs:      attrs,
		editTarget: n.EditTarget,
	}
	d.index[n.Key] = el

	for _, c := range n.Children {
		child, err := d.build(c)
		if err != nil {
			return nil, err
		}
		el.children = append(el.children, child)
	}
	return el, nil
}

// DemoProject returns the canned project tree used by demo and smoke
// runs: three tracks, one region each. The drums region hides its
// velocity behind a sub-control so the discovery strategy gets exercised
// out of the box.
func DemoProject() Node {
	return Node{
		Key:  "app",
		Role: "AXApplication",
		Attributes: map[string]interface{}{
			core.AttrTitle: "Logic Pro",
		},
		Children: []Node{
			{
				Key:  "window-main",
				Role: "AXWindow",
				Attributes: map[string]interface{}{
					core.AttrTitle: "Demo Project - Tracks",
				},
				Children: []Node{
					{
						Key:  "toolbar",
						Role: "AXToolbar",
						Children: []Node{
							{
								Key:  "btn-play",
								Role: "AXButton",
								Attributes: map[string]interface{}{
									core.AttrDescription: "Play",
								},
							},
						},
					},
					{
						Key:  "tracks-area",
						Role: "AXGroup",
						Attributes: map[string]interface{}{
							core.AttrDescription: "Tracks Area",
						},
						Children: []Node{
							{
								Key:  "track-1",
								Role: "AXGroup",
								Attributes: map[string]interface{}{
									core.AttrDescription: "Track 1 Vocals",
								},
								Children: []Node{
									{
										Key:  "track-1-volume",
										Role: "AXSlider",
										Attributes: map[string]interface{}{
											core.AttrDescription: "Volume Fader",
											core.AttrValue:       0.5,
										},
									},
									demoRegion("region-vocals", "Vocals", map[string]interface{}{
										control.AttrVolume:   0.5,
										control.AttrPan:      0.0,
										control.AttrVelocity: 96,
										control.AttrPitch:    0,
									}, 0, 8.5, 120, 140),
								},
							},
							{
								Key:  "track-2",
								Role: "AXGroup",
								Attributes: map[string]interface{}{
									core.AttrDescription: "Track 2 Drums",
								},
								Children: []Node{
									demoRegion("region-drums", "Drums", map[string]interface{}{
										control.AttrVolume: 0.8,
										control.AttrPan:    -0.2,
										control.AttrPitch:  0,
									}, 0, 4, 120, 220, Node{
										Key:  "region-drums-velocity",
										Role: "AXTextField",
										Attributes: map[string]interface{}{
											core.AttrDescription: "Velocity",
											core.AttrValue:       110,
										},
									}),
								},
							},
							{
								Key:  "track-3",
								Role: "AXGroup",
								Attributes: map[string]interface{}{
									core.AttrDescription: "Track 3 Bass",
								},
								Children: []Node{
									demoRegion("region-bass", "Bass", map[string]interface{}{
										control.AttrVolume:   0.6,
										control.AttrPan:      0.2,
										control.AttrVelocity: 80,
										control.AttrPitch:    -12,
									}, 2, 10, 120, 300),
								},
							},
						},
					},
				},
			},
		},
	}
}

func demoRegion(key, name string, controls map[string]interface{}, start, end, x, y float64, children ...Node) Node {
	attrs := map[string]interface{}{
		core.AttrDescription:  name,
		control.AttrStartTime: start,
		control.AttrEndTime:   end,
		core.AttrPosition: map[string]interface{}{
			"x": x,
			"y": y,
		},
		core.AttrSize: map[string]interface{}{
			"width":  320.0,
			"height": 48.0,
		},
	}
	for k, v := range controls {
		attrs[k] = v
	}
	return Node{
		Key:        key,
		Role:       "AXLayoutItem",
		Attributes: attrs,
		Children:   children,
	}
}
