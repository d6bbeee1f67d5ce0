// Package protocol handles parsing and representation of protocol YAML
// files: scripted interaction sequences recorded from or replayed against
// the target application.
package protocol

import "gopkg.in/yaml.v3"

// Target represents element selection criteria. Resolution is always
// first-match in pre-order against the description attribute, so a target
// carries the query, never a ranking.
// Pure data structure - the executor decides how to resolve it.
type Target struct {
	// Description substring to match, case-insensitive
	Description string `yaml:"description"`

	// Role restricts matches to one role tag (AXSlider, AXButton, ...)
	Role string `yaml:"role"`

	// MaxDepth bounds the search; 0 means the executor default
	MaxDepth int `yaml:"maxDepth"`
}

// targetRaw is used for YAML parsing to capture the "element" field.
type targetRaw struct {
	Description string `yaml:"description"`
	Element     string `yaml:"element"` // Shorthand for description
	Role        string `yaml:"role"`
	MaxDepth    int    `yaml:"maxDepth"`
}

// UnmarshalYAML allows Target to be unmarshaled from string or struct.
func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Description = node.Value
		return nil
	}

	var raw targetRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	t.Description = raw.Description
	t.Role = raw.Role
	t.MaxDepth = raw.MaxDepth

	// "element" is a shorthand for "description"
	if raw.Element != "" && t.Description == "" {
		t.Description = raw.Element
	}

	return nil
}

// IsEmpty returns true if no target properties are set.
func (t *Target) IsEmpty() bool {
	return t.Description == "" && t.Role == ""
}

// Describe returns a human-readable description.
func (t *Target) Describe() string {
	switch {
	case t.Description != "":
		return t.Description
	case t.Role != "":
		return "role:" + t.Role
	default:
		return ""
	}
}

// DescribeQuoted returns a quoted description like description="value".
func (t *Target) DescribeQuoted() string {
	switch {
	case t.Description != "":
		return "description=\"" + t.Description + "\""
	case t.Role != "":
		return "role=\"" + t.Role + "\""
	default:
		return ""
	}
}
