// Package tree provides depth-bounded, cycle-safe traversal of the
// accessibility element tree and snapshotting of element attributes.
package tree

import (
	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// DefaultMaxDepth bounds traversal when the caller does not supply a depth.
// The tree is externally owned and may contain cycles or unbounded fan-out.
const DefaultMaxDepth = 5

// Attributes reads every attribute the element exposes and converts each
// value into the portable value model. Attributes whose read fails are
// omitted; partial results are the normal case. The set is built fresh on
// every call, never cached.
func Attributes(el core.Element) core.AttributeSet {
	attrs := make(core.AttributeSet)

	names, err := el.AttributeNames()
	if err != nil {
		return attrs
	}

	for _, name := range names {
		value, err := el.Attribute(name)
		if err != nil {
			continue
		}
		attrs[name] = core.Convert(value)
	}

	return attrs
}

// Children returns the element's declared children. Absence of children is
// not an error; failures yield an empty list.
func Children(el core.Element) []core.Element {
	children, err := el.Children()
	if err != nil {
		return nil
	}
	return children
}

// WalkFunc is called for each visited element with its depth relative to
// the walk root. Returning false stops the walk.
type WalkFunc func(el core.Element, depth int) bool

// Walk performs a pre-order traversal from root, visiting each element at
// most once. Descent stops at maxDepth: elements at that depth are visited
// but not descended into. A maxDepth <= 0 uses DefaultMaxDepth.
func Walk(root core.Element, maxDepth int, visit WalkFunc) {
	if root == nil {
		return
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := make(map[string]bool)
	walk(root, 0, maxDepth, visited, visit)
}

func walk(el core.Element, depth, maxDepth int, visited map[string]bool, visit WalkFunc) bool {
	key := el.Key()
	if visited[key] {
		return true
	}
	visited[key] = true

	if !visit(el, depth) {
		return false
	}

	if depth >= maxDepth {
		return true
	}

	for _, child := range Children(el) {
		if !walk(child, depth+1, maxDepth, visited, visit) {
			return false
		}
	}

	return true
}

// Node is an immutable snapshot of one element, captured for hierarchy
// dumps and replay artifacts.
type Node struct {
	Key        string            `json:"key"`
	Role       string            `json:"role"`
	Attributes core.AttributeSet `json:"attributes,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
	Depth      int               `json:"depth"`
}

// Snapshot captures the subtree rooted at el, bounded by maxDepth.
func Snapshot(el core.Element, maxDepth int) *Node {
	if el == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := make(map[string]bool)
	return snapshot(el, 0, maxDepth, visited)
}

func snapshot(el core.Element, depth, maxDepth int, visited map[string]bool) *Node {
	key := el.Key()
	if visited[key] {
		return nil
	}
	visited[key] = true

	node := &Node{
		Key:        key,
		Role:       el.Role(),
		Attributes: Attributes(el),
		Depth:      depth,
	}

	if depth >= maxDepth {
		return node
	}

	for _, child := range Children(el) {
		if childNode := snapshot(child, depth+1, maxDepth, visited); childNode != nil {
			node.Children = append(node.Children, childNode)
		}
	}

	return node
}

// Flatten flattens a snapshot tree into a pre-order list.
func Flatten(node *Node) []*Node {
	if node == nil {
		return nil
	}
	result := []*Node{node}
	for _, child := range node.Children {
		result = append(result, Flatten(child)...)
	}
	return result
}

// Count returns the number of nodes in a snapshot tree.
func Count(node *Node) int {
	return len(Flatten(node))
}
