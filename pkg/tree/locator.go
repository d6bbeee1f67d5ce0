package tree

import (
	"strings"

	"github.com/tonyatml/logic-automator-sub001/pkg/core"
)

// Query describes a descendant lookup. Description matching is a
// case-insensitive substring test against the element's description
// attribute; Role, when set, must match exactly.
type Query struct {
	Description string
	Role        string
	MaxDepth    int
}

// Find returns the first element in pre-order whose description contains
// the query substring, or false when no element within MaxDepth matches.
// First-match is a documented policy: ties resolve to whichever candidate
// is encountered first in pre-order, never to a "best" match, so an
// unchanged tree always yields the same element.
func Find(root core.Element, q Query) (core.Element, bool) {
	var found core.Element

	Walk(root, q.MaxDepth, func(el core.Element, depth int) bool {
		if !Matches(el, q) {
			return true
		}
		found = el
		return false
	})

	if found == nil {
		return nil, false
	}
	return found, true
}

// FindAll returns every matching element in pre-order.
func FindAll(root core.Element, q Query) []core.Element {
	var found []core.Element

	Walk(root, q.MaxDepth, func(el core.Element, depth int) bool {
		if Matches(el, q) {
			found = append(found, el)
		}
		return true
	})

	return found
}

// Matches reports whether a single element satisfies the query.
func Matches(el core.Element, q Query) bool {
	if q.Role != "" && el.Role() != q.Role {
		return false
	}
	if q.Description == "" {
		return q.Role != ""
	}
	return containsIgnoreCase(Description(el), q.Description)
}

// Description reads the element's description attribute, falling back to
// the title attribute. Returns "" when neither is readable.
func Description(el core.Element) string {
	if s, ok := stringAttribute(el, core.AttrDescription); ok && s != "" {
		return s
	}
	if s, ok := stringAttribute(el, core.AttrTitle); ok {
		return s
	}
	return ""
}

// Summarize captures a serializable summary of the element for results
// and reports.
func Summarize(el core.Element) *core.ElementSummary {
	if el == nil {
		return nil
	}

	summary := &core.ElementSummary{
		Key:         el.Key(),
		Role:        el.Role(),
		Description: Description(el),
	}

	if v, err := el.Attribute(core.AttrPosition); err == nil {
		if p, ok := v.(core.Point); ok {
			summary.Position = &p
		}
	}
	if v, err := el.Attribute(core.AttrSize); err == nil {
		if s, ok := v.(core.Size); ok {
			summary.Size = &s
		}
	}

	return summary
}

func stringAttribute(el core.Element, name string) (string, bool) {
	v, err := el.Attribute(name)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// containsIgnoreCase checks if s contains substr (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
