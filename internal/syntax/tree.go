package syntax

import (
	"context"
	"fmt"
)

// Span is a half-open byte range [Start, End) into a Tree's source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.End <= s.End
}

// Node is one grammar construct. Children are in source order.
type Node struct {
	Kind     Kind
	Type     string // grammar production name as reported by the provider
	Span     Span
	Children []*Node
}

// Walk visits n and its descendants in pre-order (source order).
// Returning false from fn skips the children of the node just visited.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first node, n included, whose kind is one of kinds.
func (n *Node) Find(kinds ...Kind) *Node {
	var found *Node
	n.Walk(func(x *Node) bool {
		if found != nil {
			return false
		}
		for _, k := range kinds {
			if x.Kind == k {
				found = x
				return false
			}
		}
		return true
	})
	return found
}

// FindAll returns every descendant of n (n excluded) of the given kind,
// without descending into matches.
func (n *Node) FindAll(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.Walk(func(x *Node) bool {
			if x.Kind == kind {
				out = append(out, x)
				return false
			}
			return true
		})
	}
	return out
}

// Macro is a text macro known before the walk starts: defined on the
// command line or harvested from an included header.
type Macro struct {
	Name  string
	Value string
}

// Tree is a parsed source file.
type Tree struct {
	Path       string
	Source     []byte
	Root       *Node
	Predefined []Macro
}

// Text returns the exact source text covered by n.
func (t *Tree) Text(n *Node) string {
	if n == nil {
		return ""
	}
	return t.SpanText(n.Span)
}

// SpanText returns the source text covered by s, clamped to the source.
func (t *Tree) SpanText(s Span) string {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > len(t.Source) {
		end = len(t.Source)
	}
	if start >= end {
		return ""
	}
	return string(t.Source[start:end])
}

// Provider turns one source file into a Tree.
type Provider interface {
	// Name identifies the backend, e.g. "builtin" or "tree-sitter".
	Name() string
	Parse(ctx context.Context, path string, defines map[string]string, includes []string) (*Tree, error)
}

// ParseError reports a file that could not be turned into a tree.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
