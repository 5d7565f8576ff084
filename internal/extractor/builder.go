package extractor

import (
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// Unknown is the expression text produced when a sub-tree has no tokens.
const Unknown = "unknown"

// BuildExpression reconstructs the source text of the expression under n
// by concatenating its identifier, symbol and number tokens in source
// order. ok is false, and the text is Unknown, when no token was found.
//
// Nested productions can expose one terminal more than once. A token is
// skipped when its span equals the previously accepted span or lies inside
// it.
func BuildExpression(t *syntax.Tree, n *syntax.Node) (text string, span syntax.Span, ok bool) {
	var (
		b    strings.Builder
		last syntax.Span
		seen bool
	)
	n.Walk(func(x *syntax.Node) bool {
		if !x.Kind.IsToken() {
			return true
		}
		if seen && (x.Span == last || last.Contains(x.Span)) {
			return true
		}
		b.WriteString(t.Text(x))
		if !seen {
			span.Start = x.Span.Start
		}
		span.End = x.Span.End
		last = x.Span
		seen = true
		return true
	})
	if !seen {
		return Unknown, syntax.Span{}, false
	}
	return b.String(), span, true
}
