package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented outline of the tree. Leaves and token nodes show
// their source text.
func Dump(w io.Writer, t *Tree) error {
	return dumpNode(w, t, t.Root, 0)
}

func dumpNode(w io.Writer, t *Tree, n *Node, depth int) error {
	if n == nil {
		return nil
	}
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s type=%q [%d,%d)", indent, n.Kind, n.Type, n.Span.Start, n.Span.End)
	if len(n.Children) == 0 || n.Kind.IsToken() {
		line += fmt.Sprintf(" %q", t.Text(n))
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := dumpNode(w, t, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
