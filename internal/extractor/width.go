package extractor

import (
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// ResolveWidth computes the width of the declaration rooted at decl from
// its first packed dimension range.
//
//   - no range: width 1, no expression
//   - [A:B] with both bounds evaluating: |A-B|+1, unless that overflows
//   - [A], any other form, or a bound that does not evaluate: the range text
//     as a symbolic width
//
// expr is the range text whenever a range with tokens was found.
func ResolveWidth(t *syntax.Tree, decl *syntax.Node, macros *MacroTable) (w symtab.Width, expr string) {
	rng := decl.Find(syntax.KindPackedDimensionRange)
	if rng == nil {
		return symtab.Bits(1), ""
	}
	text, _, ok := BuildExpression(t, rng)
	if !ok {
		return symtab.Symbolic(Unknown), ""
	}
	if bits, ok := rangeWidth(text, macros); ok {
		return symtab.Bits(bits), text
	}
	return symtab.Symbolic(text), text
}

func rangeWidth(text string, macros *MacroTable) (int64, bool) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return 0, false
	}
	msbText, lsbText, found := strings.Cut(s[1:len(s)-1], ":")
	if !found {
		return 0, false
	}
	msb, ok := macros.Eval(msbText)
	if !ok {
		return 0, false
	}
	lsb, ok := macros.Eval(lsbText)
	if !ok {
		return 0, false
	}
	if msb < lsb {
		msb, lsb = lsb, msb
	}
	// Bounds far enough apart overflow int64.
	w := msb - lsb + 1
	if w < 1 || msb-lsb < 0 {
		return 0, false
	}
	return w, true
}
