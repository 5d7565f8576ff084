package extractor

import (
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/eval"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// MacroTable is the ordered list of macro definitions seen so far in one
// file. Entries are never deduplicated; a redefinition shadows the earlier
// value for everything evaluated after it.
type MacroTable struct {
	eval    *eval.Evaluator
	entries []syntax.Macro

	// scope holds the evaluated prefix entries[:built]. Each value only
	// sees the macros before it, so the scope can be extended in place.
	scope eval.Scope
	built int
}

// NewMacroTable returns an empty table evaluating with e.
func NewMacroTable(e *eval.Evaluator) *MacroTable {
	if e == nil {
		e = eval.New()
	}
	return &MacroTable{eval: e}
}

// Add appends a definition.
func (m *MacroTable) Add(name, value string) {
	m.entries = append(m.entries, syntax.Macro{Name: name, Value: value})
}

// Len returns the number of definitions, unresolvable ones included.
func (m *MacroTable) Len() int {
	return len(m.entries)
}

// Entries returns the definitions in insertion order.
func (m *MacroTable) Entries() []syntax.Macro {
	return append([]syntax.Macro(nil), m.entries...)
}

// Scope returns the evaluation scope: every definition whose value
// evaluates, in table order. Definitions that do not evaluate are skipped.
func (m *MacroTable) Scope() *eval.Scope {
	for ; m.built < len(m.entries); m.built++ {
		e := m.entries[m.built]
		m.scope.Define(m.eval, e.Name, stripMacroTicks(e.Value))
	}
	return &m.scope
}

// Eval evaluates expr against the current definitions.
func (m *MacroTable) Eval(expr string) (int64, bool) {
	return m.eval.Eval(stripMacroTicks(expr), m.Scope())
}

// Macro values may reference other macros as `NAME.
func stripMacroTicks(s string) string {
	return strings.ReplaceAll(s, "`", "")
}

// macroValue is the text of a define without comments or surrounding
// space.
func macroValue(text string) string {
	for {
		start := strings.Index(text, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(text[start+2:], "*/")
		if end < 0 {
			text = text[:start]
			break
		}
		text = text[:start] + " " + text[start+2+end+2:]
	}
	if i := strings.Index(text, "//"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
