package svparse

import (
	"errors"
	"fmt"
	"sort"

	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

var (
	errModuleName   = errors.New("module name expected")
	errNoEndmodule  = errors.New("missing endmodule")
	errUnclosedList = errors.New("unclosed port list")
)

var directions = map[string]syntax.Kind{
	"input":  syntax.KindInputDeclaration,
	"output": syntax.KindOutputDeclaration,
	"inout":  syntax.KindInoutDeclaration,
	"ref":    syntax.KindUnknown,
}

var netTypes = map[string]bool{
	"wire": true, "tri": true, "tri0": true, "tri1": true, "wand": true, "wor": true,
	"triand": true, "trior": true, "trireg": true, "supply0": true, "supply1": true,
	"uwire": true, "interconnect": true,
}

var dataTypes = map[string]bool{
	"logic": true, "reg": true, "bit": true, "byte": true, "shortint": true, "int": true,
	"longint": true, "integer": true, "time": true, "real": true, "shortreal": true,
	"realtime": true, "string": true, "chandle": true, "event": true,
}

// Module items skipped as a whole: their ports are not module ports.
var blockEnds = map[string]string{
	"function":   "endfunction",
	"task":       "endtask",
	"class":      "endclass",
	"covergroup": "endgroup",
	"property":   "endproperty",
	"sequence":   "endsequence",
	"clocking":   "endclocking",
	"checker":    "endchecker",
}

// itemBoundaries are keywords after which a new module item may start
// without a `;`.
var itemBoundaries = map[string]bool{
	"begin":        true,
	"end":          true,
	"endcase":      true,
	"endgenerate":  true,
	"endspecify":   true,
	"endfunction":  true,
	"endtask":      true,
	"endclass":     true,
	"endgroup":     true,
	"endproperty":  true,
	"endsequence":  true,
	"endclocking":  true,
	"endchecker":   true,
	"endinterface": true,
}

type parser struct {
	toks []token
	pos  int
}

func newNode(k syntax.Kind, typ string, start, end int) *syntax.Node {
	return &syntax.Node{Kind: k, Type: typ, Span: syntax.Span{Start: start, End: end}}
}

func leaf(k syntax.Kind, typ string, t token) *syntax.Node {
	return newNode(k, typ, t.start, t.end())
}

func add(parent *syntax.Node, children ...*syntax.Node) {
	for _, c := range children {
		if c != nil {
			parent.Children = append(parent.Children, c)
		}
	}
}

// parse builds the tree of a preprocessed token stream. `define tokens may
// appear anywhere; they are attached to the enclosing module, or to the
// root, in source order.
func parse(src []byte, toks []token) (*syntax.Node, error) {
	var code, defs []token
	for _, t := range toks {
		if t.typ == tokDefine {
			defs = append(defs, t)
		} else {
			code = append(code, t)
		}
	}

	p := &parser{toks: code}
	root := newNode(syntax.KindSourceFile, "source_file", 0, len(src))
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		if !t.keyword("module") && !t.keyword("macromodule") {
			p.pos++
			continue
		}
		if p.pos > 0 && p.toks[p.pos-1].keyword("extern") {
			p.skipPast(";")
			continue
		}
		m, err := p.module()
		if err != nil {
			return nil, err
		}
		add(root, m)
	}

	modules := root.Children
	for _, d := range defs {
		n := defineNode(d)
		if n == nil {
			continue
		}
		parent := root
		for _, m := range modules {
			if m.Span.Contains(n.Span) {
				parent = m
				break
			}
		}
		add(parent, n)
	}
	sortChildren(root)
	for _, m := range modules {
		sortChildren(m)
	}
	return root, nil
}

func sortChildren(n *syntax.Node) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		return n.Children[i].Span.Start < n.Children[j].Span.Start
	})
}

func defineNode(t token) *syntax.Node {
	parts, ok := splitDefine(t)
	if !ok {
		return nil
	}
	n := leaf(syntax.KindMacroDefinition, "text_macro_definition", t)
	name := newNode(syntax.KindMacroName, "text_macro_name", t.start+parts.nameStart, t.start+parts.nameEnd)
	add(name, newNode(syntax.KindIdentifier, "simple_identifier", name.Span.Start, name.Span.End))
	add(n, name)
	if parts.textEnd > parts.textStart {
		add(n, newNode(syntax.KindMacroText, "macro_text", t.start+parts.textStart, t.start+parts.textEnd))
	}
	return n
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) prev() token {
	if p.pos == 0 {
		return token{}
	}
	return p.toks[p.pos-1]
}

// skipLabel advances past a block label such as `: gen_loop`.
func (p *parser) skipLabel() {
	if t, ok := p.peek(); ok && t.is(":") && p.pos+1 < len(p.toks) && p.toks[p.pos+1].isIdent() {
		p.pos += 2
	}
}

// skipPast advances beyond the next top-level occurrence of punct.
func (p *parser) skipPast(punct string) {
	depth := 0
	for ; p.pos < len(p.toks); p.pos++ {
		t := p.toks[p.pos]
		switch {
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
		case depth <= 0 && t.is(punct):
			p.pos++
			return
		}
	}
}

// matching returns the index of the bracket closing the one at i, or -1.
func matching(toks []token, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		t := toks[j]
		switch {
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func (p *parser) module() (*syntax.Node, error) {
	kw := p.toks[p.pos]
	p.pos++
	mod := newNode(syntax.KindModuleDeclaration, "module_declaration", kw.start, kw.end())

	if t, ok := p.peek(); ok && (t.keyword("static") || t.keyword("automatic")) {
		p.pos++
	}
	id, ok := p.peek()
	if !ok || !id.isIdent() {
		return nil, fmt.Errorf("offset %d: %w", kw.start, errModuleName)
	}
	p.pos++
	mid := leaf(syntax.KindModuleIdentifier, "module_identifier", id)
	add(mid, leaf(syntax.KindIdentifier, "simple_identifier", id))
	add(mod, mid)

	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("module %s: %w", id.val, errNoEndmodule)
		}
		switch {
		case t.keyword("import"):
			p.skipPast(";")
			continue
		case t.is("#"):
			p.pos++
			if t, ok := p.peek(); ok && t.is("(") {
				end := matching(p.toks, p.pos)
				if end < 0 {
					return nil, fmt.Errorf("module %s: parameter list: %w", id.val, errUnclosedList)
				}
				p.pos = end + 1
			}
			continue
		case t.is("("):
			end := matching(p.toks, p.pos)
			if end < 0 {
				return nil, fmt.Errorf("module %s: %w", id.val, errUnclosedList)
			}
			add(mod, ansiPorts(p.toks[p.pos+1:end])...)
			p.pos = end + 1
			continue
		}
		break
	}
	p.skipPast(";")

	if err := p.body(mod); err != nil {
		return nil, fmt.Errorf("module %s: %w", id.val, err)
	}
	return mod, nil
}

// body scans module items up to endmodule, collecting non-ANSI port
// declarations.
func (p *parser) body(mod *syntax.Node) error {
	stmtStart := true
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch {
		case t.keyword("endmodule"):
			mod.Span.End = t.end()
			p.pos++
			return nil
		case stmtStart && (t.keyword("import") || t.keyword("export") || t.keyword("extern")):
			p.skipPast(";")
			stmtStart = true
			continue
		case stmtStart && t.typ == tokIdent && directions[t.val] != syntax.KindUnknown:
			add(mod, p.portDeclaration())
			stmtStart = true
			continue
		case t.typ == tokIdent && blockEnds[t.val] != "" && !p.prev().keyword("typedef"):
			p.skipBlock(t.val, blockEnds[t.val])
			stmtStart = true
			continue
		case stmtStart && t.typ == tokTick:
			// A macro used as a whole item, such as `ASSERT(x) without a semicolon.
			p.pos++
			if next, ok := p.peek(); ok && next.is("(") {
				if end := matching(p.toks, p.pos); end >= 0 {
					p.pos = end + 1
				}
			}
			continue
		case t.typ == tokIdent && itemBoundaries[t.val]:
			p.pos++
			p.skipLabel()
			stmtStart = true
			continue
		}
		stmtStart = t.is(";")
		p.pos++
	}
	return errNoEndmodule
}

func (p *parser) skipBlock(open, close string) {
	depth := 0
	for ; p.pos < len(p.toks); p.pos++ {
		t := p.toks[p.pos]
		switch {
		case t.keyword(open):
			depth++
		case t.keyword(close):
			depth--
			if depth == 0 {
				p.pos++
				return
			}
		}
	}
}

// portDeclaration parses `input [7:0] a, b;` starting at the direction.
func (p *parser) portDeclaration() *syntax.Node {
	start := p.pos
	p.skipPast(";")
	toks := p.toks[start:p.pos]
	if n := len(toks); n > 0 && toks[n-1].is(";") {
		toks = toks[:n-1]
	}
	last := p.toks[p.pos-1]
	pd := newNode(syntax.KindPortDeclaration, "port_declaration", toks[0].start, last.end())

	dir := toks[0]
	decl := newNode(directions[dir.val], dir.val+"_declaration", dir.start, toks[len(toks)-1].end())
	add(decl, leaf(syntax.KindUnknown, "keyword", dir))
	i := 1
	if i < len(toks) && toks[i].keyword("var") {
		add(decl, leaf(syntax.KindUnknown, "keyword", toks[i]))
		i++
	}
	typ, i := dataType(toks, i, true)
	add(decl, typ)

	rest := toks[i:]
	if len(rest) > 0 {
		list := newNode(syntax.KindListOfPortIdentifiers, "list_of_port_identifiers", rest[0].start, rest[len(rest)-1].end())
		for _, item := range splitTopLevel(rest) {
			if id := portIdentifier(item); id != nil {
				add(list, id)
				add(list, unpackedDims(item, 1)...)
			}
		}
		add(decl, list)
	}
	add(pd, decl)
	return pd
}

// portIdentifier parses `name {unpacked}` and ignores a trailing default.
func portIdentifier(toks []token) *syntax.Node {
	if len(toks) == 0 || !toks[0].isIdent() {
		return nil
	}
	id := leaf(syntax.KindPortIdentifier, "port_identifier", toks[0])
	add(id, leaf(syntax.KindIdentifier, "simple_identifier", toks[0]))
	return id
}

func unpackedDims(toks []token, i int) []*syntax.Node {
	var dims []*syntax.Node
	for i < len(toks) && toks[i].is("[") {
		end := matching(toks, i)
		if end < 0 {
			break
		}
		d := newNode(syntax.KindUnpackedDimension, "unpacked_dimension", toks[i].start, toks[end].end())
		add(d, tokenNodes(toks[i:end+1])...)
		dims = append(dims, d)
		i = end + 1
	}
	return dims
}

// splitTopLevel splits toks on commas outside brackets.
func splitTopLevel(toks []token) [][]token {
	var (
		items [][]token
		depth int
		start int
	)
	for i, t := range toks {
		switch {
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
		case depth == 0 && t.is(","):
			items = append(items, toks[start:i])
			start = i + 1
		}
	}
	return append(items, toks[start:])
}

// ansiPorts parses the header port list. A list of bare names (the
// non-ANSI style) yields no nodes: those ports are declared in the body.
func ansiPorts(toks []token) []*syntax.Node {
	items := splitTopLevel(toks)
	ansi := false
	for _, it := range items {
		if len(it) > 1 && !it[0].is(".") && !it[0].is("{") {
			ansi = true
			break
		}
	}
	if !ansi {
		return nil
	}
	var out []*syntax.Node
	for _, it := range items {
		if n := ansiPort(it); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func ansiPort(toks []token) *syntax.Node {
	if len(toks) == 0 || toks[0].is(".") {
		return nil
	}
	n := newNode(syntax.KindAnsiPortDeclaration, "ansi_port_declaration", toks[0].start, toks[len(toks)-1].end())
	i := 0
	explicit := false
	if _, ok := directions[toks[0].val]; ok && toks[0].typ == tokIdent {
		add(n, leaf(syntax.KindPortDirection, "port_direction", toks[0]))
		i++
		explicit = true
	}
	parent := n
	if i < len(toks) && toks[i].keyword("var") {
		vh := newNode(syntax.KindVariablePortHeader, "variable_port_header", toks[0].start, toks[i].end())
		add(n, vh)
		parent = vh
		i++
		explicit = true
	}
	typ, next := dataType(toks, i, explicit)
	if typ != nil {
		add(parent, typ)
		if parent != n {
			parent.Span.End = max(parent.Span.End, typ.Span.End)
		}
	}
	i = next
	if i >= len(toks) {
		return nil
	}
	id := portIdentifier(toks[i:])
	if id == nil {
		return nil
	}
	add(n, id)
	add(n, unpackedDims(toks, i+1)...)
	return n
}

// dataType parses an optional net type, data type and packed dimensions
// starting at i. Without an explicit type keyword the result is an implicit
// type when implicit is set or anything implicit-looking (net type,
// signing, dimensions) was present; otherwise nil.
func dataType(toks []token, i int, implicit bool) (*syntax.Node, int) {
	if i < len(toks) && toks[i].typ == tokIdent && netTypes[toks[i].val] {
		implicit = true
		i++
	}
	startPos := len(toks)
	if i < len(toks) {
		startPos = i
	}

	var n *syntax.Node
	switch {
	case i < len(toks) && toks[i].typ == tokIdent && dataTypes[toks[i].val]:
		n = leaf(syntax.KindDataType, "data_type", toks[i])
		add(n, leaf(syntax.KindTypeKeyword, "type_keyword", toks[i]))
		i++
	case isUserType(toks, i):
		end := userTypeEnd(toks, i)
		n = newNode(syntax.KindDataType, "data_type", toks[i].start, toks[end-1].end())
		add(n, tokenNodes(toks[i:end])...)
		i = end
	default:
		n = newNode(syntax.KindImplicitDataType, "implicit_data_type", 0, 0)
		if startPos < len(toks) {
			n.Span = syntax.Span{Start: toks[startPos].start, End: toks[startPos].start}
		}
	}

	if i < len(toks) && (toks[i].keyword("signed") || toks[i].keyword("unsigned")) {
		add(n, leaf(syntax.KindUnknown, "signing", toks[i]))
		n.Span.End = toks[i].end()
		implicit = true
		i++
	}
	for i < len(toks) && toks[i].is("[") {
		end := matching(toks, i)
		if end < 0 {
			break
		}
		r := newNode(syntax.KindPackedDimensionRange, "packed_dimension", toks[i].start, toks[end].end())
		add(r, tokenNodes(toks[i:end+1])...)
		add(n, r)
		n.Span.End = toks[end].end()
		implicit = true
		i = end + 1
	}
	if n.Kind == syntax.KindImplicitDataType && !implicit {
		return nil, i
	}
	return n, i
}

// isUserType reports whether the identifier at i names a type rather than
// the port: it is followed by a scope, parameters, an interface modport, or
// (after optional dimensions) another identifier.
func isUserType(toks []token, i int) bool {
	if i >= len(toks) {
		return false
	}
	if toks[i].keyword("interface") {
		return true
	}
	if !toks[i].isIdent() || i+1 >= len(toks) {
		return false
	}
	next := toks[i+1]
	if next.is("::") || next.is("#") {
		return true
	}
	if next.is(".") && i+3 < len(toks) && toks[i+2].isIdent() && toks[i+3].isIdent() {
		return true
	}
	j := i + 1
	for j < len(toks) && toks[j].is("[") {
		end := matching(toks, j)
		if end < 0 {
			return false
		}
		j = end + 1
	}
	return j < len(toks) && toks[j].isIdent()
}

func userTypeEnd(toks []token, i int) int {
	i++
	for i+1 < len(toks) {
		switch {
		case toks[i].is("::") || toks[i].is("."):
			i += 2
		case toks[i].is("#") && toks[i+1].is("("):
			end := matching(toks, i+1)
			if end < 0 {
				return len(toks)
			}
			i = end + 1
		default:
			return i
		}
	}
	return i
}

// tokenNodes turns expression tokens into leaves. A macro usage becomes a
// macro_usage node whose identifier child excludes the back-tick.
func tokenNodes(toks []token) []*syntax.Node {
	out := make([]*syntax.Node, 0, len(toks))
	for _, t := range toks {
		switch t.typ {
		case tokIdent, tokEscaped, tokSystem:
			out = append(out, leaf(syntax.KindIdentifier, "simple_identifier", t))
		case tokNumber, tokBased:
			out = append(out, leaf(syntax.KindNumber, "number", t))
		case tokPunct:
			out = append(out, leaf(syntax.KindSymbol, "symbol", t))
		case tokTick:
			u := leaf(syntax.KindMacroUsage, "text_macro_usage", t)
			add(u, newNode(syntax.KindIdentifier, "simple_identifier", t.start+1, t.end()))
			out = append(out, u)
		default:
			out = append(out, leaf(syntax.KindUnknown, "token", t))
		}
	}
	return out
}
