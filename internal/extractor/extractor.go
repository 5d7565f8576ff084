// Package extractor walks a syntax tree and builds the symbol table of one
// file: its macro defines and its modules with their ports.
package extractor

import (
	"log/slog"
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/eval"
	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// Version identifies the extraction rules. Cached results from another
// version are discarded.
const Version = "2"

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for debug/trace output.
func WithLogger(l *slog.Logger) Option {
	return func(x *Extractor) { x.log = logging.Component(l, "extractor") }
}

// WithEvaluator replaces the default evaluator, e.g. to add builtins.
func WithEvaluator(e *eval.Evaluator) Option {
	return func(x *Extractor) { x.eval = e }
}

// Extractor is stateless between files and safe for concurrent use.
type Extractor struct {
	eval *eval.Evaluator
	log  logging.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, opt := range opts {
		opt(x)
	}
	if x.eval == nil {
		x.eval = eval.New()
	}
	return x
}

// fileState carries the order-dependent accumulators of one file's walk.
type fileState struct {
	x      *Extractor
	tree   *syntax.Tree
	table  *symtab.Table
	macros *MacroTable

	// lastDir is the most recent explicit per-item direction in the
	// current module.
	lastDir string
}

// A handler processes one recognized node and reports whether the walk
// should descend into its children.
type handler func(s *fileState, n *syntax.Node) bool

var handlers = map[syntax.Kind]handler{
	syntax.KindMacroDefinition:     (*fileState).macroDefinition,
	syntax.KindModuleDeclaration:   (*fileState).moduleDeclaration,
	syntax.KindPortDeclaration:     (*fileState).groupedPorts,
	syntax.KindInputDeclaration:    (*fileState).groupedPorts,
	syntax.KindOutputDeclaration:   (*fileState).groupedPorts,
	syntax.KindInoutDeclaration:    (*fileState).groupedPorts,
	syntax.KindAnsiPortDeclaration: (*fileState).ansiPort,
}

// Extract walks t once in source order and returns the file's table.
// Predefined macros seed the evaluation scope but are not emitted as
// defines.
func (x *Extractor) Extract(t *syntax.Tree) *symtab.Table {
	s := &fileState{
		x:      x,
		tree:   t,
		table:  symtab.New(),
		macros: NewMacroTable(x.eval),
	}
	for _, m := range t.Predefined {
		s.macros.Add(m.Name, m.Value)
	}
	t.Root.Walk(func(n *syntax.Node) bool {
		if h, ok := handlers[n.Kind]; ok {
			return h(s, n)
		}
		return true
	})
	x.log.Debug("extracted file",
		slog.String("file", t.Path),
		slog.Int("defines", len(s.table.Defines)),
		slog.Int("modules", len(s.table.Modules)),
		slog.Int("ports", s.table.PortCount()))
	return s.table
}

func (s *fileState) macroDefinition(n *syntax.Node) bool {
	name := s.tree.Text(n.Find(syntax.KindMacroName))
	if name == "" {
		return false
	}
	value := macroValue(s.tree.Text(n.Find(syntax.KindMacroText)))
	s.table.AddDefine(symtab.Define{Name: name, Value: value, File: s.tree.Path})
	s.macros.Add(name, value)
	s.x.log.Trace("define", slog.String("name", name), slog.String("value", value))
	return false
}

func (s *fileState) moduleDeclaration(n *syntax.Node) bool {
	id := n.Find(syntax.KindModuleIdentifier)
	if id == nil {
		id = n.Find(syntax.KindIdentifier)
	}
	name := plainName(s.tree.Text(id))
	s.table.AddModule(name, s.tree.Path)
	s.lastDir = ""
	s.x.log.Trace("module", slog.String("name", name))
	return true
}

// groupedPorts handles `input [7:0] a, b;`: direction, type and width are
// resolved once and shared by every identifier in the list.
func (s *fileState) groupedPorts(n *syntax.Node) bool {
	decl := n.Find(syntax.KindInputDeclaration, syntax.KindOutputDeclaration, syntax.KindInoutDeclaration)
	if decl == nil {
		s.x.log.Debug("port declaration without direction", slog.String("file", s.tree.Path), slog.Int("offset", n.Span.Start))
		return false
	}
	dir := groupedDirection(decl.Kind)
	typ := s.portType(decl)
	width, expr := ResolveWidth(s.tree, decl, s.macros)

	list := decl.Find(syntax.KindListOfPortIdentifiers)
	if list == nil {
		return false
	}
	for _, pid := range list.FindAll(syntax.KindPortIdentifier) {
		s.addPort(symtab.Port{
			Name:       s.identifier(pid),
			Direction:  dir,
			Type:       typ,
			Width:      width,
			Expression: expr,
		})
	}
	return false
}

func (s *fileState) ansiPort(n *syntax.Node) bool {
	pid := n.Find(syntax.KindPortIdentifier)
	if pid == nil {
		return false
	}
	if d := n.Find(syntax.KindPortDirection); d != nil {
		s.lastDir = strings.TrimSpace(s.tree.Text(d))
	}
	dir := s.lastDir
	if dir == "" {
		dir = symtab.DirInout
	}

	typ := symtab.TypeWire
	if n.Find(syntax.KindVariablePortHeader) == nil {
		typ = s.portType(n)
	}
	width, expr := ResolveWidth(s.tree, n, s.macros)
	s.addPort(symtab.Port{
		Name:       s.identifier(pid),
		Direction:  dir,
		Type:       typ,
		Width:      width,
		Expression: expr,
	})
	return false
}

// portType is the explicit type keyword, "wire" for an implicit type, or
// "unknown".
func (s *fileState) portType(n *syntax.Node) string {
	dt := n.Find(syntax.KindDataType, syntax.KindImplicitDataType)
	switch {
	case dt == nil:
		return symtab.TypeUnknown
	case dt.Kind == syntax.KindImplicitDataType:
		return symtab.TypeWire
	}
	if kw := dt.Find(syntax.KindTypeKeyword); kw != nil {
		return strings.TrimSpace(s.tree.Text(kw))
	}
	return symtab.TypeUnknown
}

func (s *fileState) identifier(pid *syntax.Node) string {
	if id := pid.Find(syntax.KindIdentifier); id != nil {
		return plainName(s.tree.Text(id))
	}
	return plainName(s.tree.Text(pid))
}

// plainName drops the backslash and terminating space of an escaped
// identifier: `\bus[0] ` names bus[0].
func plainName(text string) string {
	return strings.TrimPrefix(strings.TrimSpace(text), `\`)
}

func (s *fileState) addPort(p symtab.Port) {
	if !s.table.AddPort(p) {
		s.x.log.Debug("port outside any module dropped",
			slog.String("file", s.tree.Path), slog.String("port", p.Name))
		return
	}
	s.x.log.Trace("port",
		slog.String("name", p.Name),
		slog.String("direction", p.Direction),
		slog.String("width", p.Width.String()))
}

func groupedDirection(k syntax.Kind) string {
	switch k {
	case syntax.KindInputDeclaration:
		return symtab.DirInput
	case syntax.KindOutputDeclaration:
		return symtab.DirOutput
	}
	return symtab.DirInout
}
