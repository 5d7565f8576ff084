// Package treesitter provides syntax trees from the tree-sitter Verilog
// grammar. Grammar node types are classified into syntax kinds through one
// table; everything else is KindUnknown.
//
// Tree-sitter does not preprocess: both branches of `ifdef blocks appear in
// the tree and `include directives are not followed.
package treesitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/alexaandru/go-sitter-forest/verilog"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// Name is the backend name used in config and cache keys.
const Name = "tree-sitter"

var errSyntax = errors.New("syntax error")

// kinds maps grammar node types, with any numeric variant suffix removed,
// to syntax kinds.
var kinds = map[string]syntax.Kind{
	"source_file":                       syntax.KindSourceFile,
	"text_macro_definition":             syntax.KindMacroDefinition,
	"text_macro_name":                   syntax.KindMacroName,
	"macro_text":                        syntax.KindMacroText,
	"text_macro_usage":                  syntax.KindMacroUsage,
	"module_declaration":                syntax.KindModuleDeclaration,
	"module_identifier":                 syntax.KindModuleIdentifier,
	"port_declaration":                  syntax.KindPortDeclaration,
	"input_declaration":                 syntax.KindInputDeclaration,
	"output_declaration":                syntax.KindOutputDeclaration,
	"inout_declaration":                 syntax.KindInoutDeclaration,
	"list_of_port_identifiers":          syntax.KindListOfPortIdentifiers,
	"list_of_variable_identifiers":      syntax.KindListOfPortIdentifiers,
	"list_of_variable_port_identifiers": syntax.KindListOfPortIdentifiers,
	"ansi_port_declaration":             syntax.KindAnsiPortDeclaration,
	"port_direction":                    syntax.KindPortDirection,
	"variable_port_header":              syntax.KindVariablePortHeader,
	"port_identifier":                   syntax.KindPortIdentifier,
	"data_type":                         syntax.KindDataType,
	"implicit_data_type":                syntax.KindImplicitDataType,
	"integer_vector_type":               syntax.KindTypeKeyword,
	"integer_atom_type":                 syntax.KindTypeKeyword,
	"non_integer_type":                  syntax.KindTypeKeyword,
	"packed_dimension":                  syntax.KindPackedDimensionRange,
	"unpacked_dimension":                syntax.KindUnpackedDimension,
	"simple_identifier":                 syntax.KindIdentifier,
	"escaped_identifier":                syntax.KindIdentifier,
	"system_tf_identifier":              syntax.KindIdentifier,
	"unsigned_number":                   syntax.KindNumber,
	"decimal_number":                    syntax.KindNumber,
	"hex_number":                        syntax.KindNumber,
	"octal_number":                      syntax.KindNumber,
	"binary_number":                     syntax.KindNumber,
}

// Classify returns the kind of a grammar node type. Unnamed operator
// tokens are symbols; unnamed keywords and the macro back-tick are not.
func Classify(typ string, named bool) syntax.Kind {
	if !named {
		if typ == "`" || typ == "" || strings.IndexFunc(typ, isWordRune) >= 0 {
			return syntax.KindUnknown
		}
		return syntax.KindSymbol
	}
	return kinds[strings.TrimRightFunc(typ, unicode.IsDigit)]
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger for debug/trace output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = logging.Component(l, "treesitter") }
}

// Provider implements syntax.Provider with a fresh parser per call, so it
// is safe for concurrent use.
type Provider struct {
	lang *sitter.Language
	log  logging.Logger
}

var _ syntax.Provider = (*Provider)(nil)

// New creates a Provider for the Verilog grammar.
func New(opts ...Option) *Provider {
	p := &Provider{lang: sitter.NewLanguage(verilog.GetLanguage())}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return Name }

// Parse reads and parses path. includes is accepted for interface
// compatibility and ignored.
func (p *Provider) Parse(ctx context.Context, path string, defines map[string]string, includes []string) (*syntax.Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: err}
	}
	return p.ParseSource(ctx, path, src, defines)
}

// ParseSource parses src as if read from path.
func (p *Provider) ParseSource(ctx context.Context, path string, src []byte, defines map[string]string) (*syntax.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: fmt.Errorf("parsing: %w", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		at := firstError(root)
		return nil, &syntax.ParseError{Path: path, Cause: fmt.Errorf("line %d: %w", at.StartPoint().Row+1, errSyntax)}
	}

	out := &syntax.Tree{Path: path, Source: src, Root: convert(root)}
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Predefined = append(out.Predefined, syntax.Macro{Name: name, Value: defines[name]})
	}
	p.log.Trace("parsed", slog.String("file", path), slog.String("root", root.Type()))
	return out, nil
}

// convert copies the tree-sitter tree so it outlives the C tree.
func convert(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{
		Kind: Classify(n.Type(), n.IsNamed()),
		Type: n.Type(),
		Span: syntax.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
	}
	count := int(n.ChildCount())
	if count > 0 {
		out.Children = make([]*syntax.Node, 0, count)
	}
	for i := 0; i < count; i++ {
		if c := n.Child(i); c != nil {
			out.Children = append(out.Children, convert(c))
		}
	}
	reshapePort(out)
	return out
}

// reshapePort gives port headers the shape the extractor reads. The
// grammar wraps every keyword-typed ANSI port in a variable_port_header,
// but only the `var` form is one; and a port with a direction or net type
// but no type node has an implicit type, which the grammar leaves out.
func reshapePort(n *syntax.Node) {
	switch n.Kind {
	case syntax.KindVariablePortHeader:
		if !hasType(n, "var") {
			n.Kind = syntax.KindUnknown
		}
	case syntax.KindAnsiPortDeclaration:
		if n.Find(syntax.KindPortDirection) != nil || hasType(n, "net_type") {
			addImplicitType(n)
		}
	case syntax.KindInputDeclaration, syntax.KindOutputDeclaration, syntax.KindInoutDeclaration:
		addImplicitType(n)
	}
}

// addImplicitType inserts an empty implicit type before the port names
// unless n already has a type.
func addImplicitType(n *syntax.Node) {
	if n.Find(syntax.KindDataType, syntax.KindImplicitDataType, syntax.KindVariablePortHeader) != nil {
		return
	}
	at, pos := n.Span.End, len(n.Children)
	for i, c := range n.Children {
		if c.Kind == syntax.KindPortIdentifier || c.Kind == syntax.KindListOfPortIdentifiers {
			at, pos = c.Span.Start, i
			break
		}
	}
	implicit := &syntax.Node{Kind: syntax.KindImplicitDataType, Type: "implicit_data_type", Span: syntax.Span{Start: at, End: at}}
	n.Children = append(n.Children, nil)
	copy(n.Children[pos+1:], n.Children[pos:])
	n.Children[pos] = implicit
}

func hasType(n *syntax.Node, typ string) bool {
	found := false
	n.Walk(func(x *syntax.Node) bool {
		if x.Type == typ {
			found = true
		}
		return !found
	})
	return found
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.HasError() {
			return firstError(c)
		}
	}
	return n
}
