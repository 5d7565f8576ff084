// Package svparse is the built-in syntax tree provider: a tolerant parser
// for the interface-level subset of SystemVerilog (module headers, port
// declarations and text macros).
//
// Module bodies are scanned only for non-ANSI port declarations. Functions,
// tasks and classes are skipped whole.
package svparse

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// Name is the backend name used in config and cache keys.
const Name = "builtin"

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger for debug/trace output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = logging.Component(l, "svparse") }
}

// Provider implements syntax.Provider. It holds no per-file state.
type Provider struct {
	log logging.Logger
}

var _ syntax.Provider = (*Provider)(nil)

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return Name }

// Parse reads and parses path.
func (p *Provider) Parse(ctx context.Context, path string, defines map[string]string, includes []string) (*syntax.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: err}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: err}
	}
	return p.ParseSource(path, src, defines, includes)
}

// ParseSource parses src as if read from path. `include directives are
// resolved relative to path and then includes.
func (p *Provider) ParseSource(path string, src []byte, defines map[string]string, includes []string) (*syntax.Tree, error) {
	toks, err := lex(path, src)
	if err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: err}
	}
	pp := newPreprocessor(defines, includes, p.log)
	toks, err = pp.run(path, src, toks, true, 0)
	if err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: err}
	}
	root, err := parse(src, toks)
	if err != nil {
		return nil, &syntax.ParseError{Path: path, Cause: err}
	}

	tree := &syntax.Tree{Path: path, Source: src, Root: root}
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tree.Predefined = append(tree.Predefined, syntax.Macro{Name: name, Value: defines[name]})
	}
	tree.Predefined = append(tree.Predefined, pp.harvest...)

	p.log.Trace("parsed",
		slog.String("file", path),
		slog.Int("tokens", len(toks)),
		slog.Int("predefined", len(tree.Predefined)))
	return tree, nil
}
