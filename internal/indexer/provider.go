package indexer

import (
	"fmt"
	"log/slog"

	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
	"github.com/robert-at-pretension-io/sv2chisel/internal/svparse"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
	"github.com/robert-at-pretension-io/sv2chisel/internal/treesitter"
)

// NewProvider returns the syntax tree provider called name.
func NewProvider(name string, l *slog.Logger) (syntax.Provider, error) {
	switch name {
	case "", config.ParserBuiltin:
		return svparse.New(svparse.WithLogger(l)), nil
	case config.ParserTreeSitter:
		return treesitter.New(treesitter.WithLogger(l)), nil
	}
	return nil, fmt.Errorf("unknown parser %q (want %s or %s)", name, config.ParserBuiltin, config.ParserTreeSitter)
}
