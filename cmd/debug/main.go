// Command debug dumps the syntax tree a provider builds for one file, and
// optionally the table extracted from it. Use it to see which node kinds a
// construct maps to when a port comes out wrong.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv2chisel/internal/extractor"
	"github.com/robert-at-pretension-io/sv2chisel/internal/indexer"
	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

func main() {
	if err := newCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		parser  string
		defines []string
		include []string
		table   bool
		trace   bool
	)
	cmd := &cobra.Command{
		Use:           "debug [flags] <file>",
		Short:         "Dump the syntax tree of a SystemVerilog file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(stderr, trace, trace)
			provider, err := indexer.NewProvider(parser, log)
			if err != nil {
				return err
			}
			defs := make(map[string]string, len(defines))
			for _, d := range defines {
				name, value, _ := strings.Cut(d, "=")
				defs[name] = value
			}

			tree, err := provider.Parse(cmd.Context(), args[0], defs, include)
			if err != nil {
				return err
			}
			for _, m := range tree.Predefined {
				fmt.Fprintf(stdout, "predefined %s = %q\n", m.Name, m.Value)
			}
			if err := syntax.Dump(stdout, tree); err != nil {
				return err
			}
			if !table {
				return nil
			}

			tbl := extractor.New(extractor.WithLogger(log)).Extract(tree)
			data, err := symtab.Marshal(tbl, symtab.FormatYAML)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "---")
			_, err = stdout.Write(data)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&parser, "parser", "builtin", "syntax tree provider: builtin or tree-sitter")
	f.StringArrayVarP(&defines, "define", "D", nil, "predefine a macro, NAME or NAME=VALUE")
	f.StringArrayVarP(&include, "include", "I", nil, "include search directory")
	f.BoolVar(&table, "table", false, "also print the extracted table as YAML")
	f.BoolVar(&trace, "trace", false, "trace logging on stderr")
	return cmd
}
