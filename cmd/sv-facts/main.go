// Command sv-facts prints the relational fact tables (files, defines,
// modules, ports) extracted from SystemVerilog sources, and optionally the
// delta against a previous facts file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
	"github.com/robert-at-pretension-io/sv2chisel/internal/indexer"
	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/validator"
)

type options struct {
	configPath string
	parser     string
	output     string
	deltaFrom  string
	deltaOut   string
	only       []string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "sv-facts [flags] <path>",
		Short:         "Dump SystemVerilog interface facts as JSON tables",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &opts, args[0], stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file")
	f.StringVar(&opts.parser, "parser", "", "syntax tree provider: builtin or tree-sitter")
	f.StringVarP(&opts.output, "output", "o", "", "write facts JSON to file (default: stdout)")
	f.StringVar(&opts.deltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	f.StringVar(&opts.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	f.StringArrayVar(&opts.only, "only", nil, "restrict output to rows of this source file (repeatable)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
	return cmd
}

func run(ctx context.Context, opts *options, path string, stdout, stderr io.Writer) error {
	if (opts.deltaFrom == "") != (opts.deltaOut == "") {
		return errors.New("--delta-from and --delta-out must be used together")
	}
	log := logging.New(stderr, opts.verbose, false)

	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.parser != "" {
		cfg.Parser = opts.parser
	}

	files, err := cfg.CollectInputs(path)
	if err != nil {
		return err
	}
	provider, err := indexer.NewProvider(cfg.Parser, log)
	if err != nil {
		return err
	}
	root := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		root = filepath.Dir(path)
	}
	res, err := indexer.New(cfg, root, provider, indexer.WithLogger(log)).Run(ctx, files)
	if err != nil {
		return err
	}
	for _, pe := range res.ParseErrors {
		fmt.Fprintf(stderr, "Warning: %v\n", pe)
	}

	v, err := validator.NewFactsValidator()
	if err != nil {
		return err
	}
	tables := facts.BuildTables(res.Table)
	if err := v.Validate(tables); err != nil {
		return fmt.Errorf("fact tables: %w", err)
	}

	var only map[string]bool
	if len(opts.only) > 0 {
		only = make(map[string]bool, len(opts.only))
		for _, f := range opts.only {
			only[f] = true
		}
	}
	out := tables
	if only != nil {
		out = facts.FilterTablesByFiles(tables, only)
	}

	if opts.output != "" {
		if err := writeJSON(opts.output, out); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	} else if err := encode(stdout, out); err != nil {
		return fmt.Errorf("encoding facts: %w", err)
	}

	if opts.deltaFrom != "" {
		prev, err := readTables(opts.deltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		delta := facts.ComputeDelta(prev, tables)
		if only != nil {
			delta = facts.FilterDeltaByFiles(delta, only)
		}
		if err := v.ValidateDelta(delta); err != nil {
			return fmt.Errorf("delta: %w", err)
		}
		if err := writeJSON(opts.deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	return nil
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func encode(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return encode(f, data)
}
