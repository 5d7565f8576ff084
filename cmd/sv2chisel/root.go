package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv2chisel/internal/chisel"
	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
	"github.com/robert-at-pretension-io/sv2chisel/internal/indexer"
	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/policy"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
	"github.com/robert-at-pretension-io/sv2chisel/internal/validator"
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("failed")

// globalOptions are shared by every command.
type globalOptions struct {
	configPath string
	parser     string
	defines    []string
	includes   []string
	jobs       int
	failFast   bool
	verbose    bool
	trace      bool
}

type rootOptions struct {
	globalOptions
	input        string
	output       string
	layout       string
	split        bool
	snapshot     string
	fromSnapshot string
	lint         bool
	policyDir    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "sv2chisel",
		Short: "Generate Chisel BlackBox stubs from SystemVerilog modules",
		Long: `sv2chisel extracts module interfaces (ports, directions, widths) from
SystemVerilog sources and writes one Chisel BlackBox per module.

Configuration is read from (first found):
  1. ./sv2chisel.json
  2. ./.sv2chisel.json
  3. <input>/sv2chisel.json
  4. ~/.config/sv2chisel/config.json

Run 'sv2chisel init' to create a default configuration file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, &opts, stdout, stderr)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default: search order above)")
	pf.StringVar(&opts.parser, "parser", "", "syntax tree provider: builtin or tree-sitter")
	pf.StringArrayVarP(&opts.defines, "define", "D", nil, "predefine a macro, NAME or NAME=VALUE (repeatable)")
	pf.StringArrayVarP(&opts.includes, "include", "I", nil, "include search directory (repeatable)")
	pf.IntVarP(&opts.jobs, "jobs", "j", 0, "files processed concurrently (0 = number of CPUs)")
	pf.BoolVar(&opts.failFast, "fail-fast", false, "stop at the first parse error")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&opts.trace, "trace", false, "trace logging on stderr")
	_ = pf.MarkHidden("trace")

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "SystemVerilog file or directory (default: config sources)")
	f.StringVarP(&opts.output, "output", "o", "", "output directory (default: config output.dir)")
	f.StringVar(&opts.layout, "layout", "", "bundle layout: inline, split or both")
	f.BoolVar(&opts.split, "split", false, "shorthand for --layout split")
	f.StringVar(&opts.snapshot, "snapshot", "", "write the extracted table to this .json or .yaml file")
	f.StringVar(&opts.fromSnapshot, "from-snapshot", "", "generate from a saved snapshot instead of parsing")
	f.BoolVar(&opts.lint, "lint", false, "run the lint rules and print violations")
	f.StringVar(&opts.policyDir, "policy-dir", "", "directory of extra .rego lint rules")

	cmd.AddCommand(newInitCmd(stdout), newLintCmd(&opts.globalOptions, stdout, stderr))
	return cmd
}

func (o *globalOptions) logger(stderr io.Writer) *slog.Logger {
	return logging.New(stderr, o.verbose, o.trace)
}

// loadConfig reads the explicit config file, or searches from root. A
// broken file found by searching falls back to defaults with a warning.
func (o *globalOptions) loadConfig(root string, stderr io.Writer) (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: Could not load config: %v (using defaults)\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// apply overrides cfg with the flags set on cmd.
func (o *globalOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("parser") {
		cfg.Parser = o.parser
	}
	if len(o.defines) > 0 {
		defines := make(map[string]string, len(cfg.Defines)+len(o.defines))
		for k, v := range cfg.Defines {
			defines[k] = v
		}
		for _, d := range o.defines {
			name, value, _ := strings.Cut(d, "=")
			if name == "" {
				return fmt.Errorf("invalid define %q", d)
			}
			defines[name] = value
		}
		cfg.Defines = defines
	}
	if len(o.includes) > 0 {
		cfg.IncludePaths = append(append([]string{}, cfg.IncludePaths...), o.includes...)
	}
	if flags.Changed("jobs") {
		cfg.Analysis.MaxParallelFiles = o.jobs
	}
	if flags.Changed("fail-fast") {
		cfg.Analysis.FailFast = o.failFast
	}
	return nil
}

// extract runs the indexer over files and reports parse failures on
// stderr.
func extract(cmd *cobra.Command, cfg *config.Config, root string, files []string, log *slog.Logger, stderr io.Writer) (*indexer.Indexer, *indexer.Result, error) {
	provider, err := indexer.NewProvider(cfg.Parser, log)
	if err != nil {
		return nil, nil, err
	}
	idx := indexer.New(cfg, root, provider, indexer.WithLogger(log))
	res, err := idx.Run(cmd.Context(), files)
	if err != nil {
		return nil, nil, err
	}
	for _, pe := range res.ParseErrors {
		fmt.Fprintf(stderr, "Error: %v\n", pe)
	}
	return idx, res, nil
}

// inputFiles resolves the files to process and the directory used as the
// config and cache root.
func inputFiles(cfg *config.Config, input string) (files []string, root string, err error) {
	if input == "" {
		files, err = cfg.ResolveSources(".")
		return files, ".", err
	}
	files, err = cfg.CollectInputs(input)
	if err != nil {
		return nil, "", err
	}
	root = input
	if info, statErr := os.Stat(input); statErr == nil && !info.IsDir() {
		root = filepath.Dir(input)
	}
	return files, root, nil
}

func runGenerate(cmd *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) error {
	log := opts.logger(stderr)

	configRoot := opts.input
	if configRoot == "" {
		configRoot = "."
	}
	cfg, err := opts.loadConfig(configRoot, stderr)
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}

	layoutName := cfg.Output.Layout
	if opts.layout != "" {
		layoutName = opts.layout
	}
	if opts.split {
		layoutName = "split"
	}
	layouts, err := chisel.ParseLayouts(layoutName)
	if err != nil {
		return err
	}

	var snapshots *validator.Validator
	if cfg.ValidateSnapshots() {
		if snapshots, err = validator.New(); err != nil {
			return err
		}
	}

	failed := false
	var tbl *symtab.Table
	var idx *indexer.Indexer
	if opts.fromSnapshot != "" {
		if opts.input != "" {
			return errors.New("--input and --from-snapshot are mutually exclusive")
		}
		tbl, err = symtab.Load(opts.fromSnapshot)
		if err != nil {
			return err
		}
		if snapshots != nil {
			if err := snapshots.ValidateSnapshot(tbl); err != nil {
				return fmt.Errorf("snapshot %s: %w", opts.fromSnapshot, err)
			}
		}
		provider, err := indexer.NewProvider(cfg.Parser, log)
		if err != nil {
			return err
		}
		idx = indexer.New(cfg, configRoot, provider, indexer.WithLogger(log))
	} else {
		files, root, err := inputFiles(cfg, opts.input)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("no SystemVerilog files found")
		}
		var res *indexer.Result
		idx, res, err = extract(cmd, cfg, root, files, log, stderr)
		if err != nil {
			return err
		}
		tbl = res.Table
		failed = len(res.ParseErrors) > 0
		if res.Delta != nil && !res.Delta.Empty() {
			log.Info("changes since previous run",
				slog.Int("added", res.Delta.Added.Len()),
				slog.Int("removed", res.Delta.Removed.Len()))
		}
	}

	snapshotPath := opts.snapshot
	if snapshotPath == "" {
		snapshotPath = cfg.Snapshot.Path
	}
	if snapshotPath != "" {
		if snapshots != nil {
			if err := snapshots.ValidateSnapshot(tbl); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
		}
		if err := symtab.Save(snapshotPath, tbl); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved snapshot %s\n", snapshotPath)
	}

	if opts.lint {
		res, err := lintTable(cmd, idx, opts.policyDir, tbl, log)
		if err != nil {
			return err
		}
		printViolations(stdout, res)
	}

	outDir := cfg.Output.Dir
	if opts.output != "" {
		outDir = opts.output
	}
	gen := chisel.NewGenerator(chisel.Options{
		Package:            cfg.Output.Package,
		AnnotateUnresolved: cfg.Output.AnnotateUnresolved,
	})
	w := chisel.NewWriter(gen, outDir, chisel.WithSplitDir(cfg.Output.SplitDir), chisel.WithWriterLogger(log))
	written, werr := w.Write(tbl, layouts)
	var perModule *chisel.WriteError
	if werr != nil && !errors.As(werr, &perModule) {
		return werr
	}
	if werr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", werr)
		failed = true
	}
	fmt.Fprintf(stdout, "Generated %d file(s) for %d module(s) in %s\n", len(written), len(tbl.Modules), outDir)
	if unresolved := tbl.UnresolvedPorts(); unresolved > 0 {
		fmt.Fprintf(stdout, "%d port(s) kept a symbolic width\n", unresolved)
	}

	if failed {
		return errReported
	}
	return nil
}

func lintTable(cmd *cobra.Command, idx *indexer.Indexer, policyDir string, tbl *symtab.Table, log *slog.Logger) (*policy.Result, error) {
	popts := []policy.Option{policy.WithLogger(log)}
	if policyDir != "" {
		popts = append(popts, policy.WithPolicyDir(policyDir))
	}
	engine, err := policy.New(cmd.Context(), popts...)
	if err != nil {
		return nil, err
	}
	return idx.Lint(cmd.Context(), engine, tbl)
}

func printViolations(w io.Writer, res *policy.Result) {
	for _, v := range res.Violations {
		fmt.Fprintln(w, v.String())
	}
	s := res.Summary
	fmt.Fprintf(w, "\n%d violation(s): %d error(s), %d warning(s), %d info\n", s.TotalViolations, s.Errors, s.Warnings, s.Info)
}
