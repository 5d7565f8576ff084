package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newLintCmd(global *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		policyDir string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "lint <path>",
		Short: "Check module interfaces against the lint rules",
		Long: `lint extracts every module under <path> (a file or a directory, not
descended) and reports interface problems: widths that stayed symbolic,
duplicate module names, names that are reserved in Scala, modules without
ports and ports of unknown type.

Exits with status 1 when any violation has error severity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			log := global.logger(stderr)
			cfg, err := global.loadConfig(args[0], stderr)
			if err != nil {
				return err
			}
			if err := global.apply(cmd, cfg); err != nil {
				return err
			}
			files, root, err := inputFiles(cfg, args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no SystemVerilog files found")
			}

			idx, res, err := extract(cmd, cfg, root, files, log, stderr)
			if err != nil {
				return err
			}
			out, err := lintTable(cmd, idx, policyDir, res.Table, log)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				printViolations(stdout, out)
			}
			if out.HasErrors() || len(res.ParseErrors) > 0 {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policyDir, "policy-dir", "", "directory of extra .rego lint rules")
	cmd.Flags().StringVar(&format, "format", "text", "report format: text or json")
	return cmd
}
