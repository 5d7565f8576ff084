package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
)

func newInitCmd(stdout io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default " + config.FileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), stdout, config.FileName, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file without asking")
	return cmd
}

func runInit(in io.Reader, out io.Writer, configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", configPath)
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Source globs, defines and include paths")
	fmt.Fprintln(out, "  - Output directory, layout and Scala package")
	fmt.Fprintln(out, "  - Lint rule severities")
	return nil
}
