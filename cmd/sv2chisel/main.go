// Command sv2chisel turns SystemVerilog module interfaces into Chisel
// BlackBox declarations.
//
// The pipeline:
//  1. A syntax tree provider parses each file (builtin or tree-sitter)
//  2. The extractor records defines and module ports, evaluating widths
//  3. The indexer merges per-file tables in input order
//  4. Optionally the table is saved as a CUE-validated snapshot and linted
//     with the rego rules
//  5. The generator writes one <module>.scala per module and layout
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
