package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(""))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeSV(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestGenerateBothLayouts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	writeSV(t, src, "top.sv", "module top(input clk, output [7:0] q);\nendmodule\nmodule leaf(inout pad);\nendmodule\n")
	writeSV(t, src, "notes.txt", "module ignored(input a);\nendmodule\n")
	out := filepath.Join(dir, "out")

	stdout, _, err := execute(t, "-i", src, "-o", out, "--layout", "both")
	require.NoError(t, err)
	require.Contains(t, stdout, "Generated 4 file(s) for 2 module(s)")

	top := readFile(t, filepath.Join(out, "top.scala"))
	require.Contains(t, top, "val q = Output(UInt(8.W))")
	require.FileExists(t, filepath.Join(out, "split", "top.scala"))
	require.Contains(t, readFile(t, filepath.Join(out, "leaf.scala")), "Analog(1.W)")
	require.NoFileExists(t, filepath.Join(out, "ignored.scala"))
}

func TestGenerateDefinesFromFlags(t *testing.T) {
	dir := t.TempDir()
	in := writeSV(t, dir, "m.sv", "module m(input [`W-1:0] a);\nendmodule\n")
	out := filepath.Join(dir, "out")

	_, _, err := execute(t, "-i", in, "-o", out, "-D", "W=16", "--split")
	require.NoError(t, err)
	got := readFile(t, filepath.Join(out, "split", "m.scala"))
	require.Contains(t, got, "val a = Input(UInt(16.W))")
	require.NoFileExists(t, filepath.Join(out, "m.scala"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeSV(t, dir, "m.sv", "`define DW 32\nmodule m(input [`DW-1:0] d, output [`AW-1:0] a);\nendmodule\n")
	snap := filepath.Join(dir, "snap.yaml")
	direct := filepath.Join(dir, "direct")
	reloaded := filepath.Join(dir, "reloaded")

	stdout, _, err := execute(t, "-i", in, "-o", direct, "--snapshot", snap)
	require.NoError(t, err)
	require.Contains(t, stdout, "Saved snapshot")
	require.Contains(t, stdout, "1 port(s) kept a symbolic width")

	_, _, err = execute(t, "--from-snapshot", snap, "-o", reloaded)
	require.NoError(t, err)
	require.Equal(t, readFile(t, filepath.Join(direct, "m.scala")), readFile(t, filepath.Join(reloaded, "m.scala")))
}

func TestFromSnapshotRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	snap := writeSV(t, dir, "bad.json", `{"defines":[],"modules":[{"name":"m","ports":[{"name":"a","direction":"sideways","type":"wire","width":1}]}]}`)

	_, _, err := execute(t, "--from-snapshot", snap, "-o", filepath.Join(dir, "out"))
	require.Error(t, err)
	require.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestGenerateReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeSV(t, dir, "good.sv", "module good(input a);\nendmodule\n")
	writeSV(t, dir, "bad.sv", "`ifdef X\nmodule bad(input a);\nendmodule\n")
	out := filepath.Join(dir, "out")

	_, stderr, err := execute(t, "-i", dir, "-o", out)
	require.ErrorIs(t, err, errReported)
	require.Contains(t, stderr, "bad.sv")
	require.FileExists(t, filepath.Join(out, "good.scala"))
}

func TestGenerateOutputIsFile(t *testing.T) {
	dir := t.TempDir()
	in := writeSV(t, dir, "m.sv", "module m(input a);\nendmodule\n")
	out := writeSV(t, dir, "out", "")

	_, _, err := execute(t, "-i", in, "-o", out)
	require.Error(t, err)
	require.NotErrorIs(t, err, errReported)
}

func TestLintCommand(t *testing.T) {
	dir := t.TempDir()
	writeSV(t, dir, "a.sv", "module dup(input a);\nendmodule\n")
	writeSV(t, dir, "b.sv", "module dup(input [`W-1:0] b);\nendmodule\n")

	stdout, _, err := execute(t, "lint", dir)
	require.ErrorIs(t, err, errReported)
	require.Contains(t, stdout, "[duplicate_module]")
	require.Contains(t, stdout, "[unresolved_width]")
}

func TestLintCommandClean(t *testing.T) {
	dir := t.TempDir()
	writeSV(t, dir, "a.sv", "module counter(input wire clk, output logic [3:0] q);\nendmodule\n")

	stdout, _, err := execute(t, "lint", "--format", "json", dir)
	require.NoError(t, err)
	require.Contains(t, stdout, `"total_violations": 0`)
}

func TestInitKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(""), &out, path, false))
	require.Contains(t, out.String(), "Created")
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.ParserBuiltin, cfg.Parser)

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	out.Reset()
	require.NoError(t, runInit(strings.NewReader("n\n"), &out, path, false))
	require.Contains(t, out.String(), "Aborted.")
	require.Equal(t, "{}", readFile(t, path))

	require.NoError(t, runInit(strings.NewReader(""), &out, path, true))
	require.NotEqual(t, "{}", readFile(t, path))
}
