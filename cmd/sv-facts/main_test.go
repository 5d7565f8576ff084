package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
)

func runFacts(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFactsToStdout(t *testing.T) {
	dir := t.TempDir()
	src := "`define W 4\nmodule m(input [`W-1:0] a, output b);\nendmodule\n"
	if err := os.WriteFile(filepath.Join(dir, "m.sv"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runFacts(t, dir)
	if err != nil {
		t.Fatalf("sv-facts: %v", err)
	}
	var tables facts.Tables
	if err := json.Unmarshal([]byte(out), &tables); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(tables.Modules) != 1 || tables.Modules[0].Name != "m" {
		t.Fatalf("modules = %+v", tables.Modules)
	}
	if len(tables.Ports) != 2 || tables.Ports[0].Width != "4" || !tables.Ports[0].Resolved {
		t.Fatalf("ports = %+v", tables.Ports)
	}
	if len(tables.Defines) != 1 {
		t.Fatalf("defines = %+v", tables.Defines)
	}
}

func TestFactsDelta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.sv")
	prev := filepath.Join(t.TempDir(), "prev.json")
	delta := filepath.Join(t.TempDir(), "delta.json")

	if err := os.WriteFile(path, []byte("module m(input a);\nendmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runFacts(t, "-o", prev, dir); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if err := os.WriteFile(path, []byte("module m(input a, output b);\nendmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runFacts(t, "--delta-from", prev, "--delta-out", delta, dir); err != nil {
		t.Fatalf("second run: %v", err)
	}

	data, err := os.ReadFile(delta)
	if err != nil {
		t.Fatal(err)
	}
	var d facts.Delta
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if len(d.Added.Ports) != 1 || d.Added.Ports[0].Name != "b" {
		t.Fatalf("added ports = %+v", d.Added.Ports)
	}
	if len(d.Removed.Ports) != 0 {
		t.Fatalf("removed ports = %+v", d.Removed.Ports)
	}
	if len(d.Added.Modules) != 1 || len(d.Removed.Modules) != 1 {
		t.Fatalf("module rows should change with the port count: %+v", d)
	}
}

func TestFactsOnlyFilter(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sv")
	b := filepath.Join(dir, "b.sv")
	if err := os.WriteFile(a, []byte("module a(input x);\nendmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("module b(input y);\nendmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runFacts(t, "--only", b, dir)
	if err != nil {
		t.Fatalf("sv-facts: %v", err)
	}
	var tables facts.Tables
	if err := json.Unmarshal([]byte(out), &tables); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(tables.Modules) != 1 || tables.Modules[0].Name != "b" {
		t.Fatalf("modules = %+v", tables.Modules)
	}
}

func TestFactsDeltaFlagsTogether(t *testing.T) {
	if _, err := runFacts(t, "--delta-from", "x.json", t.TempDir()); err == nil {
		t.Fatal("expected error for --delta-from without --delta-out")
	}
}
