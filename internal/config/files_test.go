package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte("// "+name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestCollectInputsIsShallow(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.sv", "a.v", "defs.svh", "notes.txt", "sub/deep.sv")

	got, err := DefaultConfig().CollectInputs(root)
	if err != nil {
		t.Fatalf("CollectInputs: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.v"),
		filepath.Join(root, "b.sv"),
		filepath.Join(root, "defs.svh"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCollectInputsSingleFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "top.txt")
	path := filepath.Join(root, "top.txt")

	got, err := DefaultConfig().CollectInputs(path)
	if err != nil {
		t.Fatalf("CollectInputs: %v", err)
	}
	if len(got) != 1 || got[0] != path {
		t.Fatalf("expected the file itself, got %v", got)
	}

	if _, err := DefaultConfig().CollectInputs(filepath.Join(root, "missing")); err == nil {
		t.Fatalf("expected error for missing input")
	}
}

func TestCollectInputsHonoursIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "core.sv", "tb_core.sv")

	cfg := DefaultConfig()
	cfg.Lint.IgnorePatterns = []string{"tb_*"}
	got, err := cfg.CollectInputs(root)
	if err != nil {
		t.Fatalf("CollectInputs: %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "core.sv" {
		t.Fatalf("expected only core.sv, got %v", got)
	}
}

func TestResolveSourcesDoubleStar(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "rtl/core.sv", "rtl/deep/alu.v", "rtl/deep/readme.md", "sim/tb.sv")

	cfg := DefaultConfig()
	cfg.Sources.Files = []string{"rtl/**/*.sv", "rtl/**/*.v", "sim/*.sv"}
	cfg.Sources.Exclude = []string{"sim/*.sv"}

	got, err := cfg.ResolveSources(root)
	if err != nil {
		t.Fatalf("ResolveSources: %v", err)
	}
	want := []string{
		filepath.Join(root, "rtl", "core.sv"),
		filepath.Join(root, "rtl", "deep", "alu.v"),
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
