package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := `{"defines": {"WIDTH": "8"}, "lint": {"rules": {"empty_module": "off"}}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Parser != ParserBuiltin {
		t.Fatalf("expected default parser, got %q", cfg.Parser)
	}
	if cfg.Output.Layout != "inline" || cfg.Output.SplitDir != "split" {
		t.Fatalf("expected default output, got %+v", cfg.Output)
	}
	if !cfg.ValidateSnapshots() || cfg.CacheEnabled() {
		t.Fatalf("unexpected snapshot/cache defaults")
	}
	if cfg.Defines["WIDTH"] != "8" {
		t.Fatalf("expected define WIDTH=8, got %v", cfg.Defines)
	}
	if cfg.IsRuleEnabled("empty_module") || !cfg.IsRuleEnabled("unresolved_width") {
		t.Fatalf("unexpected rule enablement: %v", cfg.Lint.Rules)
	}
	if got := cfg.GetRuleSeverity("unresolved_width", "warning"); got != "warning" {
		t.Fatalf("expected default severity, got %q", got)
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"parser", `{"parser": "yacc"}`, "unknown parser"},
		{"severity", `{"lint": {"rules": {"unknown_type": "fatal"}}}`, "unknown severity"},
		{"syntax", `{`, "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Parser = ParserTreeSitter
	cfg.IncludePaths = []string{"inc"}
	cfg.Output.Package = "soc.blackbox"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	back, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if back.Parser != ParserTreeSitter || back.Output.Package != "soc.blackbox" || len(back.IncludePaths) != 1 {
		t.Fatalf("round trip lost values: %+v", back)
	}
}

func TestLoadFindsRootConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "."+FileName), []byte(`{"output": {"dir": "out"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Dir != "out" {
		t.Skipf("a config in the working directory or home takes precedence: %+v", cfg.Output)
	}
}

func TestCacheDir(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.CacheDir("/proj"); got != filepath.Join("/proj", ".sv2chisel_cache") {
		t.Fatalf("unexpected cache dir %q", got)
	}
	cfg.Analysis.Cache.Dir = "/var/cache/sv"
	if got := cfg.CacheDir("/proj"); got != "/var/cache/sv" {
		t.Fatalf("unexpected cache dir %q", got)
	}
}
