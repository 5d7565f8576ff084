// Package config loads sv2chisel.json. Command-line flags override file values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the project configuration file name.
const FileName = "sv2chisel.json"

// Parser backends.
const (
	ParserBuiltin    = "builtin"
	ParserTreeSitter = "tree-sitter"
)

// Config is the top-level configuration for sv2chisel.
type Config struct {
	// Parser selects the syntax tree provider: "builtin" or "tree-sitter".
	Parser string `json:"parser,omitempty"`

	// Defines are predefined macros, as if given with -D.
	Defines map[string]string `json:"defines,omitempty"`

	// IncludePaths are searched for `include files after the including
	// file's own directory.
	IncludePaths []string `json:"includePaths,omitempty"`

	// Sources lists input globs used when no input path is given.
	Sources SourcesConfig `json:"sources,omitempty"`

	Output   OutputConfig   `json:"output,omitempty"`
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`
	Lint     LintConfig     `json:"lint,omitempty"`
	Analysis AnalysisConfig `json:"analysis,omitempty"`
}

// SourcesConfig selects input files by glob. ** matches any depth.
type SourcesConfig struct {
	Files   []string `json:"files,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// OutputConfig controls generated Scala files.
type OutputConfig struct {
	Dir string `json:"dir,omitempty"`

	// Layout is "inline", "split" or "both".
	Layout string `json:"layout,omitempty"`

	// SplitDir is the sub-directory of Dir receiving split layout files.
	SplitDir string `json:"splitDir,omitempty"`

	// Package adds a Scala package clause when set.
	Package string `json:"package,omitempty"`

	// AnnotateUnresolved comments fields whose width stayed symbolic.
	AnnotateUnresolved bool `json:"annotateUnresolved,omitempty"`
}

// SnapshotConfig controls symbol table snapshots.
type SnapshotConfig struct {
	// Path, when set, receives the aggregate table after every run.
	Path string `json:"path,omitempty"`

	// Validate checks snapshots against the schema on write and read.
	Validate *bool `json:"validate,omitempty"`
}

// LintConfig contains lint rule configuration.
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error".
	Rules map[string]string `json:"rules,omitempty"`

	// IgnorePatterns is a list of file patterns to skip entirely.
	IgnorePatterns []string `json:"ignorePatterns,omitempty"`
}

// CacheConfig controls the per-file table cache.
type CacheConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to the project root if not absolute).
	Dir string `json:"dir,omitempty"`
}

// AnalysisConfig contains pipeline options.
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto).
	MaxParallelFiles int `json:"maxParallelFiles,omitempty"`

	// FailFast stops the run at the first parse error.
	FailFast bool `json:"failFast,omitempty"`

	Cache CacheConfig `json:"cache,omitempty"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Parser:       ParserBuiltin,
		Defines:      map[string]string{},
		IncludePaths: []string{},
		Sources: SourcesConfig{
			Files:   []string{"*.sv", "*.v"},
			Exclude: []string{},
		},
		Output: OutputConfig{
			Dir:      "generated",
			Layout:   "inline",
			SplitDir: "split",
		},
		Snapshot: SnapshotConfig{
			Validate: boolPtr(true),
		},
		Lint: LintConfig{
			Rules:          map[string]string{},
			IgnorePatterns: []string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0,
			Cache: CacheConfig{
				Enabled: boolPtr(false),
				Dir:     ".sv2chisel_cache",
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file.
// Search order:
//  1. ./sv2chisel.json
//  2. ./.sv2chisel.json
//  3. <rootPath>/sv2chisel.json and <rootPath>/.sv2chisel.json (if different from cwd)
//  4. ~/.config/sv2chisel/config.json
//
// Returns DefaultConfig if no config file is found.
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, FileName),
		filepath.Join(cwd, "."+FileName),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, FileName),
				filepath.Join(rootPath, "."+FileName),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "sv2chisel", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Parser == "" {
		c.Parser = def.Parser
	}
	if c.Defines == nil {
		c.Defines = map[string]string{}
	}
	if len(c.Sources.Files) == 0 {
		c.Sources.Files = def.Sources.Files
	}
	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
	if c.Output.Layout == "" {
		c.Output.Layout = def.Output.Layout
	}
	if c.Output.SplitDir == "" {
		c.Output.SplitDir = def.Output.SplitDir
	}
	if c.Snapshot.Validate == nil {
		c.Snapshot.Validate = boolPtr(true)
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = def.Analysis.Cache.Dir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(false)
	}
}

func (c *Config) check() error {
	switch c.Parser {
	case ParserBuiltin, ParserTreeSitter:
	default:
		return fmt.Errorf("unknown parser %q", c.Parser)
	}
	for rule, sev := range c.Lint.Rules {
		switch sev {
		case "off", "info", "warning", "error":
		default:
			return fmt.Errorf("rule %s: unknown severity %q", rule, sev)
		}
	}
	return nil
}

// Save writes the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ValidateSnapshots reports whether snapshots are schema-checked.
func (c *Config) ValidateSnapshots() bool {
	return c.Snapshot.Validate == nil || *c.Snapshot.Validate
}

// CacheEnabled reports whether the per-file cache is on.
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled != nil && *c.Analysis.Cache.Enabled
}

// CacheDir returns the cache directory resolved against rootPath.
func (c *Config) CacheDir(rootPath string) string {
	if filepath.IsAbs(c.Analysis.Cache.Dir) {
		return c.Analysis.Cache.Dir
	}
	return filepath.Join(rootPath, c.Analysis.Cache.Dir)
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured.
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off".
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true
}

// ShouldIgnoreFile checks if a file should be skipped entirely.
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.Lint.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
