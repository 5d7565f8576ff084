package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// hdlExtensions are the file extensions treated as HDL sources.
var hdlExtensions = map[string]bool{
	".sv":  true,
	".v":   true,
	".svh": true,
	".vh":  true,
}

// IsHDLFile reports whether path has a SystemVerilog or Verilog extension.
func IsHDLFile(path string) bool {
	return hdlExtensions[strings.ToLower(filepath.Ext(path))]
}

// CollectInputs returns the files to process for input. A file is returned
// as is, whatever its extension. A directory is read shallowly: HDL files
// directly inside it, sorted by name, sub-directories not descended.
// Ignored files are dropped.
func (c *Config) CollectInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsHDLFile(e.Name()) {
			continue
		}
		path := filepath.Join(input, e.Name())
		if c.ShouldIgnoreFile(path) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// ResolveSources expands Sources.Files against rootPath, removes
// Sources.Exclude matches and ignored files, and returns HDL files sorted.
func (c *Config) ResolveSources(rootPath string) ([]string, error) {
	fileSet := make(map[string]bool)
	for _, pattern := range c.Sources.Files {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(rootPath, pattern)
		}
		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", pattern, err)
		}
		for _, match := range matches {
			if IsHDLFile(match) && !c.ShouldIgnoreFile(match) {
				fileSet[match] = true
			}
		}
	}

	for _, pattern := range c.Sources.Exclude {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(rootPath, pattern)
		}
		matches, err := expandGlob(pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			delete(fileSet, match)
		}
	}

	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// expandGlob expands a glob pattern, handling ** for recursive matching.
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree.
func expandDoubleStarGlob(pattern string) ([]string, error) {
	parts := strings.SplitN(pattern, "**", 2)
	baseDir := filepath.Clean(parts[0])
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	var results []string
	err := filepath.WalkDir(baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			// Unreadable entries are skipped.
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(rel, suffix) {
			results = append(results, path)
		}
		return nil
	})
	return results, err
}

// matchSuffix checks if a relative path matches the pattern after **.
func matchSuffix(path, pattern string) bool {
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}
	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}
	if len(path) > len(pattern) {
		matched, _ := filepath.Match(pattern, path[len(path)-len(pattern):])
		return matched
	}
	return false
}
