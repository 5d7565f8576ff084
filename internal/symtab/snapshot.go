package symtab

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a snapshot encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatForPath picks the encoding from the file extension; anything other
// than .yaml or .yml is JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Marshal encodes t.
func Marshal(t *Table, f Format) ([]byte, error) {
	if f == FormatYAML {
		return yaml.Marshal(t)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a snapshot. Missing lists come back empty, not nil.
func Unmarshal(data []byte, f Format) (*Table, error) {
	t := New()
	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(data, t)
	} else {
		err = json.Unmarshal(data, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s snapshot: %w", f, err)
	}
	if t.Defines == nil {
		t.Defines = []Define{}
	}
	if t.Modules == nil {
		t.Modules = []Module{}
	}
	for i := range t.Modules {
		if t.Modules[i].Ports == nil {
			t.Modules[i].Ports = []Port{}
		}
	}
	return t, nil
}

// Save writes t to path, choosing the encoding by extension. The file is
// replaced atomically.
func Save(path string, t *Table) error {
	data, err := Marshal(t, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	t, err := Unmarshal(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
