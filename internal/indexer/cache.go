package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/sv2chisel/internal/extractor"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

const cacheIndexVersion = 1

// cacheEntry records where the table of one source file is stored and
// under which settings it was produced.
type cacheEntry struct {
	ContentHash string `json:"content_hash"`
	TablePath   string `json:"table_path"`
	Settings    string `json:"settings"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// tableCache stores per-file tables on disk. The index is shared by the
// workers and guarded by mu; table files are written atomically.
//
// Only the file's own content is hashed. Edits to `include'd headers are not
// detected; clear the cache after changing them.
type tableCache struct {
	dir      string
	settings string
	mu       sync.Mutex
	index    cacheIndex
}

// settingsKey hashes everything besides file content that changes a file's
// table: the parser backend, the predefined macros, include paths and the
// extraction rules.
func settingsKey(parser string, defines map[string]string, includes []string) string {
	payload := struct {
		Parser    string            `json:"parser"`
		Defines   map[string]string `json:"defines"`
		Includes  []string          `json:"includes"`
		Extractor string            `json:"extractor"`
	}{parser, defines, includes, extractor.Version}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTableCache(dir, settings string) *tableCache {
	return &tableCache{
		dir:      dir,
		settings: settings,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *tableCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *tableCache) tablePathForFile(filePath string) string {
	h := sha256.Sum256([]byte(filePath))
	return filepath.Join(c.dir, "tables", hex.EncodeToString(h[:])+".json")
}

func (c *tableCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *tableCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

func (c *tableCache) Get(filePath, contentHash string) (*symtab.Table, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash || entry.Settings != c.settings {
		return nil, false, nil
	}

	data, err := os.ReadFile(entry.TablePath)
	if err != nil {
		return nil, false, fmt.Errorf("read cached table: %w", err)
	}
	tbl, err := symtab.Unmarshal(data, symtab.FormatJSON)
	if err != nil {
		return nil, false, fmt.Errorf("parse cached table: %w", err)
	}
	return tbl, true, nil
}

func (c *tableCache) Put(filePath, contentHash string, tbl *symtab.Table) error {
	tablePath := c.tablePathForFile(filePath)
	if err := writeJSONAtomic(tablePath, tbl); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash: contentHash,
		TablePath:   tablePath,
		Settings:    c.settings,
	}
	c.mu.Unlock()
	return nil
}

// ClearCache removes the cache directory.
func ClearCache(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove cache: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
