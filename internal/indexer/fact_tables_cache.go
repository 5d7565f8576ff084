package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
)

const factTablesCacheVersion = 1

// factTablesCache holds the fact tables of the previous run so the next
// run can report what changed.
type factTablesCache struct {
	Version int          `json:"version"`
	Tables  facts.Tables `json:"tables"`
}

func factTablesPath(dir string) string {
	return filepath.Join(dir, "fact_tables.json")
}

func loadFactTablesCache(dir string) (facts.Tables, bool, error) {
	data, err := os.ReadFile(factTablesPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return facts.Tables{}, false, nil
		}
		return facts.Tables{}, false, fmt.Errorf("read fact tables cache: %w", err)
	}
	var cache factTablesCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return facts.Tables{}, false, fmt.Errorf("parse fact tables cache: %w", err)
	}
	if cache.Version != factTablesCacheVersion {
		return facts.Tables{}, false, nil
	}
	return cache.Tables, true, nil
}

func saveFactTablesCache(dir string, tables facts.Tables) error {
	cache := factTablesCache{
		Version: factTablesCacheVersion,
		Tables:  tables,
	}
	if err := writeJSONAtomic(factTablesPath(dir), cache); err != nil {
		return fmt.Errorf("write fact tables cache: %w", err)
	}
	return nil
}
