package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
	"github.com/robert-at-pretension-io/sv2chisel/internal/policy"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

const policyCacheVersion = 1

type policyCacheEntry struct {
	Version   int           `json:"version"`
	InputHash string        `json:"input_hash"`
	Result    policy.Result `json:"result"`
}

func policyCachePath(dir string) string {
	return filepath.Join(dir, "policy_cache.json")
}

func loadPolicyCache(dir string) (*policyCacheEntry, error) {
	data, err := os.ReadFile(policyCachePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry policyCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse policy cache: %w", err)
	}
	if entry.Version != policyCacheVersion {
		return nil, nil
	}
	return &entry, nil
}

func savePolicyCache(dir string, entry policyCacheEntry) error {
	if err := writeJSONAtomic(policyCachePath(dir), entry); err != nil {
		return fmt.Errorf("write policy cache: %w", err)
	}
	return nil
}

// policyInputHash identifies one evaluation: the rule sources and the
// exact input document.
func policyInputHash(rules string, input policy.Input) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal policy input: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(rules))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Lint evaluates the lint rules over tbl with the configured severities.
// With the cache enabled an unchanged input reuses the stored result.
func (idx *Indexer) Lint(ctx context.Context, engine *policy.Engine, tbl *symtab.Table) (*policy.Result, error) {
	input := policy.NewInput(facts.BuildTables(tbl), idx.severities)

	var hash string
	if idx.cacheDir != "" {
		h, err := policyInputHash(engine.Version(), input)
		if err != nil {
			return nil, err
		}
		hash = h
		entry, err := loadPolicyCache(idx.cacheDir)
		if err != nil {
			idx.log.Warn("policy cache ignored", slog.Any("error", err))
		} else if entry != nil && entry.InputHash == hash {
			idx.log.Debug("policy cache hit")
			res := entry.Result
			return &res, nil
		}
	}

	res, err := engine.Evaluate(ctx, input)
	if err != nil {
		return nil, err
	}
	if hash != "" {
		if err := savePolicyCache(idx.cacheDir, policyCacheEntry{
			Version:   policyCacheVersion,
			InputHash: hash,
			Result:    *res,
		}); err != nil {
			idx.log.Warn("policy cache not saved", slog.Any("error", err))
		}
	}
	return res, nil
}
