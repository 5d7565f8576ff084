package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
	"github.com/robert-at-pretension-io/sv2chisel/internal/policy"
	"github.com/robert-at-pretension-io/sv2chisel/internal/svparse"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// countingProvider wraps the builtin provider and counts parses.
type countingProvider struct {
	inner *svparse.Provider
	calls atomic.Int32
	panic string
}

func (p *countingProvider) Name() string { return svparse.Name }

func (p *countingProvider) Parse(ctx context.Context, path string, defines map[string]string, includes []string) (*syntax.Tree, error) {
	p.calls.Add(1)
	if p.panic != "" && filepath.Base(path) == p.panic {
		panic("boom")
	}
	return p.inner.Parse(ctx, path, defines, includes)
}

func newCounting() *countingProvider {
	return &countingProvider{inner: svparse.New()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDesign(t *testing.T, dir string, n int) []string {
	t.Helper()
	files := make([]string, 0, n)
	for i := 0; i < n; i++ {
		src := fmt.Sprintf("`define W%d %d\nmodule m%d(input [`W%d-1:0] a, output b);\nendmodule\n", i, i+2, i, i)
		files = append(files, writeFile(t, dir, fmt.Sprintf("m%02d.sv", i), src))
	}
	return files
}

func noCache() *config.Config {
	cfg := config.DefaultConfig()
	off := false
	cfg.Analysis.Cache.Enabled = &off
	return cfg
}

func TestRunIndependentOfJobs(t *testing.T) {
	dir := t.TempDir()
	files := writeDesign(t, dir, 12)

	serial, err := New(noCache(), dir, svparse.New(), WithJobs(1)).Run(context.Background(), files)
	require.NoError(t, err)
	parallel, err := New(noCache(), dir, svparse.New(), WithJobs(8)).Run(context.Background(), files)
	require.NoError(t, err)

	require.Equal(t, serial.Table, parallel.Table)
	require.Len(t, parallel.Table.Modules, 12)
	for i, m := range parallel.Table.Modules {
		require.Equal(t, fmt.Sprintf("m%d", i), m.Name)
		require.Equal(t, files[i], m.File)
	}
	require.Equal(t, 12, parallel.Stats.Extracted)
	require.Equal(t, 24, parallel.Stats.Ports)
	require.Zero(t, parallel.Stats.Unresolved)
}

func TestRunCollectsParseErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.sv", "module good(input a);\nendmodule\n")
	missing := filepath.Join(dir, "missing.sv")
	other := writeFile(t, dir, "other.sv", "module other(output b);\nendmodule\n")

	res, err := New(noCache(), dir, svparse.New(), WithJobs(2)).Run(context.Background(), []string{good, missing, other})
	require.NoError(t, err)

	require.Len(t, res.Table.Modules, 2)
	require.Equal(t, "good", res.Table.Modules[0].Name)
	require.Equal(t, "other", res.Table.Modules[1].Name)
	require.Len(t, res.ParseErrors, 1)
	require.Equal(t, missing, res.ParseErrors[0].Path)
	require.Equal(t, StatusParseError, res.Files[1].Status)
	require.NotEmpty(t, res.Files[1].Error)
	require.Equal(t, 1, res.Stats.Failed)
	require.ErrorContains(t, res.Err(), "missing.sv")
}

func TestRunFailFast(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.sv")
	good := writeFile(t, dir, "good.sv", "module good(input a);\nendmodule\n")

	_, err := New(noCache(), dir, svparse.New(), WithJobs(1), WithFailFast(true)).Run(context.Background(), []string{missing, good})
	require.Error(t, err)
	var pe *syntax.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, missing, pe.Path)
}

func TestRunRecoversPanic(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.sv", "module a(input x);\nendmodule\n"),
		writeFile(t, dir, "bad.sv", "module bad(input x);\nendmodule\n"),
	}
	p := newCounting()
	p.panic = "bad.sv"

	res, err := New(noCache(), dir, p).Run(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, res.Table.Modules, 1)
	require.Len(t, res.ParseErrors, 1)
	require.ErrorContains(t, res.ParseErrors[0], "internal error: boom")
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	files := writeDesign(t, dir, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(noCache(), dir, svparse.New()).Run(ctx, files)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunCacheAndDelta(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	files := writeDesign(t, dir, 3)

	p := newCounting()
	first, err := New(noCache(), dir, p, WithCacheDir(cacheDir)).Run(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, int32(3), p.calls.Load())
	require.Nil(t, first.Delta)

	second, err := New(noCache(), dir, p, WithCacheDir(cacheDir)).Run(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, int32(3), p.calls.Load())
	require.Equal(t, 3, second.Stats.CacheHits)
	require.Equal(t, first.Table, second.Table)
	require.NotNil(t, second.Delta)
	require.True(t, second.Delta.Empty())

	writeFile(t, dir, "m01.sv", "module renamed(input a);\nendmodule\n")
	third, err := New(noCache(), dir, p, WithCacheDir(cacheDir)).Run(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, int32(4), p.calls.Load())
	require.Equal(t, StatusExtracted, third.Files[1].Status)
	require.NotNil(t, third.Delta)

	var added []string
	for _, m := range third.Delta.Added.Modules {
		added = append(added, m.Name)
	}
	var removed []string
	for _, m := range third.Delta.Removed.Modules {
		removed = append(removed, m.Name)
	}
	require.Equal(t, []string{"renamed"}, added)
	require.Equal(t, []string{"m1"}, removed)
}

func TestRunCacheKeyedBySettings(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	files := writeDesign(t, dir, 2)

	p := newCounting()
	_, err := New(noCache(), dir, p, WithCacheDir(cacheDir)).Run(context.Background(), files)
	require.NoError(t, err)

	cfg := noCache()
	cfg.Defines = map[string]string{"EXTRA": "1"}
	res, err := New(cfg, dir, p, WithCacheDir(cacheDir)).Run(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, int32(4), p.calls.Load())
	require.Zero(t, res.Stats.CacheHits)
}

func TestRunWritesTiming(t *testing.T) {
	dir := t.TempDir()
	files := writeDesign(t, dir, 2)
	timingPath := filepath.Join(dir, "timing.jsonl")

	_, err := New(noCache(), dir, svparse.New(), WithTimingPath(timingPath)).Run(context.Background(), files)
	require.NoError(t, err)

	f, err := os.Open(timingPath)
	require.NoError(t, err)
	defer f.Close()

	kinds := map[string]int{}
	phases := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev timingEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		kinds[ev.Kind]++
		phases[ev.Phase] = true
	}
	require.NoError(t, sc.Err())
	require.Equal(t, 2, kinds["file"])
	require.Equal(t, 3, kinds["stage"])
	require.True(t, phases["merge"])
	require.True(t, phases["total"])
}

func TestLintUsesPolicyCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	files := []string{
		writeFile(t, dir, "a.sv", "module dup(input [`W-1:0] a);\nendmodule\n"),
		writeFile(t, dir, "b.sv", "module dup(input b);\nendmodule\n"),
	}

	idx := New(noCache(), dir, svparse.New(), WithCacheDir(cacheDir))
	res, err := idx.Run(ctx, files)
	require.NoError(t, err)

	engine, err := policy.New(ctx)
	require.NoError(t, err)

	first, err := idx.Lint(ctx, engine, res.Table)
	require.NoError(t, err)
	require.True(t, first.HasErrors())
	require.FileExists(t, policyCachePath(cacheDir))

	entry, err := loadPolicyCache(cacheDir)
	require.NoError(t, err)
	require.NotNil(t, entry)
	entry.Result.Summary.Errors = 99
	require.NoError(t, savePolicyCache(cacheDir, *entry))

	cached, err := idx.Lint(ctx, engine, res.Table)
	require.NoError(t, err)
	require.Equal(t, 99, cached.Summary.Errors)
}

func TestLintSeveritiesFromConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files := []string{writeFile(t, dir, "a.sv", "module m(input [`W-1:0] a);\nendmodule\n")}

	cfg := noCache()
	cfg.Lint.Rules = map[string]string{policy.RuleUnresolvedWidth: policy.SeverityError}
	idx := New(cfg, dir, svparse.New())
	res, err := idx.Run(ctx, files)
	require.NoError(t, err)

	engine, err := policy.New(ctx)
	require.NoError(t, err)
	out, err := idx.Lint(ctx, engine, res.Table)
	require.NoError(t, err)
	require.True(t, out.HasErrors())
}
