// Package indexer runs extraction over a set of files and merges the
// per-file tables into one aggregate.
//
// Files are processed as a bounded fork-join: every worker parses and
// extracts one file into its own result slot, and the slots are merged in
// input order once all workers are done. The aggregate therefore does not
// depend on scheduling or on the number of workers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/sv2chisel/internal/config"
	"github.com/robert-at-pretension-io/sv2chisel/internal/extractor"
	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// File statuses.
const (
	StatusExtracted  = "extracted"
	StatusCacheHit   = "cache_hit"
	StatusParseError = "parse_error"
)

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger for the indexer and the extractor it creates.
func WithLogger(l *slog.Logger) Option {
	return func(idx *Indexer) { idx.slog = l }
}

// WithJobs overrides the number of files processed concurrently.
func WithJobs(n int) Option {
	return func(idx *Indexer) { idx.jobs = n }
}

// WithFailFast overrides whether the first parse error aborts the run.
func WithFailFast(v bool) Option {
	return func(idx *Indexer) { idx.failFast = v }
}

// WithTimingPath writes per-file and per-stage timings as JSONL to path.
func WithTimingPath(path string) Option {
	return func(idx *Indexer) { idx.timingPath = path }
}

// WithCacheDir enables the on-disk cache in dir. An empty dir disables it.
func WithCacheDir(dir string) Option {
	return func(idx *Indexer) { idx.cacheDir = dir }
}

// WithExtractor replaces the default extractor.
func WithExtractor(x *extractor.Extractor) Option {
	return func(idx *Indexer) { idx.extractor = x }
}

// Indexer drives a provider and the extractor over many files.
type Indexer struct {
	provider   syntax.Provider
	extractor  *extractor.Extractor
	defines    map[string]string
	includes   []string
	severities map[string]string
	jobs       int
	failFast   bool
	cacheDir   string
	timingPath string
	slog       *slog.Logger
	log        logging.Logger
}

// New creates an Indexer using provider and the settings of cfg. The cache
// is enabled when cfg enables it, rooted at cfg.CacheDir(root).
func New(cfg *config.Config, root string, provider syntax.Provider, opts ...Option) *Indexer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	idx := &Indexer{
		provider:   provider,
		defines:    cfg.Defines,
		includes:   cfg.IncludePaths,
		severities: cfg.Lint.Rules,
		jobs:       cfg.Analysis.MaxParallelFiles,
		failFast:   cfg.Analysis.FailFast,
	}
	if cfg.CacheEnabled() {
		idx.cacheDir = cfg.CacheDir(root)
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.log = logging.Component(idx.slog, "indexer")
	if idx.extractor == nil {
		idx.extractor = extractor.New(extractor.WithLogger(idx.slog))
	}
	return idx
}

// Result is the outcome of one run.
type Result struct {
	// Table is the aggregate of every file that parsed, in input order.
	Table *symtab.Table `json:"table"`

	Files []FileResult `json:"files"`

	// ParseErrors lists the files that failed, in input order.
	ParseErrors []*syntax.ParseError `json:"-"`

	// Delta is the change against the previous cached run, if any.
	Delta *facts.Delta `json:"delta,omitempty"`

	Stats Stats `json:"stats"`
}

// Err joins the parse errors, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, len(r.ParseErrors))
	for i, e := range r.ParseErrors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// FileResult reports one input file.
type FileResult struct {
	Path       string  `json:"path"`
	Status     string  `json:"status"`
	Modules    int     `json:"modules"`
	Ports      int     `json:"ports"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// Stats provides aggregate counts.
type Stats struct {
	Files      int `json:"files"`
	Extracted  int `json:"extracted"`
	CacheHits  int `json:"cache_hits"`
	Failed     int `json:"failed"`
	Defines    int `json:"defines"`
	Modules    int `json:"modules"`
	Ports      int `json:"ports"`
	Unresolved int `json:"unresolved"`
}

// slot is the result of one worker. Each worker writes only its own slot.
type slot struct {
	table    *symtab.Table
	err      *syntax.ParseError
	status   string
	duration time.Duration
}

func (idx *Indexer) workers(files int) int {
	n := idx.jobs
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > files {
		n = files
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run processes files and merges their tables. Parse failures are
// collected in the result unless fail-fast is on, in which case the first
// one is returned as the error. Cancelling ctx stops the run.
func (idx *Indexer) Run(ctx context.Context, files []string) (*Result, error) {
	runStart := time.Now()
	timing := newTimingRecorder(runStart, idx.timingPath)
	if err := timing.Err(); err != nil {
		idx.log.Warn("timing output disabled", slog.Any("error", err))
	}
	defer timing.Close()

	cache := idx.openCache()

	stepStart := time.Now()
	slots := make([]slot, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers(len(files)))
	for i, f := range files {
		g.Go(func() error {
			return idx.processFile(gctx, cache, timing, f, &slots[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timing.RecordStage("extract", stepStart, time.Since(stepStart))

	stepStart = time.Now()
	res := idx.merge(files, slots)
	timing.RecordStage("merge", stepStart, time.Since(stepStart))

	if cache != nil {
		if err := cache.Save(); err != nil {
			idx.log.Warn("cache index not saved", slog.Any("error", err))
		}
		res.Delta = idx.diffPrevious(res.Table)
	}

	timing.RecordStage("total", runStart, time.Since(runStart))
	idx.log.Debug("run complete",
		slog.Int("files", res.Stats.Files),
		slog.Int("failed", res.Stats.Failed),
		slog.Int("cache_hits", res.Stats.CacheHits),
		slog.Int("modules", res.Stats.Modules),
		slog.Duration("elapsed", time.Since(runStart)))
	return res, nil
}

func (idx *Indexer) openCache() *tableCache {
	if idx.cacheDir == "" {
		return nil
	}
	cache := newTableCache(idx.cacheDir, settingsKey(idx.provider.Name(), idx.defines, idx.includes))
	if err := cache.Load(); err != nil {
		idx.log.Warn("cache disabled", slog.Any("error", err))
		return nil
	}
	return cache
}

// processFile fills out for path. It returns an error only to abort the
// whole run: on a fail-fast parse error or a cancelled context.
func (idx *Indexer) processFile(ctx context.Context, cache *tableCache, timing *timingRecorder, path string, out *slot) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.table = nil
			err = idx.fail(out, &syntax.ParseError{Path: path, Cause: fmt.Errorf("internal error: %v", r)})
		}
		out.duration = time.Since(start)
		timing.RecordFile("extract", path, out.status, start, out.duration)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	var contentHash string
	if cache != nil {
		// A file that cannot be hashed is parsed anyway; the provider
		// reports the read failure.
		if h, herr := hashFile(path); herr == nil {
			contentHash = h
			tbl, ok, gerr := cache.Get(path, contentHash)
			if gerr != nil {
				idx.log.Warn("cache read failed", slog.String("file", path), slog.Any("error", gerr))
			} else if ok {
				out.table, out.status = tbl, StatusCacheHit
				return nil
			}
		}
	}

	tree, perr := idx.provider.Parse(ctx, path, idx.defines, idx.includes)
	if perr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var pe *syntax.ParseError
		if !errors.As(perr, &pe) {
			pe = &syntax.ParseError{Path: path, Cause: perr}
		}
		return idx.fail(out, pe)
	}

	out.table = idx.extractor.Extract(tree)
	out.status = StatusExtracted
	if contentHash != "" {
		if err := cache.Put(path, contentHash, out.table); err != nil {
			idx.log.Warn("cache write failed", slog.String("file", path), slog.Any("error", err))
		}
	}
	return nil
}

func (idx *Indexer) fail(out *slot, pe *syntax.ParseError) error {
	out.err, out.status = pe, StatusParseError
	idx.log.Debug("parse failed", slog.String("file", pe.Path), slog.Any("error", pe.Cause))
	if idx.failFast {
		return pe
	}
	return nil
}

func (idx *Indexer) merge(files []string, slots []slot) *Result {
	res := &Result{
		Table: symtab.New(),
		Files: make([]FileResult, 0, len(files)),
	}
	for i, s := range slots {
		fr := FileResult{
			Path:       files[i],
			Status:     s.status,
			DurationMS: durationToMS(s.duration),
		}
		switch s.status {
		case StatusExtracted:
			res.Stats.Extracted++
		case StatusCacheHit:
			res.Stats.CacheHits++
		case StatusParseError:
			res.Stats.Failed++
			res.ParseErrors = append(res.ParseErrors, s.err)
			fr.Error = s.err.Cause.Error()
		}
		if s.table != nil {
			res.Table.Merge(s.table)
			fr.Modules = len(s.table.Modules)
			fr.Ports = s.table.PortCount()
		}
		res.Files = append(res.Files, fr)
	}
	res.Stats.Files = len(files)
	res.Stats.Defines = len(res.Table.Defines)
	res.Stats.Modules = len(res.Table.Modules)
	res.Stats.Ports = res.Table.PortCount()
	res.Stats.Unresolved = res.Table.UnresolvedPorts()
	return res
}

// diffPrevious compares the aggregate with the previous cached run and
// stores the current tables for the next one.
func (idx *Indexer) diffPrevious(tbl *symtab.Table) *facts.Delta {
	tables := facts.BuildTables(tbl)
	prev, ok, err := loadFactTablesCache(idx.cacheDir)
	if err != nil {
		idx.log.Warn("previous facts ignored", slog.Any("error", err))
	}
	if err := saveFactTablesCache(idx.cacheDir, tables); err != nil {
		idx.log.Warn("facts not cached", slog.Any("error", err))
	}
	if !ok {
		return nil
	}
	d := facts.ComputeDelta(prev, tables)
	return &d
}
