package chisel

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

// DefaultSplitDir is the sub-directory receiving the split layout.
const DefaultSplitDir = "split"

// ErrNotDirectory is returned when the output path exists as a file.
var ErrNotDirectory = errors.New("output path is not a directory")

// ErrUnsafeName is returned for a module whose name cannot be a file name
// inside the output directory.
var ErrUnsafeName = errors.New("module name is not a local file name")

// WriteError reports one artifact that could not be written.
type WriteError struct {
	Module string
	Path   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing module %s to %s: %v", e.Module, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSplitDir overrides the split layout sub-directory.
func WithSplitDir(dir string) WriterOption {
	return func(w *Writer) { w.splitDir = dir }
}

// WithWriterLogger sets the logger for debug output.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.log = logging.Component(l, "writer") }
}

// Writer writes one <module>.scala file per module and layout.
type Writer struct {
	gen      *Generator
	dir      string
	splitDir string
	log      logging.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(gen *Generator, dir string, opts ...WriterOption) *Writer {
	w := &Writer{gen: gen, dir: dir, splitDir: DefaultSplitDir}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the directory receiving files of layout l.
func (w *Writer) Dir(l Layout) string {
	if l == LayoutSplit {
		return filepath.Join(w.dir, w.splitDir)
	}
	return w.dir
}

// Write renders every module of tbl in each layout. A failing artifact does
// not stop the others; all failures are returned joined, each a
// *WriteError. Directory setup failures abort before anything is written.
func (w *Writer) Write(tbl *symtab.Table, layouts []Layout) (written []string, err error) {
	if err := ensureDir(w.dir); err != nil {
		return nil, err
	}
	for _, l := range layouts {
		if l == LayoutSplit {
			if err := ensureDir(w.Dir(l)); err != nil {
				return nil, err
			}
		}
	}

	var errs []error
	seen := make(map[string]bool)
	for _, m := range tbl.Modules {
		if seen[m.Name] {
			w.log.Warn("duplicate module name, later definition overwrites earlier",
				slog.String("module", m.Name), slog.String("file", m.File))
		}
		seen[m.Name] = true
		for _, l := range layouts {
			path := filepath.Join(w.Dir(l), m.Name+".scala")
			if !safeName(m.Name) {
				errs = append(errs, &WriteError{Module: m.Name, Path: path, Err: ErrUnsafeName})
				continue
			}
			if err := os.WriteFile(path, []byte(w.gen.Generate(m, l)), 0o644); err != nil {
				errs = append(errs, &WriteError{Module: m.Name, Path: path, Err: err})
				continue
			}
			written = append(written, path)
			w.log.Debug("wrote", slog.String("module", m.Name), slog.String("layout", l.String()), slog.String("path", path))
		}
	}
	return written, errors.Join(errs...)
}

func safeName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && filepath.IsLocal(name+".scala")
}

// ensureDir creates dir when absent and fails when it exists as a file.
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}
