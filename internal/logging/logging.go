// Package logging holds the nil-safe slog helpers shared by the pipeline.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// LevelTrace is more verbose than Debug. Use it for per-node and per-token
// output.
const LevelTrace = slog.Level(-8)

var ctx = context.Background()

// Logger wraps *slog.Logger so a nil logger costs nothing.
type Logger struct {
	L *slog.Logger
}

// Component returns a Logger tagged with component. A nil parent yields a
// disabled Logger.
func Component(parent *slog.Logger, component string) Logger {
	if parent == nil {
		return Logger{}
	}
	return Logger{L: parent.With(slog.String("component", component))}
}

// Enabled reports whether level would be emitted.
func (l Logger) Enabled(level slog.Level) bool {
	return l.L != nil && l.L.Enabled(ctx, level)
}

// Log emits msg when level is enabled.
func (l Logger) Log(level slog.Level, msg string, attrs ...slog.Attr) {
	if l.Enabled(level) {
		l.L.LogAttrs(ctx, level, msg, attrs...)
	}
}

func (l Logger) Trace(msg string, attrs ...slog.Attr) { l.Log(LevelTrace, msg, attrs...) }
func (l Logger) Debug(msg string, attrs ...slog.Attr) { l.Log(slog.LevelDebug, msg, attrs...) }
func (l Logger) Info(msg string, attrs ...slog.Attr)  { l.Log(slog.LevelInfo, msg, attrs...) }
func (l Logger) Warn(msg string, attrs ...slog.Attr)  { l.Log(slog.LevelWarn, msg, attrs...) }

// New builds the CLI logger: text on w, debug when verbose, trace when
// trace is set.
func New(w io.Writer, verbose, trace bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case trace:
		level = LevelTrace
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
