package hitmerge

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with hitmerge-specific field helpers so both node
// types log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler to stderr at Info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all output. This is the default
// for both node types: a library should be quiet unless asked not to be.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithNode adds a node identifier field.
func (l *Logger) WithNode(node string) *Logger {
	return &Logger{Logger: l.Logger.With("node", node)}
}

// WithDest adds a destination field.
func (l *Logger) WithDest(dest string) *Logger {
	return &Logger{Logger: l.Logger.With("dest", dest)}
}

// WithRegion adds the object-ID region bounds.
func (l *Logger) WithRegion(r Region) *Logger {
	return &Logger{Logger: l.Logger.With("region_start", r.Start, "region_end", r.End)}
}
