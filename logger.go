package cratedigger

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with library-specific helpers so that call sites
// log consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all output. It is the default
// for opened databases.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// LogOpen logs the outcome of opening a database file.
func (l *Logger) LogOpen(path string, tables int, pageSize uint32, err error) {
	if err != nil {
		l.Error("open failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.Info("database opened",
		"path", path,
		"tables", tables,
		"page_size", pageSize,
	)
}

// LogIndex logs the result of indexing one table.
func (l *Logger) LogIndex(kind Kind, rows, skipped int) {
	if skipped > 0 {
		l.Warn("table indexed with skipped rows",
			"kind", kind.String(),
			"rows", rows,
			"skipped", skipped,
		)
		return
	}
	l.Debug("table indexed",
		"kind", kind.String(),
		"rows", rows,
	)
}

// LogCueScan logs the result of an analysis-directory scan.
func (l *Logger) LogCueScan(dir string, files, tracks int) {
	l.Info("analysis directory scanned",
		"dir", dir,
		"files", files,
		"tracks", tracks,
	)
}
