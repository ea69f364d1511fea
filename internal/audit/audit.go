// Package audit provides the process-wide, append-only audit log that records
// every request and response passing through the gateway.
package audit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"audit-gateway/internal/config"
)

var errClosed = errors.New("audit: log is closed")

// Logger is the shared audit sink. It embeds *slog.Logger, so records are
// emitted with Info, Error or Log(ctx, level, msg).
type Logger struct {
	*slog.Logger

	sink *sink
	file *os.File
	path string
}

// New opens the audit log described by cfg.Audit.
func New(cfg *config.Config) (*Logger, error) {
	return Open(cfg.Audit.Path, cfg.Audit.LoggerName, config.ParseLevel(cfg.Audit.Level))
}

// Open creates path (and its parent directories) if needed and opens it for
// appending.
func Open(path, name string, level slog.Leveler) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	l := NewWithWriter(f, name, level)
	l.file = f
	l.path = path
	return l, nil
}

// NewWithWriter returns a Logger that appends to w instead of a file.
func NewWithWriter(w io.Writer, name string, level slog.Leveler) *Logger {
	h := NewHandler(w, name, level)
	return &Logger{
		Logger: slog.New(h),
		sink:   h.sink,
	}
}

// Path returns the file backing the log, or empty for writer-backed loggers.
func (l *Logger) Path() string {
	return l.path
}

// Size returns the current size of the backing file in bytes.
func (l *Logger) Size() (int64, error) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.file == nil {
		return 0, nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("audit: stat %s: %w", l.path, err)
	}
	return info.Size(), nil
}

// Close syncs and closes the backing file. Records emitted afterwards are
// dropped. Close is safe to call more than once.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.w = nil
	if l.file == nil {
		return nil
	}

	err := multierr.Combine(l.file.Sync(), l.file.Close())
	l.file = nil
	if err != nil {
		return fmt.Errorf("audit: close %s: %w", l.path, err)
	}
	return nil
}
