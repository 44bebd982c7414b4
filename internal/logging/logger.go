// Package logging builds the process-wide structured logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"eod-normalizer/internal/config"
)

type contextKey string

// BatchIDContextKey is the context key for the current batch id.
const BatchIDContextKey contextKey = "batch_id"

// Logger is a JSON slog logger plus the log file it may hold open.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a JSON logger from cfg and installs it as the slog default.
func New(cfg config.LoggingConfig) (*Logger, error) {
	l, err := build(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l.Logger)
	return l, nil
}

func build(cfg config.LoggingConfig, stdout io.Writer) (*Logger, error) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	l := &Logger{}
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "file":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		l.file = file
		output = file
	case "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		l.file = file
		output = io.MultiWriter(stdout, file)
	default:
		output = stdout
	}

	l.Logger = slog.New(&batchHandler{Handler: slog.NewJSONHandler(output, opts)})
	return l, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// batchHandler adds batch_id from the context to every record.
type batchHandler struct {
	slog.Handler
}

func (h *batchHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := BatchID(ctx); id != "" {
		r.AddAttrs(slog.String("batch_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *batchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &batchHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *batchHandler) WithGroup(name string) slog.Handler {
	return &batchHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel converts a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithBatchID stores a batch id in ctx.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDContextKey, batchID)
}

// BatchID returns the batch id stored in ctx, or "".
func BatchID(ctx context.Context) string {
	if id, ok := ctx.Value(BatchIDContextKey).(string); ok {
		return id
	}
	return ""
}
