package batchgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with batchgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRank adds worker rank and world size fields to the logger.
func (l *Logger) WithRank(rank, worldSize int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank, "world_size", worldSize),
	}
}

// WithBatchSize adds a batch size field to the logger.
func (l *Logger) WithBatchSize(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("batch_size", n),
	}
}

// LogOpen logs the opening of a dataset.
func (l *Logger) LogOpen(ctx context.Context, files, rowGroups int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "dataset open failed",
			"files", files,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "dataset opened",
			"files", files,
			"row_groups", rowGroups,
		)
	}
}

// LogBatch logs one delivered batch.
func (l *Logger) LogBatch(ctx context.Context, rows int, duration time.Duration) {
	l.DebugContext(ctx, "batch delivered",
		"rows", rows,
		"duration", duration,
	)
}

// LogTail logs the tail decision at end of stream.
func (l *Logger) LogTail(ctx context.Context, rows int, dropped bool) {
	if rows == 0 {
		return
	}
	if dropped {
		l.DebugContext(ctx, "incomplete tail dropped",
			"rows", rows,
		)
	} else {
		l.DebugContext(ctx, "incomplete tail emitted",
			"rows", rows,
		)
	}
}

// LogClose logs the shutdown of a loader.
func (l *Logger) LogClose(ctx context.Context, batches, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "loader close failed",
			"batches", batches,
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "loader closed",
			"batches", batches,
			"rows", rows,
		)
	}
}
