package resmgr

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with resmgr-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPool adds a pool name field to the logger.
func (l *Logger) WithPool(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("pool", name),
	}
}

// WithPoolType adds a pool type field to the logger.
func (l *Logger) WithPoolType(poolType string) *Logger {
	return &Logger{
		Logger: l.Logger.With("pool_type", poolType),
	}
}

// WithResource adds a resource name field to the logger.
func (l *Logger) WithResource(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("resource", name),
	}
}

// LogTypeMismatch logs a resource skipped because it does not support the
// pool's type. This is expected during broad registration sweeps.
func (l *Logger) LogTypeMismatch(ctx context.Context, pool, poolType, resource string) {
	l.DebugContext(ctx, "pool type not supported by resource",
		"pool", pool,
		"pool_type", poolType,
		"resource", resource,
	)
}

// LogObservationFailure logs a failed monitored-value query. The resource's
// contribution is absent from the aggregate for this tick.
func (l *Logger) LogObservationFailure(ctx context.Context, pool, resource string, err error) {
	l.WarnContext(ctx, "error getting monitored values",
		"pool", pool,
		"resource", resource,
		"error", err,
	)
}

// LogAggregation logs a completed aggregation.
func (l *Logger) LogAggregation(ctx context.Context, pool string, resources int, duration time.Duration) {
	l.DebugContext(ctx, "aggregation completed",
		"pool", pool,
		"resources", resources,
		"duration", duration,
	)
}

// LogManage logs a management tick.
func (l *Logger) LogManage(ctx context.Context, pool string, duration time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "error running management plugin",
			"pool", pool,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "management tick completed",
			"pool", pool,
			"duration", duration,
		)
	}
}

// LogPoolCreated logs pool creation.
func (l *Logger) LogPoolCreated(ctx context.Context, pool, poolType string, interval time.Duration) {
	l.InfoContext(ctx, "pool created",
		"pool", pool,
		"pool_type", poolType,
		"interval", interval,
	)
}

// LogPoolClosed logs pool shutdown.
func (l *Logger) LogPoolClosed(ctx context.Context, pool string) {
	l.InfoContext(ctx, "pool closed",
		"pool", pool,
	)
}
