package rewardsearch

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with rewardsearch-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRun adds a run field to the logger.
func (l *Logger) WithRun(run string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", run),
	}
}

// WithMethod adds a search method field to the logger.
func (l *Logger) WithMethod(method string) *Logger {
	return &Logger{
		Logger: l.Logger.With("method", method),
	}
}

// WithProvider adds a reward provider field to the logger.
func (l *Logger) WithProvider(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("provider", name),
	}
}

// LogReward logs a reward evaluation.
func (l *Logger) LogReward(ctx context.Context, step, particles int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reward failed",
			"step", step,
			"particles", particles,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "reward completed",
			"step", step,
			"particles", particles,
		)
	}
}

// LogSearch logs a search call.
func (l *Logger) LogSearch(ctx context.Context, step, groupSize int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"step", step,
			"group_size", groupSize,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"step", step,
			"group_size", groupSize,
		)
	}
}

// LogStep logs the outcome of a guided step.
func (l *Logger) LogStep(ctx context.Context, step, best int, bestReward float64, survivors int) {
	l.DebugContext(ctx, "step completed",
		"step", step,
		"best", best,
		"best_reward", bestReward,
		"survivors", survivors,
	)
}

// LogGradients logs a gradient evaluation.
func (l *Logger) LogGradients(ctx context.Context, particles int, supported bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "gradients failed",
			"particles", particles,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "gradients completed",
			"particles", particles,
			"supported", supported,
		)
	}
}

// LogTrace logs a trace flush.
func (l *Logger) LogTrace(ctx context.Context, run string, records int, err error) {
	if err != nil {
		l.WarnContext(ctx, "trace write failed",
			"run", run,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "trace flushed",
			"run", run,
			"records", records,
		)
	}
}
