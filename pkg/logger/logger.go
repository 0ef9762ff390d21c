package logger

import (
	"context"
	"log/slog"
	"os"
)

// ContextKey is a dedicated type for context keys to avoid collisions
// with other packages.
type ContextKey string

const (
	// RequestIDKey carries the request ID through the call tree.
	RequestIDKey ContextKey = "request_id"
	// ProjectIDKey carries the project an ingestion is working on.
	ProjectIDKey ContextKey = "project_id"
	// UsernameKey carries the authenticated username.
	UsernameKey ContextKey = "username"
)

// contextKeys are the values WithContext lifts into log attributes, in
// output order.
var contextKeys = []ContextKey{RequestIDKey, ProjectIDKey, UsernameKey}

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init installs the process-wide slog logger.
func Init(cfg *Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns the default logger enriched with every known
// context value present on ctx.
func WithContext(ctx context.Context) *slog.Logger {
	log := slog.Default()
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			log = log.With(string(key), v)
		}
	}
	return log
}

// Info logs at info level with context attributes.
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context attributes.
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context attributes.
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context attributes.
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
