package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type so context values set here cannot collide
// with other packages.
type contextKey struct{}

// loggerKey is the context key under which the request-scoped logger travels.
var loggerKey = contextKey{}

// WithLogger returns a context carrying the given logger. Middleware and
// daemons attach a logger enriched with correlation attributes so lower
// layers log with the same context.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger carried by the context, or the process
// default logger when none is attached.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// FromContextOrDefault returns the logger carried by the context, falling
// back to the provided component logger rather than the process default.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
