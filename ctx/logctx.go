package ctx

import (
	"context"
	"log/slog"
)

type loggerContextKey struct{}

// ContextWithLogger returns a new context carrying the provided slog.Logger.
//
// The app injects its logger into every request context, so handlers and
// middleware can log without holding a reference to the app:
//
//	func Show(c ctx.Ctx) error {
//		l := ctx.LoggerFromContext(c.Context())
//		l.Info("serving", "path", c.Path())
//		return nil
//	}
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// LoggerFromContext returns the slog.Logger stored in ctx, or slog.Default if
// none is found.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return LoggerFromContextOr(ctx, slog.Default())
}

// LoggerFromContextOr returns the slog.Logger stored in ctx, or fallback if
// none is found.
func LoggerFromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if v := ctx.Value(loggerContextKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return fallback
}
