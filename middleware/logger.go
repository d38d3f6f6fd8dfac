package middleware

import (
	"log/slog"
	"time"

	"github.com/goflash/devserver"
	"github.com/goflash/devserver/bareurl"
	"github.com/goflash/devserver/ctx"
)

type loggerConfig struct {
	exclude map[string]struct{}
	custom  func(devserver.Ctx) []any
}

// LoggerOption customizes the Logger middleware.
type LoggerOption func(*loggerConfig)

// WithExcludeFields drops the named attributes (e.g. "user_agent", "remote")
// from every request log line.
func WithExcludeFields(fields ...string) LoggerOption {
	return func(cfg *loggerConfig) {
		for _, f := range fields {
			cfg.exclude[f] = struct{}{}
		}
	}
}

// WithCustomAttributes appends the key/value pairs returned by fn to every
// request log line.
func WithCustomAttributes(fn func(devserver.Ctx) []any) LoggerOption {
	return func(cfg *loggerConfig) { cfg.custom = fn }
}

// Logger returns middleware that logs each request using slog, including
// method, path, status, bytes, duration, remote address, and user agent.
// When a later stage rewrote the path (for example a bare URL mapped to its
// .html file) the served path is logged as "served", and requests that went
// through the bare-URL resolver carry its decision as "resolution".
//
// Responses with a 5xx status are logged at error level, 4xx at warn level
// and everything else at info level. The logger is taken from the request
// context, and is enriched with a request ID if present.
func Logger(opts ...LoggerOption) devserver.Middleware {
	cfg := loggerConfig{exclude: map[string]struct{}{}}
	for _, o := range opts {
		o(&cfg)
	}
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			start := time.Now()
			path := c.Path()
			rctx, decision := bareurl.WithDecision(c.Context())
			c.SetRequest(c.Request().WithContext(rctx))
			err := next(c)
			dur := time.Since(start)

			status := c.StatusCode()
			if status == 0 {
				status = 200
				if err != nil {
					// the app error handler writes the response after we return
					status = 500
				}
			}

			ua, remote := "", ""
			if r := c.Request(); r != nil {
				ua = r.UserAgent()
				remote = r.RemoteAddr
			}

			l := ctx.LoggerFromContext(c.Context())

			attrs := make([]any, 0, 24)
			add := func(k string, v any) {
				if _, skip := cfg.exclude[k]; !skip {
					attrs = append(attrs, k, v)
				}
			}
			add("method", c.Method())
			add("path", path)
			if served := c.Path(); served != path {
				add("served", served)
			}
			if d, ok := decision(); ok {
				add("resolution", d.String())
			}
			if rt := c.Route(); rt != "" {
				add("route", rt)
			}
			add("status", status)
			add("bytes", c.BytesWritten())
			add("duration_ms", float64(dur.Microseconds())/1000.0)
			add("remote", remote)
			add("user_agent", ua)

			// optional enrichments
			if rid, ok := RequestIDFromContext(c.Context()); ok {
				add("request_id", rid)
			}
			if err != nil {
				add("error", err.Error())
			}
			if cfg.custom != nil {
				attrs = append(attrs, cfg.custom(c)...)
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			l.Log(c.Context(), level, "request", attrs...)
			return err
		}
	}
}
