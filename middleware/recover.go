package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/goflash/devserver"
	"github.com/goflash/devserver/ctx"
)

// RecoverConfig configures the panic recovery middleware.
//
// EnableStack controls whether stack traces are logged.
// OnPanic is called when a panic occurs, useful for custom logging or alerting.
// ErrorResponse allows customizing the error response sent to clients.
// Stack traces are never written to the client.
type RecoverConfig struct {
	EnableStack   bool                           // whether to log stack traces
	OnPanic       func(devserver.Ctx, any)       // optional callback when panic occurs
	ErrorResponse func(devserver.Ctx, any) error // optional custom error response
}

// Recover returns middleware that turns a panic in a later handler into a
// logged error and a 500 response (unless the response already started).
//
// Example:
//
//	a.Use(middleware.Recover(middleware.RecoverConfig{EnableStack: true}))
func Recover(cfgs ...RecoverConfig) devserver.Middleware {
	cfg := RecoverConfig{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}

	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				attrs := []any{"panic", r, "method", c.Method(), "path", c.Path()}
				if cfg.EnableStack {
					attrs = append(attrs, "stack", string(debug.Stack()))
				}
				ctx.LoggerFromContext(c.Context()).Error("panic recovered", attrs...)

				if cfg.OnPanic != nil {
					func() {
						defer func() { _ = recover() }() // protect against callback panics
						cfg.OnPanic(c, r)
					}()
				}

				if cfg.ErrorResponse != nil {
					err = cfg.ErrorResponse(c, r)
					return
				}
				if c.WroteHeader() {
					return
				}
				c.Header("X-Content-Type-Options", "nosniff")
				_ = c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}()
			return next(c)
		}
	}
}
