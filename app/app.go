package app

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/goflash/devserver/ctx"
	"github.com/julienschmidt/httprouter"
)

// Handler is the function signature for route handlers (and the output of
// composed middleware). It receives a request context and returns an error.
//
// Returning a non-nil error delegates to the App's ErrorHandler, allowing a
// single place to translate errors into HTTP responses and logs.
//
// Example:
//
//	func version(c app.Ctx) error {
//		return c.String(http.StatusOK, "devserver "+buildVersion)
//	}
type Handler func(ctx.Ctx) error

// Middleware transforms a Handler, enabling composition of cross-cutting
// concerns such as logging, tracing, cache headers or script injection.
//
// Middleware registered via Use is applied in the order added; route-specific
// middleware is applied after global middleware and before the route handler.
// A middleware can decide to short-circuit by returning without calling next.
//
// Example (logging middleware):
//
//	func Log(next app.Handler) app.Handler {
//		return func(c app.Ctx) error {
//			start := time.Now()
//			err := next(c)
//			logger := ctx.LoggerFromContext(c.Context())
//			logger.Info("handled",
//				"method", c.Method(),
//				"path", c.Path(),
//				"status", c.StatusCode(),
//				"dur", time.Since(start),
//			)
//			return err
//		}
//	}
type Middleware func(Handler) Handler

// ErrorHandler handles errors returned from handlers.
// It is called when a handler (or middleware) returns a non-nil error.
//
// Example:
//
//	func myErrorHandler(c app.Ctx, err error) {
//		logger := ctx.LoggerFromContext(c.Context())
//		logger.Error("request failed", "err", err)
//		_ = c.String(http.StatusInternalServerError, "internal error")
//	}
type ErrorHandler func(ctx.Ctx, error)

// Ctx is re-exported for package-local convenience in tests and internal APIs.
type Ctx = ctx.Ctx

// DefaultApp is the main application/router. It implements http.Handler,
// manages routing, pre-routing wrappers, middleware, the fallback handler,
// error handling and logger configuration.
//
// A sync.Pool is used for context reuse. Each request acquires a
// ctx.DefaultContext from the pool and returns it after completion.
type DefaultApp struct {
	router     *httprouter.Router // underlying router
	entry      http.Handler       // router wrapped by Pre wrappers
	pre        []func(http.Handler) http.Handler
	middleware []Middleware // global middleware
	fallback   httprouter.Handle
	pool       sync.Pool    // context pooling
	OnError    ErrorHandler // error handler
	NotFound   http.Handler // handler for 404 Not Found when no fallback is set
	MethodNA   http.Handler // handler for 405 Method Not Allowed
	logger     *slog.Logger // application logger
}

// New creates a new DefaultApp with sensible defaults and returns it as the App
// interface.
//
// Defaults include:
//   - JSON slog logger at info level to stdout
//   - 404 and 405 handlers wired to the internal router hooks
//   - MethodNotAllowed handling enabled on the router
//   - no case-insensitive path redirects
//
// Example:
//
//	func main() {
//		a := app.New()
//		a.Pre(security.Handler)
//		a.Site("website", app.SiteConfig{})
//		_ = http.ListenAndServe("127.0.0.1:3030", a)
//	}
func New() App {
	app := &DefaultApp{
		router: httprouter.New(),
	}
	app.entry = app.router
	app.pool.New = func() any { return &ctx.DefaultContext{} }

	app.router.HandleMethodNotAllowed = true
	app.router.RedirectFixedPath = false
	app.SetErrorHandler(defaultErrorHandler)
	app.SetNotFoundHandler(http.NotFoundHandler())
	app.SetMethodNotAllowedHandler(methodNotAllowedHandler())
	app.SetLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	app.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.fallback != nil {
			app.fallback(w, r, nil)
			return
		}
		app.NotFoundHandler().ServeHTTP(w, r)
	})
	app.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.MethodNotAllowedHandler().ServeHTTP(w, r)
	})

	return app
}

// SetLogger sets the application logger used by middlewares and utilities.
// If not set, Logger() falls back to slog.Default().
func (a *DefaultApp) SetLogger(l *slog.Logger) { a.logger = l }

// Logger returns the configured application logger, or slog.Default if none is set.
func (a *DefaultApp) Logger() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}

// Use registers global middleware, applied to all routes and to the fallback
// in the order added.
//
// Example:
//
//	a.Use(middleware.Recover(), middleware.Logger())
func (a *DefaultApp) Use(mw ...Middleware) {
	if len(mw) == 0 {
		return
	}
	a.middleware = append(a.middleware, mw...)
}

// Pre registers net/http wrappers that run before routing, in the order
// added. They see every request, including ones no route matches, and may
// rewrite the request URL the router will match against.
//
// Example:
//
//	a.Pre(security.Handler) // sanitize before anything looks at the path
func (a *DefaultApp) Pre(wrappers ...func(http.Handler) http.Handler) {
	if len(wrappers) == 0 {
		return
	}
	a.pre = append(a.pre, wrappers...)
	var h http.Handler = a.router
	for i := len(a.pre) - 1; i >= 0; i-- {
		h = a.pre[i](h)
	}
	a.entry = h
}

// ServeHTTP implements http.Handler by delegating to the pre-routing chain
// and the internal router.
func (a *DefaultApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.entry.ServeHTTP(w, r)
}

// Configuration setters.
func (a *DefaultApp) SetErrorHandler(h ErrorHandler)    { a.OnError = h }
func (a *DefaultApp) SetNotFoundHandler(h http.Handler) { a.NotFound = h }
func (a *DefaultApp) SetMethodNotAllowedHandler(h http.Handler) {
	a.MethodNA = h
}

// Getters mirror the setters and are useful when holding App as an interface.
func (a *DefaultApp) ErrorHandler() ErrorHandler            { return a.OnError }
func (a *DefaultApp) NotFoundHandler() http.Handler         { return a.NotFound }
func (a *DefaultApp) MethodNotAllowedHandler() http.Handler { return a.MethodNA }
