package app

import (
	"net/http"

	"github.com/goflash/devserver/ctx"
	"github.com/julienschmidt/httprouter"
)

var allMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodOptions, http.MethodHead,
}

// GET registers a handler for HTTP GET requests on the given path.
// Optionally accepts route-specific middleware.
//
// Example:
//
//	a.GET("/~livereload.js", Script, middleware.NoCache())
//	// order: global -> NoCache -> Script
func (a *DefaultApp) GET(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodGet, path, h, mws...)
}

// HEAD registers a handler for HTTP HEAD requests on the given path.
// Mirrors GET semantics but does not write a response body.
func (a *DefaultApp) HEAD(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodHead, path, h, mws...)
}

// ANY registers a handler for all common HTTP methods (GET, POST, PUT, PATCH,
// DELETE, OPTIONS, HEAD) on the given path.
func (a *DefaultApp) ANY(path string, h Handler, mws ...Middleware) {
	for _, m := range allMethods {
		a.handle(m, path, h, mws...)
	}
}

// Handle registers a handler for an arbitrary HTTP method on the given path.
//
// Example:
//
//	a.Handle("PURGE", "/~cache", Purge)
func (a *DefaultApp) Handle(method, path string, h Handler, mws ...Middleware) {
	a.handle(method, path, h, mws...)
}

// handle registers the composed handler with the router.
//
// Middleware composition order:
//   - Route-specific middleware wraps the handler (right-to-left)
//   - Then global middleware wraps that (right-to-left)
//
// The resulting call order at runtime is: global (left-to-right) -> route (left-to-right) -> handler.
func (a *DefaultApp) handle(method, path string, h Handler, mws ...Middleware) {
	a.router.Handle(method, cleanPath(path), a.adapt(a.compose(h, mws...), path))
}

// compose builds final := Global...(Route...(h)).
func (a *DefaultApp) compose(h Handler, mws ...Middleware) Handler {
	final := h
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	for i := len(a.middleware) - 1; i >= 0; i-- {
		final = a.middleware[i](final)
	}
	return final
}

// adapt converts a composed Handler to the httprouter signature and manages
// the pooled context lifecycle:
//   - Acquire a *ctx.DefaultContext from the pool
//   - Reset it with the incoming request/params and the route pattern
//   - Call the composed handler
//   - On error, invoke the configured ErrorHandler
//   - Finish() and return the context to the pool
func (a *DefaultApp) adapt(final Handler, pattern string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject app logger into request context for structured logging.
		r = r.WithContext(ctx.ContextWithLogger(r.Context(), a.Logger()))
		concrete := a.pool.Get().(*ctx.DefaultContext)
		concrete.Reset(w, r, ps, pattern)
		if err := final(concrete); err != nil {
			a.ErrorHandler()(concrete, err)
		}
		concrete.Finish()
		a.pool.Put(concrete)
	}
}
