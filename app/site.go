package app

import (
	"net/http"

	"github.com/goflash/devserver/bareurl"
)

// HandleHTTP mounts a net/http.Handler on a specific HTTP method and path.
// The handler runs inside the usual context lifecycle, so global and
// route-specific middleware apply and the status it writes is observed.
// Websocket upgrades pass through.
//
// Example:
//
//	a.HandleHTTP(http.MethodGet, "/~livereload.js", lr)
func (a *DefaultApp) HandleHTTP(method, path string, h http.Handler, mws ...Middleware) {
	a.handle(method, path, fromHTTP(h), mws...)
}

// Mount mounts a net/http.Handler for all common HTTP methods (GET, POST, PUT,
// PATCH, DELETE, OPTIONS, HEAD) under the given path.
func (a *DefaultApp) Mount(path string, h http.Handler, mws ...Middleware) {
	for _, m := range allMethods {
		a.HandleHTTP(m, path, h, mws...)
	}
}

// Fallback sets the handler for every request no route matched. It is
// composed with global and the given middleware exactly like a route, but
// Route() reports "". Once set, the NotFound handler is no longer used.
//
// Example:
//
//	a.Fallback(func(c app.Ctx) error { return c.String(http.StatusTeapot, "?") })
func (a *DefaultApp) Fallback(h Handler, mws ...Middleware) {
	a.fallback = a.adapt(a.compose(h, mws...), "")
}

// SiteConfig configures Site.
type SiteConfig struct {
	// Extensions tried for bare URLs, in order. Defaults to [".html"].
	Extensions []string
	// Prober checks existence under the root. Defaults to bareurl.Dir(root).
	Prober bareurl.Prober
	// FileSystem serves the files. Defaults to http.Dir(root).
	FileSystem http.FileSystem
	// Middleware wraps the site handler, after global middleware.
	Middleware []Middleware
}

// Site serves the directory root as the fallback for every unmatched
// request. GET and HEAD go through the bare-URL resolver and then
// http.FileServer, which handles MIME types, index.html, directory listings,
// range and conditional requests; other methods get 405.
//
// Request paths are expected to be sanitized already; register
// security.Handler with Pre.
//
// Example:
//
//	a.Pre(security.Handler)
//	a.Site("website", app.SiteConfig{Middleware: []app.Middleware{middleware.NoCache()}})
//	// GET /about serves website/about.html when website/about does not exist
func (a *DefaultApp) Site(root string, cfg SiteConfig) *bareurl.Resolver {
	prober := cfg.Prober
	if prober == nil {
		prober = bareurl.Dir(root)
	}
	fsys := cfg.FileSystem
	if fsys == nil {
		fsys = http.Dir(root)
	}
	res := bareurl.New(bareurl.Config{
		Prober:     prober,
		Extensions: cfg.Extensions,
		Logger:     a.Logger(),
	})
	files := http.FileServer(fsys)
	a.Fallback(func(c Ctx) error {
		if m := c.Method(); m != http.MethodGet && m != http.MethodHead {
			c.Header("Allow", "GET, HEAD")
			return c.String(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		}
		res.Rewrite(c.Request())
		files.ServeHTTP(c.ResponseWriter(), c.Request())
		return nil
	}, cfg.Middleware...)
	return res
}

// fromHTTP adapts a net/http.Handler to a Handler.
func fromHTTP(h http.Handler) Handler {
	return func(c Ctx) error {
		h.ServeHTTP(c.ResponseWriter(), c.Request())
		return nil
	}
}
