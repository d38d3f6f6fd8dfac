package app

import (
	"log/slog"
	"net/http"

	"github.com/goflash/devserver/bareurl"
)

// App defines the public surface of the router/app, suitable for mocking.
// Implemented by *DefaultApp.
type App interface {
	// Middleware management
	Use(mw ...Middleware)
	Pre(wrappers ...func(http.Handler) http.Handler)

	// Route registration
	GET(path string, h Handler, mws ...Middleware)
	HEAD(path string, h Handler, mws ...Middleware)
	ANY(path string, h Handler, mws ...Middleware)
	Handle(method, path string, h Handler, mws ...Middleware)

	// HTTP integration and mounting
	ServeHTTP(w http.ResponseWriter, r *http.Request)
	HandleHTTP(method, path string, h http.Handler, mws ...Middleware)
	Mount(path string, h http.Handler, mws ...Middleware)

	// Unmatched requests
	Fallback(h Handler, mws ...Middleware)
	Site(root string, cfg SiteConfig) *bareurl.Resolver

	// Logging
	SetLogger(l *slog.Logger)
	Logger() *slog.Logger

	// Error/NotFound/MethodNotAllowed handlers
	SetErrorHandler(h ErrorHandler)
	SetNotFoundHandler(h http.Handler)
	SetMethodNotAllowedHandler(h http.Handler)
}
