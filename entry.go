// Package devserver is a local development web server for static sites.
// It serves a site directory with clean ("bare") URLs, keeps every request
// inside the site root and reloads open browser tabs when files change.
//
// The root package re-exports the application types so middleware and
// embedding programs can depend on a single import.
package devserver

import (
	"github.com/goflash/devserver/app"
	"github.com/goflash/devserver/ctx"
)

// App is the main application/router. Implements http.Handler. Re-exported from app.App.
type App = app.App

// Handler is the function signature for route handlers and middleware (after composition).
// Re-exported from app.Handler.
type Handler = app.Handler

// Middleware transforms a Handler, enabling composition (e.g., logging, tracing).
// Re-exported from app.Middleware.
type Middleware = app.Middleware

// ErrorHandler handles errors returned from handlers. Re-exported from app.ErrorHandler.
type ErrorHandler = app.ErrorHandler

// SiteConfig configures App.Site. Re-exported from app.SiteConfig.
type SiteConfig = app.SiteConfig

// Ctx is the request context, re-exported for convenience.
type Ctx = ctx.Ctx

// New creates a new App with sensible defaults. Re-exported from app.New.
func New() App { return app.New() }
