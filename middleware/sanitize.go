package middleware

import (
	"github.com/goflash/devserver"
	"github.com/goflash/devserver/bareurl"
	"github.com/goflash/devserver/ctx"
	"github.com/goflash/devserver/security"
)

// Sanitize returns middleware that removes dot segments and empty segments
// from the request path (after percent-decoding), so later stages never see
// a path that leaves the site root. The query is kept as is.
//
// Routing happens before middleware runs; to sanitize what the router
// matches, register security.Handler with App.Pre instead.
func Sanitize() devserver.Middleware {
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			r := c.Request()
			before := r.URL.Path
			if security.SanitizeRequest(r) {
				ctx.LoggerFromContext(c.Context()).Debug("path sanitized", "from", before, "to", r.URL.Path)
			}
			return next(c)
		}
	}
}

// BareURL returns middleware that maps an extension-less request path onto
// its .html file using res. The path must already be sanitized.
//
// Example:
//
//	res := bareurl.New(bareurl.Config{Prober: bareurl.Dir("website")})
//	files := http.FileServer(http.Dir("website"))
//	a.Fallback(func(c devserver.Ctx) error {
//		files.ServeHTTP(c.ResponseWriter(), c.Request())
//		return nil
//	}, middleware.Sanitize(), middleware.BareURL(res))
func BareURL(res *bareurl.Resolver) devserver.Middleware {
	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			res.Rewrite(c.Request())
			return next(c)
		}
	}
}
