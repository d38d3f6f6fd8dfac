package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/goflash/devserver"
)

// corsMethods are the only methods a static site answers.
const corsMethods = "GET, HEAD, OPTIONS"

// CORSConfig holds configuration for the CORS middleware.
//
// Example:
//
//	// let an app on another local port fetch the site's JSON and fonts
//	cfg := middleware.CORSConfig{
//		Origins: []string{"http://localhost:5173"},
//		MaxAge:  600,
//	}
type CORSConfig struct {
	// Origins that may read responses cross-origin. "*" allows any origin.
	// If empty, no Access-Control-Allow-Origin header is set.
	Origins []string
	// Headers specifies allowed request headers for cross-origin requests.
	// Empty allows whatever the preflight asks for.
	Headers []string
	// Expose specifies response headers that browsers can access via JavaScript.
	Expose []string
	// MaxAge sets the duration (in seconds) that browsers can cache preflight responses.
	MaxAge int
}

// CORS returns middleware that lets pages from other origins read the site.
// Allowed origins get Access-Control-Allow-Origin on every response; OPTIONS
// requests are answered directly with 204 and never reach the file server.
//
// Preflight behavior:
//   - the requested method must be GET or HEAD, otherwise 403
//   - requested headers are checked against Headers when it is set
//   - Access-Control-Allow-Methods, -Headers and -Max-Age are set
func CORS(cfg CORSConfig) devserver.Middleware {
	allowed := make(map[string]struct{}, len(cfg.Origins))
	wildcard := false
	for _, o := range uniqOrDefault(cfg.Origins, nil) {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = struct{}{}
	}
	allowedHeaders := map[string]struct{}{}
	for _, h := range cfg.Headers {
		allowedHeaders[strings.ToLower(h)] = struct{}{}
	}
	allowedHeadersStr := strings.Join(cfg.Headers, ", ")
	exposeHeaders := strings.Join(cfg.Expose, ", ")

	return func(next devserver.Handler) devserver.Handler {
		return func(c devserver.Ctx) error {
			r := c.Request()
			origin := r.Header.Get("Origin")

			var allowOrigin string
			switch {
			case wildcard:
				allowOrigin = "*"
			case origin != "" && origin != "null":
				c.ResponseWriter().Header().Add("Vary", "Origin")
				if _, ok := allowed[origin]; ok {
					allowOrigin = origin
				}
			}
			if allowOrigin != "" {
				c.Header("Access-Control-Allow-Origin", allowOrigin)
				if exposeHeaders != "" {
					c.Header("Access-Control-Expose-Headers", exposeHeaders)
				}
			}

			if c.Method() != http.MethodOptions {
				return next(c)
			}

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if reqMethod == "" || allowOrigin == "" {
				c.Header("Allow", corsMethods)
				return c.String(http.StatusNoContent, "")
			}
			if reqMethod != http.MethodGet && reqMethod != http.MethodHead {
				return c.String(http.StatusForbidden, "Method not allowed")
			}

			reqHeaders := r.Header.Get("Access-Control-Request-Headers")
			allowHeaders := allowedHeadersStr
			if len(allowedHeaders) == 0 {
				allowHeaders = reqHeaders
			} else if reqHeaders != "" {
				for _, h := range strings.Split(reqHeaders, ",") {
					if _, ok := allowedHeaders[strings.ToLower(strings.TrimSpace(h))]; !ok {
						return c.String(http.StatusForbidden, "Header not allowed")
					}
				}
			}

			c.Header("Access-Control-Allow-Methods", corsMethods)
			if allowHeaders != "" {
				c.Header("Access-Control-Allow-Headers", allowHeaders)
			}
			if cfg.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			return c.String(http.StatusNoContent, "")
		}
	}
}

// uniqOrDefault returns the input slice with duplicates removed, or the default
// if input is empty.
//
// Example:
//
//	uniqOrDefault([]string{"GET", "POST", "GET"}, []string{"GET", "POST"})
//	// returns []string{"GET", "POST"}
func uniqOrDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	m := map[string]struct{}{}
	res := make([]string, 0, len(v))
	for _, s := range v {
		if _, ok := m[s]; !ok {
			m[s] = struct{}{}
			res = append(res, s)
		}
	}
	return res
}
