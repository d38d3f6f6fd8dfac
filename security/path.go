package security

import (
	"net/http"
	"net/url"
	"strings"
)

// SanitizePath removes "." and ".." segments from an escaped request path and
// returns the escaped result. Percent escapes are decoded before segments are
// inspected, so "/..%2f..%2fsecret" and "/../../secret" both become "/secret".
//
// The result always starts with '/'. A trailing slash is kept (collapsed to a
// single one) when the input ended with one or more slashes. SanitizePath is
// idempotent.
//
// Examples:
//
//	SanitizePath("/../../secret")  // "/secret"
//	SanitizePath("/.././path")     // "/path"
//	SanitizePath("/path//")        // "/path/"
//	SanitizePath("/a/b/../c")      // "/a/c"
func SanitizePath(escaped string) string {
	return (&url.URL{Path: cleanSegments(decode(escaped))}).EscapedPath()
}

// Sanitize rewrites u in place so that its path cannot ascend above the root.
// The query string, fragment and authority are left untouched. It reports
// whether the URL changed.
//
// If the rewritten URL fails to re-parse, u is left as it was.
func Sanitize(u *url.URL) bool {
	if u == nil {
		return false
	}
	nu, err := WithPath(u, cleanSegments(decode(u.EscapedPath())))
	if err != nil || nu.String() == u.String() {
		return false
	}
	*u = *nu
	return true
}

// SanitizeRequest sanitizes r.URL and keeps r.RequestURI in step with it.
func SanitizeRequest(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	if !Sanitize(r.URL) {
		return false
	}
	if r.RequestURI != "" {
		r.RequestURI = r.URL.RequestURI()
	}
	return true
}

// Handler returns net/http middleware that sanitizes every request path before
// calling next.
//
// Example:
//
//	h := security.Handler(http.FileServer(http.Dir("website")))
//	_ = http.ListenAndServe(":3030", h)
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SanitizeRequest(r)
		next.ServeHTTP(w, r)
	})
}

// decode percent-decodes p. Undecodable input is returned as is.
func decode(p string) string {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}

// cleanSegments resolves a decoded path against a virtual root.
func cleanSegments(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	trailing := strings.HasSuffix(p, "/")

	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return "/"
	}

	var b strings.Builder
	b.Grow(len(p) + 1)
	for _, s := range out {
		b.WriteByte('/')
		b.WriteString(s)
	}
	if trailing {
		b.WriteByte('/')
	}
	return b.String()
}
