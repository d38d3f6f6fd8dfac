package security

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURI is returned by WithPath when the rebuilt path and query do
// not form a valid request URI.
var ErrInvalidURI = errors.New("security: rewritten uri is invalid")

// WithPath returns a copy of u whose path is p (decoded form) and whose query
// is the original one. Scheme, authority, user info and fragment are kept.
//
// The new path and query are re-parsed as a request URI; when that fails the
// error wraps ErrInvalidURI and callers are expected to keep using u.
//
// Example:
//
//	u, _ := url.Parse("/about?lang=en")
//	nu, err := security.WithPath(u, "/about.html")
//	// nu.String() == "/about.html?lang=en"
func WithPath(u *url.URL, p string) (*url.URL, error) {
	if u == nil {
		return nil, ErrInvalidURI
	}
	if !strings.HasPrefix(p, "/") {
		return nil, ErrInvalidURI
	}

	pq := (&url.URL{Path: p}).EscapedPath()
	if u.ForceQuery || u.RawQuery != "" {
		pq += "?" + u.RawQuery
	}
	parsed, err := url.ParseRequestURI(pq)
	if err != nil {
		return nil, errors.Join(ErrInvalidURI, err)
	}

	nu := *u
	nu.Path = parsed.Path
	nu.RawPath = parsed.RawPath
	nu.RawQuery = parsed.RawQuery
	nu.ForceQuery = parsed.ForceQuery
	return &nu, nil
}
