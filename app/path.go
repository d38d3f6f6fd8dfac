package app

import (
	"path"
	"strings"
)

// cleanPath normalizes a URL path for route registration.
// It ensures the path starts with '/' and applies path.Clean to collapse
// duplicates (e.g., "/api//v1/" -> "/api/v1").
//
// Special cases:
//   - Empty input returns "/"
//   - The result never ends with a trailing slash unless it is the root "/"
//
// Examples:
//
//	cleanPath("")          // "/"
//	cleanPath("users")     // "/users"
//	cleanPath("/api//v1/") // "/api/v1"
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
