package livereload

import (
	"path"
	"path/filepath"
	"strings"
)

// FileToURL converts filename in basedir to a URL path under urlprefix.
// It reports false when filename is not inside basedir.
//
//	FileToURL("website/css/site.css", "website", "/") // "/css/site.css", true
func FileToURL(filename, basedir, urlprefix string) (url string, ok bool) {
	rel, err := filepath.Rel(basedir, filename)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return path.Join("/", urlprefix, rel), true
}

// DefaultAction injects stylesheets in place and reloads for everything
// else.
func DefaultAction(urlPath string) Action {
	if strings.EqualFold(path.Ext(urlPath), ".css") {
		return InjectStyle
	}
	return Reload
}
