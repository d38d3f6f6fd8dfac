package livereload

import (
	"path/filepath"
	"strings"
)

// DefaultIgnore contains name globs for files that usually should not
// trigger a reload: hidden and temporary files, object files, logs and
// binaries.
var DefaultIgnore = []string{
	// hidden and temporary files
	".*", "~*", "*~", "*.swp", "*.tmp",
	// object files
	"*.[ao]", "*.so", "*.obj",
	// log files
	"*.log",
	// windows binary files
	"*.exe", "*.dll",
}

// ignored reports whether any slash-separated element of rel matches one
// of the globs. Malformed globs never match.
func ignored(globs []string, rel string) bool {
	for _, name := range strings.Split(filepath.ToSlash(rel), "/") {
		if name == "" || name == "." {
			continue
		}
		for _, g := range globs {
			if ok, err := filepath.Match(g, name); err == nil && ok {
				return true
			}
		}
	}
	return false
}
