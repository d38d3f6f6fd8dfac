package bareurl

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Prober reports whether a root-relative, slash-separated name exists under
// the directory it was built for. A file or a directory both count.
//
// Implementations return (false, nil) for a missing name and a non-nil error
// for anything else that prevented the check (e.g. permission denied). The
// Resolver treats every error as "does not exist".
type Prober interface {
	Exists(name string) (bool, error)
}

// Dir probes the operating system filesystem under a root directory, like
// http.Dir does for serving.
//
// An empty Dir is treated as ".".
type Dir string

// Exists stats root/name. Only the stat call is made; no file is opened.
func (d Dir) Exists(name string) (bool, error) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		return false, errors.New("bareurl: invalid character in file path")
	}
	root := string(d)
	if root == "" {
		root = "."
	}
	full := filepath.Join(root, filepath.FromSlash(path.Clean("/"+name)))
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FS probes an fs.FS. Tests use it with testing/fstest.MapFS to avoid
// touching the real filesystem.
type FS struct {
	FS fs.FS
}

// Exists stats name in the wrapped filesystem.
func (f FS) Exists(name string) (bool, error) {
	name = strings.Trim(path.Clean("/"+name), "/")
	if name == "" {
		name = "."
	}
	if _, err := fs.Stat(f.FS, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(name string) (bool, error)

// Exists calls f(name).
func (f ProberFunc) Exists(name string) (bool, error) { return f(name) }
