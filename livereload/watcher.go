package livereload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before reporting it.
const DefaultDebounce = 100 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Root is the directory watched recursively. Required.
	Root string
	// Ignore lists name globs matched against every path element below Root.
	// Defaults to DefaultIgnore; use an empty non-nil slice to ignore nothing.
	Ignore []string
	// Debounce is the quiet period that ends a changeset. Defaults to
	// DefaultDebounce.
	Debounce time.Duration
	// URLPrefix is prepended to root-relative paths. Defaults to "/".
	URLPrefix string
	// Action picks the browser action for a URL path. Defaults to DefaultAction.
	Action func(urlPath string) Action
	// OnChange receives every settled changeset. Required.
	OnChange func(Changes)
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher turns filesystem events under a root directory into Changes.
// Directories created while running are watched as well.
type Watcher struct {
	cfg     WatcherConfig
	fsw     *fsnotify.Watcher
	pending map[string]string // absolute path -> kind
}

// NewWatcher validates cfg and starts watching cfg.Root. Events are only
// processed once Run is called.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("livereload: watcher root is required")
	}
	if cfg.OnChange == nil {
		return nil, errors.New("livereload: watcher OnChange is required")
	}
	if cfg.Ignore == nil {
		cfg.Ignore = DefaultIgnore
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/"
	}
	if cfg.Action == nil {
		cfg.Action = DefaultAction
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("livereload: resolve root: %w", err)
	}
	cfg.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("livereload: create watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, fsw: fsw, pending: map[string]string{}}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled or the watcher fails, and
// then releases the underlying watches. A cancelled context is not an error.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var settle <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("livereload: watcher closed")
			}
			if !w.record(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.cfg.Debounce)
			}
			settle = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("livereload: watcher closed")
			}
			w.cfg.Logger.Warn("file watcher error", "err", err)
		case <-settle:
			settle = nil
			w.flush()
		}
	}
}

// record folds one event into the pending changeset and reports whether it
// was kept.
func (w *Watcher) record(ev fsnotify.Event) bool {
	rel, err := filepath.Rel(w.cfg.Root, ev.Name)
	if err != nil || rel == "." || ignored(w.cfg.Ignore, rel) {
		return false
	}

	var kind string
	switch {
	case ev.Has(fsnotify.Create):
		kind = KindCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.cfg.Logger.Warn("watch new directory", "dir", ev.Name, "err", err)
			}
		}
	case ev.Has(fsnotify.Write):
		kind = KindModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = KindDelete
	default:
		return false
	}

	switch prev := w.pending[ev.Name]; {
	case prev == KindCreate && kind == KindModify:
		// still a new file
	case prev == KindDelete && kind == KindCreate:
		// replaced by an editor's atomic save
		w.pending[ev.Name] = KindModify
	default:
		w.pending[ev.Name] = kind
	}
	return true
}

// flush reports the pending changeset in path order.
func (w *Watcher) flush() {
	if len(w.pending) == 0 {
		return
	}
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	changes := make(Changes, 0, len(names))
	for _, name := range names {
		url, ok := FileToURL(name, w.cfg.Root, w.cfg.URLPrefix)
		if !ok {
			continue
		}
		c := Change{Kind: w.pending[name], Path: url, Action: w.cfg.Action(url)}
		if c.Kind != KindDelete {
			if info, err := os.Stat(name); err == nil {
				c.Modified = info.ModTime()
			}
		}
		changes = append(changes, c)
	}
	clear(w.pending)

	w.cfg.Logger.Debug("files changed", "count", len(changes))
	if len(changes) > 0 {
		w.cfg.OnChange(changes)
	}
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("livereload: watch %s: %w", p, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.cfg.Root {
			if rel, err := filepath.Rel(w.cfg.Root, p); err == nil && ignored(w.cfg.Ignore, rel) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("livereload: watch %s: %w", p, err)
		}
		return nil
	})
}
