package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/mettalint/internal/host"
)

// DefaultDebounce is the quiet period before a batch of changes is dispatched.
const DefaultDebounce = 200 * time.Millisecond

// Target receives document lifecycle events derived from file system changes.
type Target interface {
	Save(doc host.Document)
	Close(doc host.Document)
}

// Matcher decides which files and directories are part of the workspace.
type Matcher interface {
	Matches(path string) bool
	SkipDir(path string) bool
}

// Options configures a Watcher.
type Options struct {
	Roots      []string
	LanguageID string
	Debounce   time.Duration
	Logger     hclog.Logger
}

// Watcher turns file system events under the workspace roots into Save and
// Close calls. A changed file that still exists is saved, a vanished one closed.
type Watcher struct {
	fs         *fsnotify.Watcher
	matcher    Matcher
	target     Target
	languageID string
	debounce   time.Duration
	logger     hclog.Logger

	changes map[string]struct{}
}

// New creates a Watcher and registers every non-excluded directory under the roots.
func New(matcher Matcher, target Target, opts Options) (*Watcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w := &Watcher{
		fs:         fsw,
		matcher:    matcher,
		target:     target,
		languageID: opts.LanguageID,
		debounce:   debounce,
		logger:     logger,
		changes:    make(map[string]struct{}),
	}
	for _, root := range opts.Roots {
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching %q: %w", root, err)
		}
	}
	return w, nil
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	return w.fs.WatchList()
}

// Run dispatches debounced changes until ctx is cancelled. The watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.record(event) {
				arm()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			w.flush()
		}
	}
}

// record notes a relevant change and reports whether one was recorded.
func (w *Watcher) record(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.matcher.SkipDir(event.Name) {
				return false
			}
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return w.collectFiles(event.Name)
		}
	}
	if !w.matcher.Matches(event.Name) {
		return false
	}
	w.logger.Trace("file changed", "path", event.Name, "op", event.Op.String())
	w.changes[event.Name] = struct{}{}
	return true
}

// collectFiles records files that appeared in a directory before its watch was added.
func (w *Watcher) collectFiles(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.matcher.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matcher.Matches(path) {
			w.changes[path] = struct{}{}
			found = true
		}
		return nil
	})
	return found
}

func (w *Watcher) flush() {
	for path := range w.changes {
		doc := host.DocumentFromPath(path, w.languageID)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			w.logger.Debug("dispatching save", "path", path)
			w.target.Save(doc)
		} else {
			w.logger.Debug("dispatching close", "path", path)
			w.target.Close(doc)
		}
	}
	clear(w.changes)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.matcher.SkipDir(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}
