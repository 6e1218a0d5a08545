// Package watch re-runs qualification when Java files change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/thisifier/pkg/config"
	"github.com/panbanda/thisifier/pkg/parser"
)

// DefaultDebounce is used when the configured debounce is not positive.
const DefaultDebounce = 300 * time.Millisecond

// Callback receives files that have been quiet for the debounce period, in
// sorted order. Callbacks never overlap, so a file is never processed by two
// goroutines at once.
type Callback func(ctx context.Context, paths []string)

// Watcher monitors a directory tree for Java file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	root      string
	out       io.Writer
	logger    *slog.Logger
	callback  Callback
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a new file watcher rooted at root.
func NewWatcher(root string, cfg *config.Config, debounce time.Duration, out io.Writer, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		root:      root,
		out:       out,
		logger:    logger,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function to call with changed files.
func (w *Watcher) SetCallback(cb Callback) {
	w.callback = cb
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if !d.IsDir() {
			return nil
		}
		for _, excluded := range w.config.Exclude.Dirs {
			if d.Name() == excluded && path != dir {
				return filepath.SkipDir
			}
		}
		return w.fsWatcher.Add(path)
	})
}

// Start watches until ctx ends. It returns ctx.Err() on cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching for changes in %s (%d directories)...\n", w.root, len(w.WatchedDirs()))
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")
	fmt.Fprintln(w.out)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.processDebounced(ctx)
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// handleEvent records a change to a Java file and follows new directories.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	path := event.Name
	if w.config.ShouldExclude(path) {
		return
	}

	if event.Has(fsnotify.Create) && parser.DetectLanguage(path) == parser.LangUnknown {
		if err := w.addTree(path); err != nil {
			w.logger.Debug("watch add failed", "path", path, "error", err)
		}
		return
	}
	if parser.DetectLanguage(path) != parser.LangJava {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced flushes pending changes after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(max(w.debounce/3, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ready := w.takeReady(time.Now()); len(ready) > 0 {
				w.run(ctx, ready)
			}
		}
	}
}

// takeReady removes and returns files that have been stable for the
// debounce period.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) run(ctx context.Context, paths []string) {
	for _, path := range paths {
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		color.New(color.FgYellow).Fprintf(w.out, "File changed: %s\n", rel)
	}
	if w.callback != nil {
		w.callback(ctx, paths)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
