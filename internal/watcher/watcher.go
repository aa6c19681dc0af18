// Package watcher indexes files dropped into watched directories, using
// fsnotify with per-file debouncing.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Ingestor receives watcher events. RegisterPath is called for created and
// modified files, RemovePath when a file disappears.
type Ingestor interface {
	RegisterPath(ctx context.Context, path string) error
	RemovePath(ctx context.Context, path string)
}

// Watcher watches drop directories and feeds matching files to an Ingestor.
// Rapid successive writes to the same file collapse into one registration.
type Watcher struct {
	ingestor   Ingestor
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	roots   []string
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	started bool

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over roots. extensions filters which files are
// indexed (empty means all); recursive includes subdirectories.
func New(ingestor Ingestor, roots, extensions []string, recursive bool, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		ingestor:   ingestor,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		logger:     logger,
		roots:      roots,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
}

// Start begins watching. It returns once watches are established; event
// handling runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.started = true
	for _, root := range w.roots {
		if err := w.watchTreeLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	w.logger.Info("watching directories", zap.Strings("roots", w.Directories()))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.enterDirectory(ctx, path)
			return
		}
		if w.wanted(path) {
			w.scheduleIndex(ctx, path)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancelIndex(path)
		if w.wanted(path) {
			w.ingestor.RemovePath(ctx, path)
		}
	}
}

// enterDirectory watches a directory that appeared inside a root and indexes
// what it already contains.
func (w *Watcher) enterDirectory(ctx context.Context, dir string) {
	w.mu.Lock()
	if w.fsw == nil || !w.recursive {
		w.mu.Unlock()
		return
	}
	if err := w.watchTreeLocked(dir); err != nil {
		w.logger.Debug("failed to watch new directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Unlock()
	w.indexTree(ctx, dir)
}

// scheduleIndex (re)arms the debounce timer for path.
func (w *Watcher) scheduleIndex(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if err := w.ingestor.RegisterPath(ctx, path); err != nil {
			w.logger.Warn("failed to index watched file", zap.String("path", path), zap.Error(err))
		}
	})
}

func (w *Watcher) cancelIndex(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) wanted(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// watchTreeLocked adds root (and subdirectories when recursive) to the
// fsnotify watcher, creating the root if it does not exist.
func (w *Watcher) watchTreeLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !w.recursive {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// indexTree registers every matching file under root.
func (w *Watcher) indexTree(ctx context.Context, root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.wanted(path) {
			if err := w.ingestor.RegisterPath(ctx, path); err != nil {
				w.logger.Warn("failed to index existing file", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
}

// SyncExisting indexes files already present in the watched roots. Call after
// Start to pick up files that predate the watcher.
func (w *Watcher) SyncExisting(ctx context.Context) {
	for _, root := range w.Directories() {
		w.indexTree(ctx, root)
	}
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops watching and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
