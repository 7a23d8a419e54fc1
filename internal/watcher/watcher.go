// Package watcher provides drop-folder watching with fsnotify and debouncing.
// Files dropped into a watched directory are handed to a callback once writes
// have settled; the callback is expected to submit the file for processing.
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

const defaultDebounce = 500 * time.Millisecond

// defaultExtensions are the document types accepted from drop folders.
var defaultExtensions = []string{".pdf", ".docx", ".txt", ".md"}

// Watcher watches flat drop directories and invokes onDrop for settled files.
// A file removed before its debounce fires is never reported. Removing a file
// after it was reported has no effect; processed documents are not tied to the
// dropped file's lifetime.
type Watcher struct {
	onDrop     func(path string)
	extensions []string
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	dirs     []string
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the write-settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithExtensions replaces the accepted file extensions (empty = all).
func WithExtensions(exts []string) Option {
	return func(w *Watcher) { w.extensions = exts }
}

// New creates a watcher over the given drop directories. onDrop is called
// with the absolute path of each settled file.
func New(dirs []string, onDrop func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		onDrop:     onDrop,
		extensions: defaultExtensions,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		dirs:       dirs,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Missing drop directories are created. Runs until
// ctx is cancelled or Stop is called.
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
	w.watcher = fsw
	w.started = true
	for _, dir := range w.dirs {
		if err := w.addDirLocked(dir); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.logger.Info("drop-folder watcher started",
		zap.Strings("dirs", w.dirs), zap.Strings("extensions", w.extensions))
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		if w.matchExtension(path) {
			w.logger.Debug("file event", zap.String("op", ev.Op.String()), zap.String("path", path))
			w.scheduleDrop(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
	}
}

// scheduleDrop (re)arms the debounce timer for path. Each write resets the
// timer so partially copied files are only reported once the copy settles.
func (w *Watcher) scheduleDrop(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.logger.Info("drop-folder file settled", zap.String("path", path))
		if w.onDrop != nil {
			w.onDrop(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirLocked(dir string) error {
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return w.watcher.Add(dir)
}

// AddDirectory starts watching another drop directory.
func (w *Watcher) AddDirectory(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		w.dirs = append(w.dirs, abs)
		return nil
	}
	for _, d := range w.dirs {
		if filepath.Clean(d) == filepath.Clean(abs) {
			return nil
		}
	}
	if err := w.addDirLocked(abs); err != nil {
		return err
	}
	w.dirs = append(w.dirs, abs)
	return nil
}

// RemoveDirectory stops watching dir. Already-submitted documents are kept.
func (w *Watcher) RemoveDirectory(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, d := range w.dirs {
		if filepath.Clean(d) == abs {
			w.dirs = append(w.dirs[:i], w.dirs[i+1:]...)
			if w.watcher != nil {
				_ = w.watcher.Remove(abs)
			}
			return nil
		}
	}
	return nil
}

// Directories returns a copy of the watched drop directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dirs...)
}

// SyncExisting reports files already sitting in the drop directories. Call
// after Start to pick up documents dropped while the service was down.
func (w *Watcher) SyncExisting() {
	w.mu.Lock()
	dirs := append([]string(nil), w.dirs...)
	w.mu.Unlock()
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if w.matchExtension(path) {
				w.logger.Info("drop-folder existing file", zap.String("path", path))
				if w.onDrop != nil {
					w.onDrop(path)
				}
			}
			return nil
		})
	}
}

// Stop stops watching and cancels any pending debounce timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
