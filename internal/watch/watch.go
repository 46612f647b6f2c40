// Package watch ingests images as they appear under the source tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler receives settled candidate paths in path order.
type Handler func(ctx context.Context, paths []string) error

// Options parameterizes a Watcher.
type Options struct {
	// Accept filters file names; nil accepts everything.
	Accept func(name string) bool
	// Settle is how long a file must stay unchanged before it is handed over.
	Settle time.Duration
	// Interval is how often pending files are checked.
	Interval time.Duration
}

// Watcher follows a directory tree with fsnotify and batches quiet files.
type Watcher struct {
	root    string
	opts    Options
	log     *zap.Logger
	fs      *fsnotify.Watcher
	pending *debouncer
}

// New starts watching root and every directory below it.
func New(root string, opts Options, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Accept == nil {
		opts.Accept = func(string) bool { return true }
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{root: root, opts: opts, log: log, fs: fsw, pending: newDebouncer(opts.Settle)}
	if err := w.addTree(root, false); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers settled files to handle until ctx ends. Handler errors are logged
// and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.fs.Close()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", zap.Error(err))
		case now := <-ticker.C:
			ready := w.pending.due(now)
			if len(ready) == 0 {
				continue
			}
			w.log.Info("new files settled", zap.Int("count", len(ready)))
			if err := handle(ctx, ready); err != nil {
				w.log.Error("ingest new files", zap.Error(err))
			}
		}
	}
}

// Close stops watching without waiting for Run.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := event.Name
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.pending.drop(name)
		return
	case !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write):
		return
	}

	info, err := os.Stat(name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(name, true); err != nil {
				w.log.Warn("watch new directory", zap.String("path", name), zap.Error(err))
			}
		}
		return
	}
	w.offer(name)
}

func (w *Watcher) offer(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !w.opts.Accept(base) {
		return
	}
	w.pending.touch(path, time.Now())
}

// addTree watches dir and its subdirectories. When enqueue is set, files already
// present are offered too, since they may have landed before the watch existed.
func (w *Watcher) addTree(dir string, enqueue bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.fs.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if enqueue {
			w.offer(path)
		}
		return nil
	})
}

// debouncer tracks the last change per path.
type debouncer struct {
	mu     sync.Mutex
	settle time.Duration
	seen   map[string]time.Time
}

func newDebouncer(settle time.Duration) *debouncer {
	return &debouncer{settle: settle, seen: make(map[string]time.Time)}
}

func (d *debouncer) touch(path string, at time.Time) {
	d.mu.Lock()
	d.seen[path] = at
	d.mu.Unlock()
}

func (d *debouncer) drop(path string) {
	d.mu.Lock()
	delete(d.seen, path)
	d.mu.Unlock()
}

// due removes and returns the paths quiet for at least the settle period.
func (d *debouncer) due(now time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for path, at := range d.seen {
		if now.Sub(at) >= d.settle {
			out = append(out, path)
			delete(d.seen, path)
		}
	}
	sort.Strings(out)
	return out
}
