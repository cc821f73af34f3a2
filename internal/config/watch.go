package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounceDelay coalesces bursts of filesystem events (editors that
// write-then-rename, git checkouts touching many files at once) into a
// single IncrementalLoad.
const reloadDebounceDelay = 200 * time.Millisecond

// Watch starts an fsnotify-driven hot reload loop over baseDir and blocks
// until ctx is canceled. Every add/write/remove/rename of a file with an
// extension under a tracked directory triggers a debounced
// IncrementalLoad(pattern); names without an extension are ignored. New directories
// created after startup are picked up and watched automatically.
func (r *Registry) Watch(ctx context.Context, pattern string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	var watchedDirs sync.Map
	if err := filepath.Walk(r.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			addWatch(watcher, &watchedDirs, path, r.logf)
		}
		return nil
	}); err != nil {
		return err
	}

	debouncer := newReloadDebouncer(func() {
		if err := r.IncrementalLoad(pattern); err != nil {
			r.logf("config: hot reload failed: %v", err)
		}
	})
	defer debouncer.stop()

	for {
		select {
		case <-ctx.Done():
			debouncer.stop()
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			r.handleWatchEvent(watcher, &watchedDirs, event, debouncer)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logf("config: watcher error: %v", err)
		}
	}
}

func (r *Registry) handleWatchEvent(watcher *fsnotify.Watcher, watchedDirs *sync.Map, event fsnotify.Event, d *reloadDebouncer) {
	if event.Name == "" {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			addWatch(watcher, watchedDirs, event.Name, r.logf)
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if _, ok := watchedDirs.Load(event.Name); ok {
			watchedDirs.Delete(event.Name)
			_ = watcher.Remove(event.Name)
		}
	}

	ext := filepath.Ext(event.Name)
	if ext == "" {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		d.schedule()
	}
}

func addWatch(watcher *fsnotify.Watcher, watchedDirs *sync.Map, dir string, logf func(string, ...any)) {
	if _, exists := watchedDirs.LoadOrStore(dir, struct{}{}); exists {
		return
	}
	if err := watcher.Add(dir); err != nil {
		watchedDirs.Delete(dir)
		logf("config: failed to watch directory %s: %v", dir, err)
	}
}

type reloadDebouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	flushFn func()
}

func newReloadDebouncer(flush func()) *reloadDebouncer {
	return &reloadDebouncer{flushFn: flush}
}

func (d *reloadDebouncer) schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(reloadDebounceDelay, d.flush)
}

func (d *reloadDebouncer) flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = false
	d.mu.Unlock()
	if pending {
		d.flushFn()
	}
}

func (d *reloadDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
