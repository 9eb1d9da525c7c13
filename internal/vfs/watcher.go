package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher feeds OS filesystem events into the memo engine's
// asynchronous invalidation queue. It watches the filesystem root and
// every directory below it, adding watches for directories created
// while it runs.
//
// Delivery is eventually consistent: after mutating the disk, call
// Engine.Settle before reading to get a strongly consistent snapshot.
type Watcher struct {
	fs      *DiskFileSystem
	watcher *fsnotify.Watcher
	onError func(error)
	done    chan struct{}
}

// NewWatcher starts watching the filesystem's root. onError receives
// watch failures (it may be nil); event delivery never stops on an
// error.
func NewWatcher(dfs *DiskFileSystem, onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		fs:      dfs,
		watcher: fsw,
		onError: onError,
		done:    make(chan struct{}),
	}
	if err := w.addRecursive(dfs.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// Close stops event delivery.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// addRecursive watches dir and every directory beneath it. Directories
// that vanish mid-walk are skipped; symlinked directories are not
// followed (their targets are watched at their real locations when
// they are inside the root).
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("walking %q for watches: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %q: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, ok := w.fs.RelFromOS(event.Name)
	if !ok {
		return
	}
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.fs.Engine().InvalidateAsync(w.fs.StructureChangedKeys(rel)...)
	} else {
		w.fs.Engine().InvalidateAsync(w.fs.ContentChangedKeys(rel)...)
	}

	// A freshly created directory needs its own watch, and anything
	// created inside it before the watch was in place needs a rescan.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.reportError(err)
			}
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
