package vfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/incrbuild/globfs/internal/memo"
)

// Task kinds for the memoized filesystem reads. NotifyChanged maps a
// changed path back to these keys, so the set here and the set there
// must stay in step.
const (
	kindReadDir     = "vfs.readDir"
	kindReadFile    = "vfs.readFile"
	kindStat        = "vfs.stat"
	kindResolveLink = "vfs.resolveLink"
)

// FileContent is the outcome of reading a file. Like a missing
// directory, a missing file is a trackable state rather than an error.
type FileContent struct {
	NotFound bool
	Data     []byte
}

// DiskFileSystem serves a subtree of the OS filesystem rooted at a
// directory. All reads are memoized tasks on the shared engine.
type DiskFileSystem struct {
	root   string // absolute OS path
	engine *memo.Engine
}

// NewDiskFileSystem creates a filesystem rooted at the given OS
// directory.
func NewDiskFileSystem(engine *memo.Engine, root string) (*DiskFileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving filesystem root %q: %w", root, err)
	}
	// The root must be in its real location: resolved link targets are
	// compared against it, and a root that is itself behind a symlink
	// would make every inside-the-root target look like an escapee.
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &DiskFileSystem{root: abs, engine: engine}, nil
}

// Root returns the absolute OS path of the filesystem root.
func (d *DiskFileSystem) Root() string { return d.root }

// Engine returns the memo engine the filesystem registers its reads
// on.
func (d *DiskFileSystem) Engine() *memo.Engine { return d.engine }

// osPath converts a root-relative path to an OS path.
func (d *DiskFileSystem) osPath(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

// RelFromOS converts an absolute OS path into a root-relative path.
// The second result is false for paths outside the root.
func (d *DiskFileSystem) RelFromOS(osPath string) (string, bool) {
	rel, err := filepath.Rel(d.root, osPath)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", true
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// ReadDir lists a directory. The listing itself is the tracked
// dependency: a caller of ReadDir on a missing directory is
// invalidated when the directory appears.
func (d *DiskFileSystem) ReadDir(ctx context.Context, dir string) (*DirectoryContent, error) {
	return memo.Call(ctx, d.engine, memo.NewKey(kindReadDir, dir), func(context.Context) (*DirectoryContent, error) {
		entries, err := os.ReadDir(d.osPath(dir))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				return &DirectoryContent{NotFound: true}, nil
			}
			// ENOTDIR: the path exists but is not a directory. For a
			// listing that is the same trackable absence.
			if errors.Is(err, syscall.ENOTDIR) {
				return &DirectoryContent{NotFound: true}, nil
			}
			return nil, fmt.Errorf("reading directory %q: %w", dir, err)
		}

		content := &DirectoryContent{Entries: make([]DirEntry, 0, len(entries))}
		for _, entry := range entries {
			rel := Join(dir, entry.Name())
			content.Entries = append(content.Entries, DirEntry{
				Name:  entry.Name(),
				Entry: classify(entry.Type(), rel),
			})
		}
		return content, nil
	})
}

func classify(mode fs.FileMode, rel string) DirectoryEntry {
	switch {
	case mode&fs.ModeSymlink != 0:
		return DirectoryEntry{Type: TypeSymlink, Path: rel}
	case mode.IsDir():
		return DirectoryEntry{Type: TypeDirectory, Path: rel}
	case mode.IsRegular():
		return DirectoryEntry{Type: TypeFile, Path: rel}
	default:
		return DirectoryEntry{Type: TypeOther, Path: rel}
	}
}

// ResolveSymlink follows a symlink entry to its terminal
// classification. Non-symlink entries are returned unchanged. A link
// that cannot be resolved - broken, cyclic at the OS level, or
// unreadable - classifies as an Error entry rather than failing the
// call; loop *traversal* safety is the caller's concern, not this
// layer's.
func (d *DiskFileSystem) ResolveSymlink(ctx context.Context, entry DirectoryEntry) (DirectoryEntry, error) {
	if entry.Type != TypeSymlink {
		return entry, nil
	}
	return memo.Call(ctx, d.engine, memo.NewKey(kindResolveLink, entry.Path), func(context.Context) (DirectoryEntry, error) {
		full := d.osPath(entry.Path)
		info, err := os.Stat(full)
		if err != nil {
			return DirectoryEntry{Type: TypeError, Path: entry.Path}, nil
		}
		target, err := filepath.EvalSymlinks(full)
		if err != nil {
			return DirectoryEntry{Type: TypeError, Path: entry.Path}, nil
		}
		rel, err := filepath.Rel(d.root, target)
		if err != nil {
			return DirectoryEntry{Type: TypeError, Path: entry.Path}, nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}
		return classify(info.Mode(), rel), nil
	})
}

// ReadFile reads a file's content as a tracked dependency.
func (d *DiskFileSystem) ReadFile(ctx context.Context, path string) (*FileContent, error) {
	return memo.Call(ctx, d.engine, memo.NewKey(kindReadFile, path), func(context.Context) (*FileContent, error) {
		data, err := os.ReadFile(d.osPath(path))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &FileContent{NotFound: true}, nil
			}
			return nil, fmt.Errorf("reading file %q: %w", path, err)
		}
		return &FileContent{Data: data}, nil
	})
}

// Stat reads an entry's type as a tracked dependency.
func (d *DiskFileSystem) Stat(ctx context.Context, path string) (EntryType, error) {
	return memo.Call(ctx, d.engine, memo.NewKey(kindStat, path), func(context.Context) (EntryType, error) {
		info, err := os.Lstat(d.osPath(path))
		if err != nil {
			return TypeError, nil
		}
		return classify(info.Mode(), path).Type, nil
	})
}

// ContentChangedKeys returns the task keys an in-place modification at
// path can affect: its content, its stat, and its resolution as a link
// target. Directory listings are untouched - a write does not change
// what a directory contains.
func (d *DiskFileSystem) ContentChangedKeys(path string) []memo.Key {
	return []memo.Key{
		memo.NewKey(kindReadFile, path),
		memo.NewKey(kindStat, path),
		memo.NewKey(kindResolveLink, path),
	}
}

// StructureChangedKeys returns the task keys a creation, removal or
// rename at path can affect: everything a content change can, plus the
// path's own listing task and the parent directory's listing.
func (d *DiskFileSystem) StructureChangedKeys(path string) []memo.Key {
	keys := append(d.ContentChangedKeys(path), memo.NewKey(kindReadDir, path))
	if path != "" {
		keys = append(keys, memo.NewKey(kindReadDir, Parent(path)))
	}
	return keys
}

// NotifyChanged synchronously invalidates every task affected by
// in-place modifications at the given root-relative paths. Tests and
// other deterministic callers use this directly; the watcher feeds the
// same keys through the engine's asynchronous queue.
func (d *DiskFileSystem) NotifyChanged(paths ...string) {
	for _, path := range paths {
		d.engine.Invalidate(d.ContentChangedKeys(path)...)
	}
}

// NotifyStructureChanged is NotifyChanged for entries that were
// created, removed or renamed at the given paths.
func (d *DiskFileSystem) NotifyStructureChanged(paths ...string) {
	for _, path := range paths {
		d.engine.Invalidate(d.StructureChangedKeys(path)...)
	}
}
