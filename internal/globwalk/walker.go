// Package globwalk is the incremental glob-traversal engine. It walks
// a directory tree through the memoized filesystem, matching entries
// against a glob, in one of two modes:
//
//   - ReadGlob accumulates and returns the matching entries, level by
//     level.
//   - TrackGlob returns only a change token, registering
//     dependency-tracked reads for every match so the token's producing
//     task is invalidated exactly when a relevant part of the
//     filesystem changes.
//
// Both modes share one walk. Every directory level is its own memoized
// task keyed by (prefix, directory, glob), so two callers walking the
// same subtree share one cached traversal, and a change inside one
// subtree recomputes only the levels above it.
package globwalk

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/incrbuild/globfs/internal/glob"
	"github.com/incrbuild/globfs/internal/memo"
	"github.com/incrbuild/globfs/internal/vfs"
)

const (
	kindReadGlob  = "globwalk.read"
	kindTrackGlob = "globwalk.track"
)

// SymlinkLoopError reports a directory symlink that points at itself
// or at one of its own ancestors. Traversing through it would never
// terminate, so the whole traversal fails.
type SymlinkLoopError struct {
	// Path is the link's own location relative to the traversal root's
	// filesystem, so operators can find and fix it.
	Path string
}

func (e *SymlinkLoopError) Error() string {
	return fmt.Sprintf("'%s' is a symlink that causes an infinite loop", e.Path)
}

// ReadGlobResult is the outcome of one directory level of a read-mode
// traversal.
//
// Results maps the prefixed relative path of each matching entry to
// its resolved entry. The key set is exact but unordered: traversal
// order is not deterministic, so callers needing stable output must
// sort.
//
// Inner maps the name of each descended-into child directory to that
// child's own result. Inner values are owned by the memoization
// framework and shared between callers; a ReadGlobResult is never
// mutated after construction.
type ReadGlobResult struct {
	Results map[string]vfs.DirectoryEntry
	Inner   map[string]*ReadGlobResult
}

// Walker runs glob traversals over one filesystem.
type Walker struct {
	engine *memo.Engine
	fs     *vfs.DiskFileSystem
}

// New creates a walker. The engine must be the one the filesystem
// registers its reads on.
func New(engine *memo.Engine, fs *vfs.DiskFileSystem) *Walker {
	return &Walker{engine: engine, fs: fs}
}

// ReadGlob returns all entries under dir matching g.
func (w *Walker) ReadGlob(ctx context.Context, dir string, g *glob.Glob) (*ReadGlobResult, error) {
	return w.readGlob(ctx, "", dir, g)
}

// TrackGlob traverses all entries under dir matching g without
// returning data. The completion token changes if and only if some
// tracked read - a listing, a matched file's content, a matched
// entry's type - would have changed. With includeDotFiles false,
// entries whose name starts with a dot are skipped entirely: not
// matched, not descended into, not tracked.
func (w *Walker) TrackGlob(ctx context.Context, dir string, g *glob.Glob, includeDotFiles bool) (memo.Completion, error) {
	return w.trackGlob(ctx, "", dir, g, includeDotFiles)
}

func (w *Walker) readGlob(ctx context.Context, prefix, dir string, g *glob.Glob) (*ReadGlobResult, error) {
	key := memo.NewKey(kindReadGlob, prefix, dir, g.String())
	return memo.Call(ctx, w.engine, key, func(ctx context.Context) (*ReadGlobResult, error) {
		result := &ReadGlobResult{
			Results: make(map[string]vfs.DirectoryEntry),
			Inner:   make(map[string]*ReadGlobResult),
		}
		v := &readVisitor{walker: w, glob: g, result: result}
		if err := w.walk(ctx, prefix, dir, g, v); err != nil {
			return nil, err
		}
		return result, nil
	})
}

func (w *Walker) trackGlob(ctx context.Context, prefix, dir string, g *glob.Glob, includeDotFiles bool) (memo.Completion, error) {
	key := memo.NewKey(kindTrackGlob, prefix, dir, g.String(), strconv.FormatBool(includeDotFiles))
	return memo.Call(ctx, w.engine, key, func(ctx context.Context) (memo.Completion, error) {
		v := &trackVisitor{walker: w, glob: g, includeDotFiles: includeDotFiles}
		if err := w.walk(ctx, prefix, dir, g, v); err != nil {
			return memo.Completion{}, err
		}
		if err := v.wait(ctx); err != nil {
			return memo.Completion{}, err
		}
		// The token is fresh on every recomputation; the memoization
		// framework hands out the cached one until a dependency
		// registered above changes.
		return memo.NewCompletion(), nil
	})
}

// globVisitor is what a traversal mode does with the walk's findings.
// Keeping both modes behind one walk guarantees classification and
// pruning behaviour cannot drift between them.
type globVisitor interface {
	// skip filters an entry by name before it is classified.
	skip(name string) bool
	// match handles an entry whose prefixed path matches the glob. The
	// entry is always resolved: never a symlink.
	match(ctx context.Context, entryPath string, entry vfs.DirectoryEntry) error
	// descend handles a resolved directory the glob can match inside.
	descend(ctx context.Context, name, entryPath string, entry vfs.DirectoryEntry) error
}

// walk performs one directory level: list, classify, match, prune.
//
// A directory the glob cannot match inside is not descended into, and
// no dependency of any kind is registered on its subtree; later
// changes under it must not invalidate this traversal. A missing
// directory yields an empty level - the listing read itself is the
// dependency that fires when the directory appears.
func (w *Walker) walk(ctx context.Context, prefix, dir string, g *glob.Glob, v globVisitor) error {
	content, err := w.fs.ReadDir(ctx, dir)
	if err != nil {
		return err
	}
	if content.NotFound {
		return nil
	}
	for _, de := range content.Entries {
		if v.skip(de.Name) {
			continue
		}
		entryPath := vfs.Join(prefix, de.Name)
		entry, err := w.resolveEntrySafely(ctx, de.Entry)
		if err != nil {
			return err
		}
		// Matching is evaluated against the entry's own path within
		// the traversal, not the resolved target's path: a symlink can
		// match a pattern its target's real path would not.
		if g.Match(entryPath) {
			if err := v.match(ctx, entryPath, entry); err != nil {
				return err
			}
		}
		if entry.Type == vfs.TypeDirectory && g.CanMatchInDirectory(entryPath) {
			if err := v.descend(ctx, de.Name, entryPath, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveEntrySafely resolves a symlink entry and guards against
// recursive traversal. Recursion can only occur when a directory
// symlink points at itself or an ancestor of itself, which a prefix
// check on the raw and resolved paths detects; the tree under the root
// is otherwise acyclic, so no visited-set is needed.
func (w *Walker) resolveEntrySafely(ctx context.Context, entry vfs.DirectoryEntry) (vfs.DirectoryEntry, error) {
	resolved, err := w.fs.ResolveSymlink(ctx, entry)
	if err != nil {
		return vfs.DirectoryEntry{}, err
	}
	if resolved != entry && resolved.Type == vfs.TypeDirectory {
		if vfs.IsInsideOrEqual(entry.Path, resolved.Path) {
			return vfs.DirectoryEntry{}, &SymlinkLoopError{Path: entry.Path}
		}
	}
	return resolved, nil
}

// readVisitor accumulates matches into a fresh ReadGlobResult. Read
// mode has no dot-file filter; that asymmetry with track mode is
// contract, not accident.
type readVisitor struct {
	walker *Walker
	glob   *glob.Glob
	result *ReadGlobResult
}

func (v *readVisitor) skip(string) bool { return false }

func (v *readVisitor) match(_ context.Context, entryPath string, entry vfs.DirectoryEntry) error {
	v.result.Results[entryPath] = entry
	return nil
}

func (v *readVisitor) descend(ctx context.Context, name, entryPath string, entry vfs.DirectoryEntry) error {
	inner, err := v.walker.readGlob(ctx, entryPath, entry.Path, v.glob)
	if err != nil {
		return err
	}
	v.result.Inner[name] = inner
	return nil
}

// trackVisitor issues dependency-registering reads for matches and
// discards their payloads. The reads and sub-trackings collected at
// one level run concurrently and are joined by wait; their completion
// order carries no meaning.
type trackVisitor struct {
	walker          *Walker
	glob            *glob.Glob
	includeDotFiles bool
	group           errgroup.Group
}

func (v *trackVisitor) skip(name string) bool {
	return !v.includeDotFiles && name[0] == '.'
}

func (v *trackVisitor) match(ctx context.Context, entryPath string, entry vfs.DirectoryEntry) error {
	switch entry.Type {
	case vfs.TypeFile:
		path := entry.Path
		v.group.Go(func() error {
			_, err := v.walker.fs.ReadFile(ctx, path)
			return err
		})
	case vfs.TypeOther:
		path := entry.Path
		v.group.Go(func() error {
			_, err := v.walker.fs.Stat(ctx, path)
			return err
		})
	case vfs.TypeSymlink:
		// Classification resolves every symlink before dispatch;
		// reaching here is a defect in the walk, not a filesystem
		// state.
		panic(fmt.Sprintf("globwalk: unresolved symlink %q reached track dispatch", entryPath))
	case vfs.TypeDirectory, vfs.TypeError:
		// Directories are handled by descend; unclassifiable entries
		// register no dependency.
	}
	return nil
}

func (v *trackVisitor) descend(ctx context.Context, _, entryPath string, entry vfs.DirectoryEntry) error {
	dir := entry.Path
	v.group.Go(func() error {
		_, err := v.walker.trackGlob(ctx, entryPath, dir, v.glob, v.includeDotFiles)
		return err
	})
	return nil
}

func (v *trackVisitor) wait(context.Context) error {
	return v.group.Wait()
}
