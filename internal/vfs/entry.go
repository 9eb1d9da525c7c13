// Package vfs exposes a disk-backed filesystem whose reads are
// memoized tasks. Every listing, content read, stat, and symlink
// resolution goes through the memo engine, so callers accumulate
// dependency edges on exactly the filesystem state they touched and
// are invalidated when NotifyChanged (or the watcher) reports a change
// to that state.
//
// All paths handed to and returned from this package are /-separated
// and relative to the filesystem root.
package vfs

// EntryType classifies one named child of a directory.
type EntryType uint8

const (
	// TypeError marks an entry that could not be classified, for
	// example a broken symlink or a permission failure. It is a
	// classification, not a failure: traversals carry on past it.
	TypeError EntryType = iota
	TypeFile
	TypeDirectory
	TypeSymlink
	// TypeOther covers non-regular files such as devices and sockets.
	TypeOther
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	case TypeOther:
		return "other"
	default:
		return "error"
	}
}

// DirectoryEntry is one named child of a directory. For File,
// Directory and Other entries Path names the resolved location; for a
// Symlink it names the link's own, unresolved location.
type DirectoryEntry struct {
	Type EntryType
	Path string
}

// DirEntry pairs an entry with its name inside the containing
// directory. Entry identity is (containing directory, name).
type DirEntry struct {
	Name  string
	Entry DirectoryEntry
}

// DirectoryContent is the outcome of listing a directory. A missing
// directory is a valid, trackable state, not an error.
type DirectoryContent struct {
	NotFound bool
	Entries  []DirEntry
}
