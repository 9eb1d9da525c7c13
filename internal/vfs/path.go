package vfs

import "strings"

// Join appends a name to a /-separated relative path.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Parent returns the containing directory of a relative path, or ""
// for a top-level entry.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// IsInsideOrEqual reports whether path is dir itself or lies somewhere
// beneath it. It is a structural check on the path strings; "" is the
// filesystem root, which contains everything.
func IsInsideOrEqual(path, dir string) bool {
	if dir == "" {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+"/")
}
