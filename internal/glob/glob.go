// Package glob compiles glob patterns into the two predicates the
// traversal engine consumes: an exact path match and a directory
// pruning test.
//
// Patterns match `/`-separated relative paths. Supported syntax:
//
//	*        any run of characters within one path segment
//	**       any run of characters, crossing path segments
//	?        any single character except /
//	[a-z]    character class (ranges and ^ negation)
//	{a,b}    alternation
//	\x       literal x
//
// A pattern is compiled once into a nondeterministic finite automaton
// and may be shared between goroutines; matching never mutates the
// compiled form.
package glob

import "fmt"

// Glob is a compiled pattern.
type Glob struct {
	source  string
	initial *state
}

// Parse compiles a pattern.
func Parse(pattern string) (*Glob, error) {
	tks := tokenise(pattern)
	*tks = preprocess(*tks)

	initial, terminal, _, err := parseSequence(tks, false)
	if err != nil {
		return nil, fmt.Errorf("parsing glob %q: %w", pattern, err)
	}
	terminal.accept = true

	return &Glob{source: pattern, initial: initial}, nil
}

// MustParse calls Parse, and panics if the pattern is invalid.
func MustParse(pattern string) *Glob {
	g, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// String returns the pattern source. Two globs with equal String values
// are interchangeable, which makes the source usable as a cache key.
func (g *Glob) String() string { return g.source }

// Match reports whether the relative path matches the pattern.
func (g *Glob) Match(path string) bool {
	set := advance(singleton(g.initial), path)
	for s := range set {
		if s.accept {
			return true
		}
	}
	return false
}

// CanMatchInDirectory reports whether any path below dir could match
// the pattern. It is the pruning test for recursive traversal: a false
// result guarantees that no descendant of dir matches, so the subtree
// can be skipped entirely.
//
// For every path p with Match(p) == true, CanMatchInDirectory returns
// true for every ancestor of p. This follows from the construction:
// advancing the automaton over dir + "/" leaves exactly the states from
// which some continuation of the path could still reach an accept
// state.
func (g *Glob) CanMatchInDirectory(dir string) bool {
	if dir == "" {
		return true
	}
	return len(advance(singleton(g.initial), dir+"/")) > 0
}
