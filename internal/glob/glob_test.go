package glob

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"foo", "foo", true},
		{"foo", "bar", false},
		{"foo", "foo/bar", false},

		{"*", "foo", true},
		{"*", "foo/bar", false},
		{"*.js", "link.js", true},
		{"*.js", "foo", false},
		{"*.js", "sub/foo.js", false},

		{"?oo", "foo", true},
		{"?oo", "oo", false},
		{"?oo", "/oo", false},

		{"**", "foo", true},
		{"**", "foo/bar", true},
		{"**", "a/b/c/d", true},

		{"**/bar", "bar", true},
		{"**/bar", "sub/bar", true},
		{"**/bar", "a/b/bar", true},
		{"**/bar", "barx", false},
		{"**/bar", "sub/barx", false},

		{"sub/**", "sub", false},
		{"sub/**", "sub/bar", true},
		{"sub/**", "sub/a/b", true},
		{"sub/**", "other/bar", false},

		{"a/**/b", "a/b", true},
		{"a/**/b", "a/x/b", true},
		{"a/**/b", "a/x/y/b", true},
		{"a/**/b", "a/xb", false},

		// Every double-star can independently collapse to zero segments.
		{"a/**/**/b", "a/b", true},
		{"a/**/**/b", "a/x/b", true},
		{"a/**/**/b", "a/x/y/b", true},
		{"a/**/**/b", "a/xb", false},

		{"**/*.js", "foo.js", true},
		{"**/*.js", "sub/foo.js", true},
		{"**/*.js", "sub/foo.ts", false},

		{"{foo,bar}", "foo", true},
		{"{foo,bar}", "bar", true},
		{"{foo,bar}", "baz", false},
		{"src/{a,b}/*.go", "src/a/x.go", true},
		{"src/{a,b}/*.go", "src/c/x.go", false},

		{"[a-c]oo", "boo", true},
		{"[a-c]oo", "doo", false},
		{"[^a-c]oo", "doo", true},
		{"[^a-c]oo", "boo", false},
		{"[^a]/b", "x/b", true},
		{"[^a]b", "/b", false}, // a negated class never matches /

		{`\*`, "*", true},
		{`\*`, "x", false},

		{".hidden", ".hidden", true},
		{"*", ".hidden", true},
	}

	for _, test := range tests {
		g, err := Parse(test.pattern)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", test.pattern, err)
			continue
		}
		if got := g.Match(test.path); got != test.want {
			t.Errorf("Parse(%q).Match(%q) = %t, want %t", test.pattern, test.path, got, test.want)
		}
	}
}

func TestCanMatchInDirectory(t *testing.T) {
	tests := []struct {
		pattern string
		dir     string
		want    bool
	}{
		{"*", "sub", false},
		{"*.js", "sub", false},
		{"**", "sub", true},
		{"**", "a/b/c", true},
		{"**/bar", "sub", true},
		{"**/bar", "a/b", true},
		{"sub/**", "sub", true},
		{"sub/**", "other", false},
		{"sub/**", "sub/nested", true},
		{"sub/*.txt", "sub", true},
		{"sub/*.txt", "sub/nested", false},
		{"a/**/b", "a", true},
		{"a/**/b", "a/x", true},
		{"a/**/b", "b", false},
		{"{a,b}/c", "a", true},
		{"{a,b}/c", "c", false},
		{"foo", "foo", false},
		{"", "sub", false},
	}

	for _, test := range tests {
		g := MustParse(test.pattern)
		if got := g.CanMatchInDirectory(test.dir); got != test.want {
			t.Errorf("Parse(%q).CanMatchInDirectory(%q) = %t, want %t",
				test.pattern, test.dir, got, test.want)
		}
	}
}

// Pruning must never reject a directory whose descendant could match:
// for every matching path, every ancestor directory must pass the
// pruning test.
func TestMatchImpliesCanMatchInAncestors(t *testing.T) {
	patterns := []string{"**", "**/bar", "sub/**", "a/**/b", "a/**/**/b", "**/*.js", "{a,b}/**/c?d"}
	paths := []string{
		"bar", "sub/bar", "a/b", "a/x/y/b", "sub/foo.js",
		"a/deep/czd", "b/c1d", "a/b/c/d/e.js",
	}

	for _, pattern := range patterns {
		g := MustParse(pattern)
		for _, path := range paths {
			if !g.Match(path) {
				continue
			}
			segs := strings.Split(path, "/")
			for i := 1; i < len(segs); i++ {
				anc := strings.Join(segs[:i], "/")
				if !g.CanMatchInDirectory(anc) {
					t.Errorf("Parse(%q): Match(%q) is true but CanMatchInDirectory(%q) is false",
						pattern, path, anc)
				}
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, pattern := range []string{"{a,b", "[abc", "[a-"} {
		if _, err := Parse(pattern); err == nil {
			t.Errorf("Parse(%q) error = nil, want parse failure", pattern)
		}
	}
}

func TestString(t *testing.T) {
	want := "src/**/*.{js,ts}"
	if diff := cmp.Diff(want, MustParse(want).String()); diff != "" {
		t.Errorf("String() diff (-want +got):\n%s", diff)
	}
}
