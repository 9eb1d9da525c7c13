package glob

// state is one node of the compiled automaton.
type state struct {
	// out holds every transition leaving this state.
	out []edge

	// accept marks a fully-matched state.
	accept bool
}

// edge is a transition. A nil expr is an epsilon edge, followed without
// consuming a rune.
type edge struct {
	expr expression
	to   *state
}

// stateSet is the set of automaton states the matcher may be in.
type stateSet map[*state]struct{}

func singleton(s *state) stateSet { return stateSet{s: {}} }

// advance progresses the state set one rune at a time over the input.
// An empty result means no continuation of the input can match.
func advance(initial stateSet, input string) stateSet {
	cur := make(stateSet, len(initial))
	for s := range initial {
		cur[s] = struct{}{}
	}
	closure(cur)

	for _, r := range input {
		if len(cur) == 0 {
			return nil
		}
		next := make(stateSet)
		for s := range cur {
			for _, e := range s.out {
				if e.expr == nil {
					// Epsilon edges were already followed by closure.
					continue
				}
				if e.expr.match(r) {
					next[e.to] = struct{}{}
				}
			}
		}
		closure(next)
		cur = next
	}
	return cur
}

// closure adds every state reachable through epsilon edges.
func closure(set stateSet) {
	q := make([]*state, 0, len(set))
	for s := range set {
		q = append(q, s)
	}
	for len(q) > 0 {
		s := q[0]
		q = q[1:]
		for _, e := range s.out {
			if e.expr != nil {
				continue
			}
			if _, seen := set[e.to]; seen {
				continue
			}
			set[e.to] = struct{}{}
			q = append(q, e.to)
		}
	}
}

// expression tests a single rune on an edge.
type expression interface {
	match(r rune) bool
}

type (
	// Matches exactly this rune (including the path separator, /).
	literalExpr rune

	// * matches like [^/]*
	starExpr struct{}

	// ** matches like .*
	doubleStarExpr struct{}

	// ? matches like [^/]
	questionExpr struct{}
)

func (e literalExpr) match(r rune) bool  { return rune(e) == r }
func (starExpr) match(r rune) bool       { return r != '/' }
func (doubleStarExpr) match(r rune) bool { return true }
func (questionExpr) match(r rune) bool   { return r != '/' }

// classExpr matches a [...] character class. A negated class still
// never matches the path separator.
type classExpr struct {
	runes   []rune
	ranges  [][2]rune
	negated bool
}

func (e *classExpr) match(r rune) bool {
	in := false
	for _, c := range e.runes {
		if c == r {
			in = true
			break
		}
	}
	for _, rg := range e.ranges {
		if r >= rg[0] && r <= rg[1] {
			in = true
			break
		}
	}
	if e.negated {
		return !in && r != '/'
	}
	return in
}
