package glob

import (
	"errors"
	"fmt"
)

// parseSequence parses tokens into an automaton fragment until the
// token stream ends or, inside an alternation, until a , or } operator.
func parseSequence(tks *tokens, insideAlt bool) (start, end *state, stopped token, err error) {
	start = &state{}
	end = start
	appendExpr := func(e expression) {
		next := &state{}
		end.out = append(end.out, edge{expr: e, to: next})
		end = next
	}

	for {
		t := tks.next()
		if t == nil {
			return start, end, nil, nil
		}

		switch t := t.(type) {
		case literal:
			appendExpr(literalExpr(t))

		case punctuation:
			switch t {
			case '*':
				end.out = append(end.out, edge{expr: starExpr{}, to: end})

			case '⁑':
				end.out = append(end.out, edge{expr: doubleStarExpr{}, to: end})

			case '?':
				appendExpr(questionExpr{})

			case '{':
				merge, err := parseAlternation(tks, end)
				if err != nil {
					return nil, nil, nil, err
				}
				end = merge

			case '}', ',':
				if insideAlt {
					return start, end, t, nil
				}
				appendExpr(literalExpr(t))

			case '[':
				merge, err := parseCharClass(tks, end)
				if err != nil {
					return nil, nil, nil, err
				}
				end = merge

			default:
				return nil, nil, nil, fmt.Errorf("invalid punctuation %c", t)
			}

		default:
			return nil, nil, nil, fmt.Errorf("invalid token type %T", t)
		}
	}
}

// parseAlternation grafts each branch onto from and joins the branch
// ends with epsilon edges into a single merge state.
func parseAlternation(tks *tokens, from *state) (merge *state, err error) {
	merge = &state{}
	for {
		st, ed, stopped, err := parseSequence(tks, true)
		if err != nil {
			return nil, err
		}
		// ed may be st, so add the epsilon edge before grafting.
		ed.out = append(ed.out, edge{expr: nil, to: merge})
		from.out = append(from.out, st.out...)

		switch stopped {
		case punctuation(','):
			continue
		case punctuation('}'):
			return merge, nil
		default:
			return nil, errors.New("unterminated alternation - missing closing brace")
		}
	}
}

// parseCharClass parses [...] into a single classExpr edge.
func parseCharClass(tks *tokens, from *state) (merge *state, err error) {
	merge = &state{}
	cls := &classExpr{}

	first := true
	var pending rune // literal awaiting a possible range
	havePending := false
	flush := func() {
		if havePending {
			cls.runes = append(cls.runes, pending)
			havePending = false
		}
	}

	for {
		t := tks.next()
		if t == nil {
			return nil, errors.New("unterminated char class - missing closing square bracket")
		}
		switch t := t.(type) {
		case literal:
			switch {
			case first && t == '^':
				cls.negated = true
			case t == '-' && havePending:
				// Range: need the upper bound next.
				up := tks.next()
				lit, ok := up.(literal)
				if !ok {
					return nil, errors.New("unterminated range within char class")
				}
				cls.ranges = append(cls.ranges, [2]rune{pending, rune(lit)})
				havePending = false
			default:
				flush()
				pending = rune(t)
				havePending = true
			}
			first = false

		case punctuation:
			if t != ']' {
				return nil, fmt.Errorf("invalid %c within char class", t)
			}
			flush()
			from.out = append(from.out, edge{expr: cls, to: merge})
			return merge, nil
		}
	}
}
