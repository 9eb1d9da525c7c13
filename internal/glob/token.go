package glob

// Lexer tokens. A doubled * is folded into the single rune ⁑ so the
// parser can treat it as one operator.
type (
	literal     rune // matches itself
	punctuation rune // *, ⁑, ?, {, }, [, ], or comma
)

func (literal) tokenTag()     {}
func (punctuation) tokenTag() {}

type token interface{ tokenTag() }

type tokens []token

func tokenise(pattern string) *tokens {
	tks := make(tokens, 0, len(pattern))

	escape := false // the previous rune was \
	star := false   // the previous rune was *
	inClass := false

	for _, c := range pattern {
		if escape {
			escape = false
			tks = append(tks, literal(c))
			continue
		}

		// Inside a character class only \ and ] are special.
		if inClass {
			switch c {
			case '\\':
				escape = true
			case ']':
				tks = append(tks, punctuation(']'))
				inClass = false
			default:
				tks = append(tks, literal(c))
			}
			continue
		}

		if star {
			star = false
			if c == '*' {
				tks = append(tks, punctuation('⁑'))
				continue
			}
			tks = append(tks, punctuation('*'))
		}

		switch c {
		case '*':
			star = true
		case '\\':
			escape = true
		case '[':
			tks = append(tks, punctuation('['))
			inClass = true
		case '?', '{', '}', ',':
			tks = append(tks, punctuation(c))
		case ']':
			tks = append(tks, literal(']'))
		default:
			tks = append(tks, literal(c))
		}
	}

	// Trailing escape or * at end of pattern.
	if escape {
		tks = append(tks, literal('\\'))
	}
	if star {
		tks = append(tks, punctuation('*'))
	}

	return &tks
}

// preprocess rewrites every ⁑ that is followed by a separator into an
// alternation with an empty branch, so ** matches zero or more whole
// segments rather than at least one:
//
//	⁑/ becomes {⁑/,}
//
// The rewrite is per-occurrence, so it applies uniformly at the pattern
// start, in the interior, and to consecutive double-stars. A trailing
// /⁑ needs no rewrite: it already matches any non-empty remainder after
// the separator, and entry paths never end in /.
func preprocess(in tokens) tokens {
	out := make(tokens, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] == punctuation('⁑') && i+1 < len(in) && in[i+1] == literal('/') {
			out = append(out,
				punctuation('{'), punctuation('⁑'), literal('/'), punctuation(','), punctuation('}'),
			)
			i++
			continue
		}
		out = append(out, in[i])
	}
	return out
}

// next uses a pointer to a slice as a consuming reader.
func (r *tokens) next() token {
	if r == nil || len(*r) == 0 {
		return nil
	}
	defer func() { *r = (*r)[1:] }()
	return (*r)[0]
}
