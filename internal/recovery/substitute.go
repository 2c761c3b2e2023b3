package recovery

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Substitute replaces every {name} token in s with the captured value of
// that name. Unknown names stay as literal text: a strategy with an
// unresolved placeholder runs with the token visible rather than failing.
func Substitute(s string, captured map[string]string) string {
	if len(captured) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(tok string) string {
		if v, ok := captured[tok[1:len(tok)-1]]; ok {
			return v
		}
		return tok
	})
}

// SubstituteStrategy returns a copy of s with every string payload field
// substituted. The original strategy is never modified: patterns are shared,
// immutable data.
func SubstituteStrategy(s FixStrategy, captured map[string]string) FixStrategy {
	out := s

	if len(s.Argv) > 0 {
		out.Argv = substituteList(s.Argv, captured)
	}
	if len(s.Sequence) > 0 {
		out.Sequence = make([][]string, len(s.Sequence))
		for i, step := range s.Sequence {
			out.Sequence[i] = substituteList(step, captured)
		}
	}
	if s.Name != "" {
		out.Name = Substitute(s.Name, captured)
	}
	if len(s.Globs) > 0 {
		out.Globs = substituteList(s.Globs, captured)
	}
	if len(s.Env) > 0 {
		env := make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			env[k] = Substitute(v, captured)
		}
		out.Env = env
	}
	return out
}

func substituteList(in []string, captured map[string]string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = Substitute(v, captured)
	}
	return out
}
