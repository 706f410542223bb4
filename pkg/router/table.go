package router

import (
	"strings"

	"github.com/vango-dev/pageforge/pkg/routepath"
)

// Table is an immutable, specificity-sorted set of routes for one pages root.
// Matching against a Table is a pure function of the table and the path, so
// any number of goroutines may match concurrently.
type Table struct {
	root       string
	entries    []*Entry
	duplicates []Duplicate
}

// Root returns the pages directory the table was built from.
func (t *Table) Root() string { return t.root }

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.entries) }

// Routes returns the entries, most specific first.
func (t *Table) Routes() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Duplicates returns patterns that more than one file resolved to.
func (t *Table) Duplicates() []Duplicate {
	return t.duplicates
}

// Match resolves a request path to the most specific route. The path is
// normalized first; a query string is ignored. Paths that cannot be
// normalized or decoded do not match.
func (t *Table) Match(path string) (Match, bool) {
	canon, err := routepath.Canonicalize(path)
	if err != nil {
		return Match{}, false
	}

	for _, e := range t.entries {
		params, ok := matchEntry(e, canon.Segments)
		if !ok {
			continue
		}
		return Match{
			Route:    e,
			FilePath: e.FilePath,
			Path:     canon.Path,
			Params:   params,
		}, true
	}
	return Match{}, false
}

// matchEntry checks one entry against raw request segments and returns the
// decoded parameters.
func matchEntry(e *Entry, input []string) (map[string]string, bool) {
	var params map[string]string
	set := func(name, raw string) bool {
		v, err := routepath.DecodeSegment(raw)
		if err != nil {
			return false
		}
		if params == nil {
			params = make(map[string]string, len(e.ParamNames))
		}
		params[name] = v
		return true
	}

	i := 0
	for _, seg := range e.Segments {
		switch seg.Kind {
		case SegmentStatic:
			if i >= len(input) || input[i] != seg.Value {
				return nil, false
			}
			i++

		case SegmentDynamic:
			if i >= len(input) || !set(seg.Value, input[i]) {
				return nil, false
			}
			i++

		case SegmentOptional:
			if i < len(input) {
				if !set(seg.Value, input[i]) {
					return nil, false
				}
				i++
			}

		case SegmentCatchAll, SegmentOptionalCatchAll:
			rest := input[i:]
			if len(rest) == 0 {
				if seg.Kind == SegmentCatchAll {
					return nil, false
				}
				return params, true
			}
			decoded, err := routepath.DecodeSegments(rest)
			if err != nil {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, len(e.ParamNames))
			}
			params[seg.Value] = strings.Join(decoded, "/")
			return params, true
		}
	}

	if i != len(input) {
		return nil, false
	}
	return params, true
}
