package router

import "strings"

// SegmentKind classifies one component of a route pattern.
type SegmentKind uint8

const (
	// SegmentStatic matches its text literally.
	SegmentStatic SegmentKind = iota

	// SegmentDynamic ([name]) consumes exactly one path segment.
	SegmentDynamic

	// SegmentOptional ([[name]]) consumes one segment, or none when it is
	// the last segment of the route.
	SegmentOptional

	// SegmentCatchAll ([...name]) consumes one or more trailing segments.
	SegmentCatchAll

	// SegmentOptionalCatchAll ([[...name]]) consumes zero or more trailing segments.
	SegmentOptionalCatchAll
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentStatic:
		return "static"
	case SegmentDynamic:
		return "dynamic"
	case SegmentOptional:
		return "optional"
	case SegmentCatchAll:
		return "catch-all"
	case SegmentOptionalCatchAll:
		return "optional catch-all"
	default:
		return "unknown"
	}
}

// rank orders segment kinds by how literally they match. Higher is more specific.
func (k SegmentKind) rank() int {
	switch k {
	case SegmentStatic:
		return 4
	case SegmentDynamic:
		return 3
	case SegmentOptional:
		return 2
	case SegmentCatchAll:
		return 1
	default:
		return 0
	}
}

// Segment is one parsed component of a route pattern.
type Segment struct {
	Kind SegmentKind

	// Value is the literal text for static segments and the parameter name
	// otherwise.
	Value string
}

// Entry maps one page file to its route pattern.
// Entries are immutable once a Table has been built.
type Entry struct {
	// Pattern is the route derived from the file path, e.g. "/blog/[slug]".
	Pattern string

	// FilePath is the page file path as discovered under the root.
	FilePath string

	// RelPath is FilePath relative to the pages root, slash separated.
	RelPath string

	// Segments is the parsed pattern.
	Segments []Segment

	// ParamNames lists parameter names in pattern order.
	ParamNames []string

	// Order is the position of the file in directory traversal order.
	Order int
}

// Specificity returns the per-segment ranks compared left to right when
// ordering routes. Static segments rank highest, optional catch-alls lowest.
func (e *Entry) Specificity() []int {
	ranks := make([]int, len(e.Segments))
	for i, seg := range e.Segments {
		ranks[i] = seg.Kind.rank()
	}
	return ranks
}

// IsDynamic reports whether the entry has any non-static segment.
func (e *Entry) IsDynamic() bool {
	return len(e.ParamNames) > 0
}

// Match is the result of resolving a request path.
type Match struct {
	// Route is the entry that matched.
	Route *Entry

	// FilePath is the page file that serves the request.
	FilePath string

	// Path is the normalized request path that was matched.
	Path string

	// Params maps parameter names to URL-decoded values. Catch-all values
	// are joined with "/". Absent optional parameters have no key.
	Params map[string]string
}

// Param returns a parameter value and whether it was captured.
func (m Match) Param(name string) (string, bool) {
	v, ok := m.Params[name]
	return v, ok
}

// patternFromRel derives the route pattern for a page file path relative
// to the pages root, with the extension already removed. An "index"
// basename collapses to its parent directory.
func patternFromRel(rel string) string {
	if rel == "index" {
		return "/"
	}
	rel = strings.TrimSuffix(rel, "/index")
	return "/" + strings.Trim(rel, "/")
}
