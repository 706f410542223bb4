package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Route Build Errors
// =============================================================================

// ErrRouteBuild is matched by every malformed-pattern error via errors.Is.
var ErrRouteBuild = errors.New("route build error")

// BuildErrorType categorizes route build errors.
type BuildErrorType string

const (
	// ErrorMalformedBracket indicates unbalanced or unrecognized bracket syntax.
	// Example: [id.js, id].js, [a]b.js
	ErrorMalformedBracket BuildErrorType = "MALFORMED_BRACKET"

	// ErrorWildcardNotLast indicates a catch-all or optional segment that is
	// followed by further segments.
	// Example: [...slug]/edit.js
	ErrorWildcardNotLast BuildErrorType = "WILDCARD_NOT_LAST"

	// ErrorEmptyParam indicates brackets without a parameter name.
	// Example: [].js, [...].js
	ErrorEmptyParam BuildErrorType = "EMPTY_PARAM"

	// ErrorDuplicateParam indicates the same parameter name twice in one route.
	// Example: [id]/[id].js
	ErrorDuplicateParam BuildErrorType = "DUPLICATE_PARAM"
)

// Code returns the registered error code for the type.
func (t BuildErrorType) Code() string {
	switch t {
	case ErrorMalformedBracket:
		return "E200"
	case ErrorWildcardNotLast:
		return "E201"
	case ErrorEmptyParam:
		return "E202"
	case ErrorDuplicateParam:
		return "E203"
	default:
		return "E200"
	}
}

// RouteBuildError describes one page file whose path cannot be turned into
// a route pattern.
type RouteBuildError struct {
	// Type is the error category
	Type BuildErrorType

	// File is the offending page file
	File string

	// Segment is the offending path segment
	Segment string

	// Message is the human-readable error message
	Message string
}

func (e *RouteBuildError) Error() string {
	return fmt.Sprintf("%s: %s: %s (segment %q)", e.Type, e.File, e.Message, e.Segment)
}

// Is makes errors.Is(err, ErrRouteBuild) true.
func (e *RouteBuildError) Is(target error) bool {
	return target == ErrRouteBuild
}

// BuildErrors wraps every route build error found in one scan.
type BuildErrors struct {
	Errors []*RouteBuildError
}

func (e *BuildErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no route build errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d route build errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Is makes errors.Is(err, ErrRouteBuild) true.
func (e *BuildErrors) Is(target error) bool {
	return target == ErrRouteBuild
}

// Unwrap exposes the individual errors to errors.As.
func (e *BuildErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

// =============================================================================
// Segment Parsing
// =============================================================================

// parsePattern splits a route pattern into segments and validates bracket
// syntax. file is only used for error reporting.
func parsePattern(pattern, file string) ([]Segment, []string, error) {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil, nil, nil
	}

	segments := make([]Segment, 0, len(parts))
	var names []string
	seen := make(map[string]bool)

	for i, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			err.File = file
			return nil, nil, err
		}

		last := i == len(parts)-1
		if !last && seg.Kind != SegmentStatic && seg.Kind != SegmentDynamic {
			return nil, nil, &RouteBuildError{
				Type:    ErrorWildcardNotLast,
				File:    file,
				Segment: part,
				Message: fmt.Sprintf("%s segment must be the last segment of the route", seg.Kind),
			}
		}

		if seg.Kind != SegmentStatic {
			if seen[seg.Value] {
				return nil, nil, &RouteBuildError{
					Type:    ErrorDuplicateParam,
					File:    file,
					Segment: part,
					Message: fmt.Sprintf("parameter %q is declared more than once", seg.Value),
				}
			}
			seen[seg.Value] = true
			names = append(names, seg.Value)
		}

		segments = append(segments, seg)
	}

	return segments, names, nil
}

func parseSegment(part string) (Segment, *RouteBuildError) {
	if !strings.ContainsAny(part, "[]") {
		return Segment{Kind: SegmentStatic, Value: part}, nil
	}

	malformed := func() (Segment, *RouteBuildError) {
		return Segment{}, &RouteBuildError{
			Type:    ErrorMalformedBracket,
			Segment: part,
			Message: "brackets must wrap the whole segment and be balanced",
		}
	}

	var kind SegmentKind
	var inner string
	switch {
	case strings.HasPrefix(part, "[[") && strings.HasSuffix(part, "]]"):
		inner = part[2 : len(part)-2]
		kind = SegmentOptional
		if strings.HasPrefix(inner, "...") {
			inner = inner[3:]
			kind = SegmentOptionalCatchAll
		}
	case strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]") && len(part) >= 2:
		inner = part[1 : len(part)-1]
		kind = SegmentDynamic
		if strings.HasPrefix(inner, "...") {
			inner = inner[3:]
			kind = SegmentCatchAll
		}
	default:
		return malformed()
	}

	if strings.ContainsAny(inner, "[]/") {
		return malformed()
	}
	if inner == "" || strings.HasPrefix(inner, ".") {
		return Segment{}, &RouteBuildError{
			Type:    ErrorEmptyParam,
			Segment: part,
			Message: "parameter name is empty",
		}
	}
	return Segment{Kind: kind, Value: inner}, nil
}

// =============================================================================
// Specificity Ordering
// =============================================================================

// compareEntries orders a before b when a is more specific. Ranks are
// compared left to right, then static text, then the shorter route. Entries
// that are still equal keep directory traversal order.
func compareEntries(a, b *Entry) int {
	n := min(len(a.Segments), len(b.Segments))
	for i := 0; i < n; i++ {
		as, bs := a.Segments[i], b.Segments[i]
		if ar, br := as.Kind.rank(), bs.Kind.rank(); ar != br {
			return br - ar
		}
		if as.Kind == SegmentStatic && as.Value != bs.Value {
			return strings.Compare(as.Value, bs.Value)
		}
	}
	if len(a.Segments) != len(b.Segments) {
		return len(a.Segments) - len(b.Segments)
	}
	return a.Order - b.Order
}

// SortBySpecificity sorts entries so the most specific route comes first.
func SortBySpecificity(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return compareEntries(entries[i], entries[j]) < 0
	})
}

// =============================================================================
// Duplicate Detection
// =============================================================================

// Duplicate reports page files whose patterns are indistinguishable when
// matching, such as blog/[id].js and blog/[slug].js. The first file in
// traversal order serves the route.
type Duplicate struct {
	// Shape is the pattern with parameter names erased, e.g. "/blog/[]".
	Shape string

	// Winner serves requests for the shape.
	Winner string

	// Shadowed are files that can never match.
	Shadowed []string
}

func (d Duplicate) String() string {
	return fmt.Sprintf("duplicate route %s: %s wins over %s", d.Shape, d.Winner, strings.Join(d.Shadowed, ", "))
}

// findDuplicates groups entries by their matching shape. entries must be in
// traversal order.
func findDuplicates(entries []*Entry) []Duplicate {
	byShape := make(map[string][]*Entry)
	var shapes []string
	for _, e := range entries {
		s := shape(e.Segments)
		if _, ok := byShape[s]; !ok {
			shapes = append(shapes, s)
		}
		byShape[s] = append(byShape[s], e)
	}

	var dups []Duplicate
	for _, s := range shapes {
		group := byShape[s]
		if len(group) <= 1 {
			continue
		}
		d := Duplicate{Shape: s, Winner: group[0].FilePath}
		for _, e := range group[1:] {
			d.Shadowed = append(d.Shadowed, e.FilePath)
		}
		dups = append(dups, d)
	}
	return dups
}

func shape(segments []Segment) string {
	if len(segments) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteByte('/')
		switch seg.Kind {
		case SegmentStatic:
			sb.WriteString(seg.Value)
		case SegmentDynamic:
			sb.WriteString("[]")
		case SegmentOptional:
			sb.WriteString("[[]]")
		case SegmentCatchAll:
			sb.WriteString("[...]")
		case SegmentOptionalCatchAll:
			sb.WriteString("[[...]]")
		}
	}
	return sb.String()
}
