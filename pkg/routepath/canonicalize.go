// Package routepath normalizes request paths before they reach the route
// matcher and decodes captured segments afterwards.
package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// Path canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// Canonical is a normalized request path.
type Canonical struct {
	// Path is the normalized path, always starting with "/" and never ending
	// with "/" unless it is the root.
	Path string

	// Query is the raw query string without the leading "?".
	Query string

	// Segments are the raw (still percent-encoded) path segments.
	Segments []string

	// Changed reports whether normalization altered the input path.
	Changed bool
}

// Canonicalize normalizes a request path:
//   - duplicate slashes are collapsed (/blog//post → /blog/post)
//   - the trailing slash is removed except for the root
//   - "." segments are dropped and ".." segments are resolved
//
// Backslashes, NUL bytes, malformed percent escapes and ".." segments that
// would climb above the root are rejected. A query string, if present, is
// split off and returned untouched.
func Canonicalize(input string) (Canonical, error) {
	if input == "" {
		return Canonical{Path: "/", Changed: true}, nil
	}

	raw, query, _ := strings.Cut(input, "?")

	if strings.Contains(raw, "\\") {
		return Canonical{}, ErrBackslashInPath
	}
	if strings.Contains(raw, "\x00") || strings.Contains(strings.ToUpper(raw), "%00") {
		return Canonical{}, ErrNullByteInPath
	}
	if strings.Contains(raw, "%") {
		if err := validatePercentEscapes(raw); err != nil {
			return Canonical{}, err
		}
	}

	segments := make([]string, 0, strings.Count(raw, "/")+1)
	for _, seg := range strings.Split(raw, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return Canonical{}, ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	path := "/" + strings.Join(segments, "/")
	return Canonical{
		Path:     path,
		Query:    query,
		Segments: segments,
		Changed:  path != raw,
	}, nil
}

// Split returns the non-empty segments of an already canonical path.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// DecodeSegment URL-decodes a single captured segment.
func DecodeSegment(segment string) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	return decoded, nil
}

// DecodeSegments decodes each segment independently, so an encoded slash
// inside one segment never splits it in two.
func DecodeSegments(segments []string) ([]string, error) {
	out := make([]string, len(segments))
	for i, seg := range segments {
		decoded, err := DecodeSegment(seg)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}
