package routepath

import (
	"errors"
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		query    string
		segments []string
		changed  bool
	}{
		{"root", "/", "/", "", []string{}, false},
		{"empty", "", "/", "", nil, true},
		{"simple", "/blog/post", "/blog/post", "", []string{"blog", "post"}, false},
		{"trailing slash", "/blog/", "/blog", "", []string{"blog"}, true},
		{"duplicate slashes", "/blog//post", "/blog/post", "", []string{"blog", "post"}, true},
		{"many slashes", "///a///b///", "/a/b", "", []string{"a", "b"}, true},
		{"dot segment", "/a/./b", "/a/b", "", []string{"a", "b"}, true},
		{"dotdot segment", "/a/b/../c", "/a/c", "", []string{"a", "c"}, true},
		{"missing leading slash", "a/b", "/a/b", "", []string{"a", "b"}, true},
		{"query preserved", "/a/?x=1&y=2", "/a", "x=1&y=2", []string{"a"}, true},
		{"encoded kept raw", "/docs/a%20b", "/docs/a%20b", "", []string{"docs", "a%20b"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if err != nil {
				t.Fatalf("Canonicalize(%q) error = %v", tt.input, err)
			}
			if got.Path != tt.want {
				t.Errorf("Path = %q, want %q", got.Path, tt.want)
			}
			if got.Query != tt.query {
				t.Errorf("Query = %q, want %q", got.Query, tt.query)
			}
			if len(got.Segments) != len(tt.segments) || (len(tt.segments) > 0 && !reflect.DeepEqual(got.Segments, tt.segments)) {
				t.Errorf("Segments = %v, want %v", got.Segments, tt.segments)
			}
			if got.Changed != tt.changed {
				t.Errorf("Changed = %v, want %v", got.Changed, tt.changed)
			}
		})
	}
}

func TestCanonicalizeRejects(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{`/a\b`, ErrBackslashInPath},
		{"/a\x00b", ErrNullByteInPath},
		{"/a%00b", ErrNullByteInPath},
		{"/a%2", ErrInvalidPercentEscape},
		{"/a%zz", ErrInvalidPercentEscape},
		{"/../etc", ErrPathEscapesRoot},
		{"/a/../../b", ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Canonicalize(tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	if got := Split("/"); got != nil {
		t.Errorf("Split(/) = %v, want nil", got)
	}
	if got := Split("/a/b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Split(/a/b) = %v", got)
	}
}

func TestDecodeSegments(t *testing.T) {
	got, err := DecodeSegments([]string{"hello%20world", "a%2Fb", "plain"})
	if err != nil {
		t.Fatalf("DecodeSegments error = %v", err)
	}
	want := []string{"hello world", "a/b", "plain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeSegments = %v, want %v", got, want)
	}

	if _, err := DecodeSegment("%zz"); !errors.Is(err, ErrInvalidPercentEscape) {
		t.Errorf("DecodeSegment(%%zz) error = %v", err)
	}
}
