package jsx

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompile is matched by every *CompileError via errors.Is.
var ErrCompile = errors.New("jsx compile error")

// ErrorKind categorizes compile errors.
type ErrorKind string

const (
	// ErrorUnterminated indicates an element with no closing tag before the
	// end of input.
	ErrorUnterminated ErrorKind = "UNTERMINATED_TAG"

	// ErrorMismatchedTag indicates a closing tag naming a different element.
	ErrorMismatchedTag ErrorKind = "MISMATCHED_TAG"

	// ErrorAttribute indicates attribute syntax that cannot be classified.
	ErrorAttribute ErrorKind = "BAD_ATTRIBUTE"

	// ErrorUnterminatedExpression indicates a {expression} hole with no
	// closing brace.
	ErrorUnterminatedExpression ErrorKind = "UNTERMINATED_EXPRESSION"
)

// Code returns the registered error code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case ErrorUnterminated:
		return "E400"
	case ErrorMismatchedTag:
		return "E401"
	case ErrorAttribute:
		return "E402"
	case ErrorUnterminatedExpression:
		return "E403"
	default:
		return "E400"
	}
}

// CompileError reports malformed JSX with the offending fragment and its
// position in the source.
type CompileError struct {
	Kind    ErrorKind
	Message string

	// Fragment is a short excerpt of the source starting at Offset.
	Fragment string

	// Offset is the byte offset of the error; Line and Column are 1-based.
	Offset int
	Line   int
	Column int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s near %q", e.Line, e.Column, e.Kind, e.Message, e.Fragment)
}

// Is makes errors.Is(err, ErrCompile) true.
func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

const fragmentLen = 40

func (c *compiler) errorf(kind ErrorKind, offset int, format string, args ...any) *CompileError {
	if offset > len(c.src) {
		offset = len(c.src)
	}
	end := min(offset+fragmentLen, len(c.src))
	frag := c.src[offset:end]
	if i := strings.IndexByte(frag, '\n'); i > 0 {
		frag = frag[:i]
	}

	line := 1 + strings.Count(c.src[:offset], "\n")
	col := offset - strings.LastIndexByte(c.src[:offset], '\n')

	return &CompileError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Fragment: frag,
		Offset:   offset,
		Line:     line,
		Column:   col,
	}
}
