package module

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBoundaryViolation matches any *BoundaryError.
	ErrBoundaryViolation = errors.New("boundary violation")

	// ErrNotFound matches any *NotFoundError.
	ErrNotFound = errors.New("module not found")
)

// BoundaryError reports a "use client" module that reaches a "use server"
// module through its imports.
type BoundaryError struct {
	// Client is the client-tagged module whose graph was being validated.
	Client string
	// Server is the server-tagged module it reached.
	Server string
	// Importer issued the offending import. Equal to Client for a direct edge.
	Importer string
	// Specifier is the import string as written in Importer.
	Specifier string
	// Line is the 1-based line of the import in Importer, 0 if unknown.
	Line int
	// Chain lists every module from Client to Server inclusive.
	Chain []string
}

func (e *BoundaryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "boundary violation: client module %s imports server module %s", e.Client, e.Server)
	if e.Specifier != "" {
		fmt.Fprintf(&b, " via %q", e.Specifier)
		if e.Importer != "" && e.Importer != e.Client {
			fmt.Fprintf(&b, " in %s", e.Importer)
		}
		if e.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", e.Line)
		}
	}
	if len(e.Chain) > 2 {
		fmt.Fprintf(&b, "; import chain: %s", strings.Join(e.Chain, " -> "))
	}
	return b.String()
}

func (e *BoundaryError) Is(target error) bool {
	return target == ErrBoundaryViolation
}

// NotFoundError reports an import that resolves to no file.
type NotFoundError struct {
	Specifier string
	Importer  string
}

func (e *NotFoundError) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("module not found: %s", e.Specifier)
	}
	return fmt.Sprintf("module not found: cannot resolve %q from %s", e.Specifier, e.Importer)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// LoadError wraps a failure to read or compile one module.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
