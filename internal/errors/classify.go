package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/vango-dev/pageforge/pkg/jsx"
	"github.com/vango-dev/pageforge/pkg/module"
	"github.com/vango-dev/pageforge/pkg/router"
)

// Classify maps an error from the pageforge packages to a coded *Error.
// Unknown errors are returned as an uncoded runtime error wrapping err.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}

	var be *module.BoundaryError
	if stderrors.As(err, &be) {
		out := New("E300").Wrap(err).WithDetail(be.Error()).
			WithFragment(be.Specifier).WithChain(be.Chain)
		if be.Importer != "" {
			out.WithLocation(be.Importer, be.Line, 0)
		}
		return out
	}

	var nf *module.NotFoundError
	if stderrors.As(err, &nf) {
		out := New("E301").Wrap(err).WithDetail(nf.Error())
		out.Fragment = nf.Specifier
		if nf.Importer != "" {
			out.Location = &Location{File: nf.Importer}
		}
		return out
	}

	var ce *jsx.CompileError
	if stderrors.As(err, &ce) {
		out := New(ce.Kind.Code()).Wrap(err).WithDetail(ce.Message).WithFragment(ce.Fragment)
		var le *module.LoadError
		if stderrors.As(err, &le) {
			out.WithLocation(le.Path, ce.Line, ce.Column)
		}
		return out
	}

	var rb *router.RouteBuildError
	if stderrors.As(err, &rb) {
		out := New(rb.Type.Code()).Wrap(err).WithDetail(rb.Message).WithFragment(rb.Segment)
		out.Location = &Location{File: rb.File}
		return out
	}

	var bes *router.BuildErrors
	if stderrors.As(err, &bes) && len(bes.Errors) > 0 {
		first := Classify(bes.Errors[0])
		if len(bes.Errors) > 1 {
			first.Detail = strings.TrimSpace(bes.Error())
		}
		first.Wrapped = err
		return first
	}

	var le *module.LoadError
	if stderrors.As(err, &le) {
		out := New("E302").Wrap(err).WithDetail(le.Err.Error())
		out.Location = &Location{File: le.Path}
		return out
	}

	return &Error{Category: CategoryRuntime, Message: err.Error(), Wrapped: err}
}

// HTTPStatus returns the status code the dev server uses for err.
func HTTPStatus(err error) int {
	e := Classify(err)
	switch {
	case e == nil:
		return http.StatusOK
	case e.Category == CategoryConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
