package server

import (
	"errors"
	"fmt"

	perrors "github.com/vango-dev/postline/internal/errors"
	"github.com/vango-dev/postline/pkg/prefetch"
)

// Sentinel errors for server lifecycle conditions.
var (
	// ErrNoHandler is returned by Run when the server has no page handler.
	ErrNoHandler = errors.New("server: no page handler configured")
)

// RouteResolutionError is returned when the route table rejects a path.
type RouteResolutionError struct {
	Path string
	Err  error
}

func (e *RouteResolutionError) Error() string {
	return fmt.Sprintf("server: resolve %q: %v", e.Path, e.Err)
}

func (e *RouteResolutionError) Unwrap() error {
	return e.Err
}

// PrefetchError is returned when a component's data could not be fetched.
type PrefetchError struct {
	Path string

	// Component is the name of the component whose requirement failed,
	// when known.
	Component string

	Err error
}

func (e *PrefetchError) Error() string {
	return fmt.Sprintf("server: prefetch %q: %v", e.Path, e.Err)
}

func (e *PrefetchError) Unwrap() error {
	return e.Err
}

// RenderError is returned when a component fails or panics while
// rendering, or the document cannot be assembled.
type RenderError struct {
	Path       string
	Components string

	// Panic holds the recovered value when the renderer panicked.
	Panic any
	Stack []byte

	Err error
}

func (e *RenderError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("server: render %q: panic: %v", e.Path, e.Panic)
	}
	return fmt.Sprintf("server: render %q: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func newPrefetchError(path string, err error) *PrefetchError {
	pe := &PrefetchError{Path: path, Err: err}
	var fe *prefetch.Error
	if errors.As(err, &fe) {
		pe.Component = fe.Component
	}
	return pe
}

// pageError converts a pipeline failure into the coded error shown on the
// development error page. Failures without a recovered panic stack carry
// the stack of the caller.
func pageError(err error) *perrors.PageError {
	var (
		route *RouteResolutionError
		pf    *PrefetchError
		rend  *RenderError
	)
	switch {
	case errors.As(err, &route):
		return perrors.New("E101").WithPath(route.Path).Wrap(route.Err).WithStack(1)
	case errors.As(err, &pf):
		pe := perrors.New("E102").WithPath(pf.Path).WithComponent(pf.Component).Wrap(pf.Err)
		var fe *prefetch.Error
		var panicked *prefetch.PanicError
		if errors.As(err, &fe) && errors.As(fe.Err, &panicked) {
			pe.WithRawStack(string(panicked.Stack))
		} else {
			pe.WithStack(1)
		}
		return pe
	case errors.As(err, &rend):
		pe := perrors.New("E103").WithPath(rend.Path).WithComponent(rend.Components)
		if rend.Panic != nil {
			pe.Wrap(fmt.Errorf("panic: %v", rend.Panic)).WithRawStack(string(rend.Stack))
		} else {
			pe.Wrap(rend.Err).WithStack(1)
		}
		return pe
	default:
		return perrors.FromError(err, "E104")
	}
}
