package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryRoute    Category = "route"
	CategoryPrefetch Category = "prefetch"
	CategoryRender   Category = "render"
	CategoryConfig   Category = "config"
	CategoryServer   Category = "server"
)

// Frame is one captured stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// String returns the frame as "function (file:line)".
func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// PageError is a structured error with request context and a stack.
type PageError struct {
	// Code is a unique error identifier (e.g., "E102").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Path is the request path being rendered, if any.
	Path string

	// Component names the view component involved, if any.
	Component string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Stack holds the frames captured by WithStack.
	Stack []Frame

	// RawStack holds a preformatted stack, such as one recovered from a panic.
	RawStack string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PageError) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *PageError) WithDetail(d string) *PageError {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PageError) WithSuggestion(s string) *PageError {
	e.Suggestion = s
	return e
}

// WithPath records the request path.
func (e *PageError) WithPath(path string) *PageError {
	e.Path = path
	return e
}

// WithComponent records the component involved.
func (e *PageError) WithComponent(name string) *PageError {
	e.Component = name
	return e
}

// WithRawStack attaches a preformatted stack trace.
func (e *PageError) WithRawStack(stack string) *PageError {
	e.RawStack = stack
	return e
}

// Wrap wraps another error.
func (e *PageError) Wrap(err error) *PageError {
	e.Wrapped = err
	return e
}

// WithStack captures the caller's stack. skip counts frames above the caller.
func (e *PageError) WithStack(skip int) *PageError {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	e.Stack = e.Stack[:0]
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			e.Stack = append(e.Stack, Frame{Function: f.Function, File: f.File, Line: f.Line})
		}
		if !more {
			break
		}
	}
	return e
}

// Chain returns the messages of the wrapped cause chain, outermost first.
func (e *PageError) Chain() []string {
	var out []string
	for err := e.Wrapped; err != nil; err = errors.Unwrap(err) {
		out = append(out, err.Error())
	}
	return out
}

// New creates a PageError from a registered error code.
func New(code string) *PageError {
	template, ok := registry[code]
	if !ok {
		return &PageError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &PageError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// FromError wraps a standard error in a PageError. An error that already
// contains a PageError is returned as that PageError.
func FromError(err error, code string) *PageError {
	if err == nil {
		return nil
	}
	var pe *PageError
	if errors.As(err, &pe) {
		return pe
	}
	return New(code).Wrap(err)
}
