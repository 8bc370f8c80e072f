package view

import (
	"context"
	"fmt"

	"github.com/vango-dev/postline/pkg/render"
)

// TreeRenderer renders components innermost to outermost, handing each
// component the markup of the one inside it. Components that do not
// implement Renderable pass their child through unchanged.
//
// Head fragments are merged outermost first, so an inner title overrides
// an outer one.
type TreeRenderer struct{}

// NewTreeRenderer returns the default Renderer.
func NewTreeRenderer() *TreeRenderer {
	return &TreeRenderer{}
}

// Render implements Renderer.
func (TreeRenderer) Render(ctx context.Context, components []Component, scope Scope) (Rendered, error) {
	heads := make([]render.Head, len(components))
	child := scope.Child

	for i := len(components) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return Rendered{}, err
		}
		r, ok := components[i].(Renderable)
		if !ok {
			continue
		}
		s := scope
		s.Child = child
		markup, head, err := r.Render(ctx, s)
		if err != nil {
			return Rendered{}, fmt.Errorf("view: render %s: %w", components[i].Name(), err)
		}
		child = markup
		heads[i] = head
	}

	var head render.Head
	for _, h := range heads {
		head = head.Merge(h)
	}
	return Rendered{Markup: child, Head: head}, nil
}

// RenderFunc is the signature of a function component.
type RenderFunc func(ctx context.Context, scope Scope) (string, render.Head, error)

type funcComponent struct {
	name string
	fn   RenderFunc
}

// Func adapts fn to a Renderable component called name.
func Func(name string, fn RenderFunc) Renderable {
	return funcComponent{name: name, fn: fn}
}

func (f funcComponent) Name() string { return f.name }

func (f funcComponent) Render(ctx context.Context, scope Scope) (string, render.Head, error) {
	return f.fn(ctx, scope)
}
