// Package view defines the contracts between routed view components, the
// data they declare, and the renderer that turns them into markup.
//
// A route resolves to an ordered list of components, outermost first. A
// component that needs data implements DataComponent; its Requirement is
// satisfied by the prefetch resolver before rendering. A component that
// produces markup implements Renderable.
package view

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/vango-dev/postline/pkg/render"
	"github.com/vango-dev/postline/pkg/state"
	"github.com/vango-dev/postline/pkg/store"
)

// Params are the route and query parameters of a matched request.
type Params map[string]string

// Get returns the value of key, or "".
func (p Params) Get(key string) string {
	return p[key]
}

// Encode returns p as a sorted query string, for logs and traces.
func (p Params) Encode() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := url.Values{}
	for _, k := range keys {
		v.Set(k, p[k])
	}
	return v.Encode()
}

// Component is a node in a routed view tree.
type Component interface {
	Name() string
}

// Requirement declares the data a component needs before it renders.
type Requirement struct {
	// Namespace is the state namespace the fetched records are stored under.
	Namespace string

	// Collection is the store collection queried.
	Collection string

	// IDParam names the route parameter that selects a single record.
	// Empty fetches the whole collection.
	IDParam string

	// FilterParams maps record fields to the route parameters whose values
	// they must equal.
	FilterParams map[string]string
}

// Query builds the store query for params.
func (r Requirement) Query(params Params) (store.Query, error) {
	q := store.Query{Collection: r.Collection}
	if r.IDParam != "" {
		id := params[r.IDParam]
		if id == "" {
			return store.Query{}, fmt.Errorf("view: missing route parameter %q", r.IDParam)
		}
		q.ID = id
	}
	if len(r.FilterParams) > 0 {
		q.Filter = make(map[string]string, len(r.FilterParams))
		for field, param := range r.FilterParams {
			v, ok := params[param]
			if !ok {
				return store.Query{}, fmt.Errorf("view: missing route parameter %q", param)
			}
			q.Filter[field] = v
		}
	}
	return q, nil
}

// NamespaceOrCollection returns the namespace, defaulting to the collection.
func (r Requirement) NamespaceOrCollection() string {
	if r.Namespace != "" {
		return r.Namespace
	}
	return r.Collection
}

// DataComponent is a component with a declared data requirement.
type DataComponent interface {
	Component
	Requirement() Requirement
}

// Scope is what a component sees while rendering.
type Scope struct {
	Params Params
	State  state.Snapshot

	// Child is the rendered markup of the next inner component. It is empty
	// for the innermost component.
	Child string
}

// Renderable is a component that produces markup.
type Renderable interface {
	Component
	Render(ctx context.Context, scope Scope) (markup string, head render.Head, err error)
}

// Rendered is the output of a Renderer.
type Rendered struct {
	Markup string
	Head   render.Head
}

// Renderer turns a resolved component list and its state into markup.
type Renderer interface {
	Render(ctx context.Context, components []Component, scope Scope) (Rendered, error)
}

// Names returns the component names, for logs and traces.
func Names(components []Component) string {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name()
	}
	return strings.Join(names, " > ")
}
