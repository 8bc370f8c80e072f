package router

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/postline/pkg/view"
)

// RouteKind distinguishes page routes from redirect routes.
type RouteKind int

const (
	KindPage RouteKind = iota
	KindRedirect
)

func (k RouteKind) String() string {
	if k == KindRedirect {
		return "redirect"
	}
	return "page"
}

// Route is one entry of the route table.
type Route struct {
	Pattern string
	Kind    RouteKind

	// Components are the page's components, outermost first.
	Components []view.Component

	// Target is the redirect location for redirect routes.
	Target string
}

// MatchResult is the outcome of matching a request path. Exactly one of
// Matched, a non-empty RedirectTo, or neither (not matched) holds.
type MatchResult struct {
	Components []view.Component
	Params     view.Params
	RedirectTo string
	Matched    bool

	// Route is the matched route, nil when not matched or when redirecting
	// to a canonical path.
	Route *Route
}

// ResolutionError reports a request path that cannot be resolved.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("router: resolve %q: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Table is a static route table. Routes are registered at startup; Match
// is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	root   *node
	routes []*Route
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{root: newNode("")}
}

// Page registers a page route. Pattern segments may be static, ":name",
// ":name:int", ":name:uuid" or a trailing "*name". Registering the same
// pattern twice replaces the earlier route.
func (t *Table) Page(pattern string, components ...view.Component) {
	t.add(&Route{Pattern: pattern, Kind: KindPage, Components: components})
}

// Redirect registers a redirect from pattern to target.
func (t *Table) Redirect(pattern, target string) {
	t.add(&Route{Pattern: pattern, Kind: KindRedirect, Target: target})
}

func (t *Table) add(r *Route) {
	if !strings.HasPrefix(r.Pattern, "/") {
		panic(fmt.Sprintf("router: pattern must begin with '/' in %q", r.Pattern))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.root.insert(r.Pattern)
	if n.route != nil {
		for i, existing := range t.routes {
			if existing == n.route {
				t.routes = append(t.routes[:i], t.routes[i+1:]...)
				break
			}
		}
	}
	n.route = r
	t.routes = append(t.routes, r)
}

// Routes returns the registered routes sorted by pattern.
func (t *Table) Routes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Route, len(t.routes))
	for i, r := range t.routes {
		out[i] = *r
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

// Match resolves a request URI (path plus optional query string).
//
// A path that is not in canonical form redirects to its canonical location
// when that location routes somewhere. Query parameters are merged into
// the params of a page match; path parameters take precedence.
func (t *Table) Match(requestURI string) (MatchResult, error) {
	canon, err := CanonicalizePath(requestURI)
	if err != nil {
		return MatchResult{}, &ResolutionError{Path: requestURI, Err: err}
	}

	params := make(map[string]string)
	n, err := t.lookup(canon.Path, params)
	if err != nil {
		return MatchResult{}, &ResolutionError{Path: requestURI, Err: err}
	}
	if n == nil {
		return MatchResult{}, nil
	}

	if canon.Changed {
		return MatchResult{RedirectTo: canon.Location()}, nil
	}

	route := n.route
	if route.Kind == KindRedirect {
		return MatchResult{RedirectTo: route.Target, Route: route}, nil
	}

	if canon.Query != "" {
		values, err := url.ParseQuery(canon.Query)
		if err != nil {
			return MatchResult{}, &ResolutionError{Path: requestURI, Err: err}
		}
		for k, v := range values {
			if _, ok := params[k]; !ok && len(v) > 0 {
				params[k] = v[0]
			}
		}
	}

	return MatchResult{
		Components: route.Components,
		Params:     view.Params(params),
		Matched:    true,
		Route:      route,
	}, nil
}

func (t *Table) lookup(path string, params map[string]string) (*node, error) {
	raw := splitPath(path)
	segments := make([]string, len(raw))
	for i, seg := range raw {
		// Only a catch-all may carry an encoded slash; that is checked once
		// the matching route is known.
		decoded, err := decodeSegment(seg, true)
		if err != nil {
			return nil, err
		}
		segments[i] = decoded
	}

	t.mu.RLock()
	n := t.root.match(segments, params)
	t.mu.RUnlock()

	if n == nil {
		return nil, nil
	}
	for name, v := range params {
		if n.isCatchAll && name == n.paramName {
			continue
		}
		if strings.Contains(v, "/") {
			return nil, ErrEncodedSlashInSegment
		}
	}
	return n, nil
}
