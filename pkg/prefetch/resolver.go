// Package prefetch satisfies the data requirements of a matched page before
// it renders.
//
// Every requirement is fetched concurrently. Resolve returns as soon as one
// fetch fails, without waiting for slower siblings, and writes nothing to
// the state container unless every fetch succeeded.
package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/vango-dev/postline/pkg/state"
	"github.com/vango-dev/postline/pkg/store"
	"github.com/vango-dev/postline/pkg/view"
)

// Error reports the requirement that failed.
type Error struct {
	// Component is the name of the component whose requirement failed.
	Component string

	// Namespace is the state namespace the data was destined for.
	Namespace string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("prefetch: %s (%s): %v", e.Component, e.Namespace, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError is the Err of an *Error whose fetch panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fetch panicked: %v", e.Value)
}

// Resolver fetches component data from a store.
type Resolver struct {
	store   store.Store
	timeout time.Duration
	limit   int
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each individual fetch. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithConcurrency limits the fetches one Resolve call keeps in flight.
// Separate calls never share the limit. Zero or less means unlimited.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		r.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver backed by s.
// Default concurrency limit: 64 fetches per render.
func New(s store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  s,
		limit:  64,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "prefetch")
	return r
}

type task struct {
	component string
	namespace string
	query     store.Query
}

type result struct {
	index   int
	records []store.Record
	err     error
}

// Resolve runs the requirements of every view.DataComponent in components
// and stores the fetched records in c, keyed by record ID under the
// requirement's namespace. A requirement that yields no records still
// creates its namespace.
func (r *Resolver) Resolve(ctx context.Context, components []view.Component, params view.Params, c *state.Container) error {
	var tasks []task
	for _, comp := range components {
		dc, ok := comp.(view.DataComponent)
		if !ok {
			continue
		}
		req := dc.Requirement()
		q, err := req.Query(params)
		if err != nil {
			return &Error{Component: comp.Name(), Namespace: req.NamespaceOrCollection(), Err: err}
		}
		tasks = append(tasks, task{
			component: comp.Name(),
			namespace: req.NamespaceOrCollection(),
			query:     q,
		})
	}
	if len(tasks) == 0 {
		return nil
	}

	var sem chan struct{}
	if r.limit > 0 && r.limit < len(tasks) {
		sem = make(chan struct{}, r.limit)
	}

	// Buffered so abandoned fetches can still deliver and exit.
	results := make(chan result, len(tasks))
	for i, t := range tasks {
		go r.fetch(ctx, sem, i, t, results)
	}

	records := make([][]store.Record, len(tasks))
	for range tasks {
		select {
		case res := <-results:
			if res.err != nil {
				t := tasks[res.index]
				r.logger.Debug("fetch failed",
					"component", t.component,
					"collection", t.query.Collection,
					"id", t.query.ID,
					"params", params.Encode(),
					"error", res.err)
				return &Error{Component: t.component, Namespace: t.namespace, Err: res.err}
			}
			records[res.index] = res.records
		case <-ctx.Done():
			return fmt.Errorf("prefetch: %w", ctx.Err())
		}
	}

	for i, t := range tasks {
		if err := c.Ensure(t.namespace); err != nil {
			return err
		}
		for _, rec := range records[i] {
			if err := c.Put(t.namespace, rec.ID, rec.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetch runs one query. The timeout covers the wait for a slot in sem.
func (r *Resolver) fetch(ctx context.Context, sem chan struct{}, index int, t task, out chan<- result) {
	res := result{index: index}
	defer func() {
		if p := recover(); p != nil {
			res.records = nil
			res.err = &PanicError{Value: p, Stack: debug.Stack()}
		}
		out <- res
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			res.err = ctx.Err()
			return
		}
	}

	res.records, res.err = r.store.Fetch(ctx, t.query)
}
