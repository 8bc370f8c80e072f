// Package store defines the data-store capability consumed by the prefetch
// resolver and the JSON API, plus in-memory and Redis implementations.
//
// Records are schema-agnostic: a record is an ID plus an opaque JSON document.
// Queries select either one record by ID, or every record of a collection,
// optionally filtered by top-level JSON fields.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound is returned when a query for a single record finds nothing.
	ErrNotFound = errors.New("store: record not found")

	// ErrStoreClosed is returned when the store has been closed.
	ErrStoreClosed = errors.New("store: closed")

	// ErrInvalidQuery is returned for queries without a collection.
	ErrInvalidQuery = errors.New("store: invalid query")
)

// Query selects records from a collection.
type Query struct {
	// Collection is the record collection (e.g. "posts").
	Collection string

	// ID selects a single record. Empty selects the whole collection.
	ID string

	// Filter keeps only records whose top-level JSON field equals the value,
	// compared by string form ("7" matches both 7 and "7").
	Filter map[string]string
}

// Validate checks the query is well formed.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: missing collection", ErrInvalidQuery)
	}
	return nil
}

// Record is one stored document.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Store is the data capability the render pipeline depends on.
type Store interface {
	// Fetch returns the records selected by q. A query with an ID returns
	// exactly one record or ErrNotFound.
	Fetch(ctx context.Context, q Query) ([]Record, error)

	// Save creates or replaces a record in collection.
	Save(ctx context.Context, collection string, rec Record) error

	// NextID allocates a new numeric ID for collection.
	NextID(ctx context.Context, collection string) (string, error)
}

// matches reports whether data satisfies every filter entry.
func matches(data json.RawMessage, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for name, want := range filter {
		raw, ok := fields[name]
		if !ok || scalarString(raw) != want {
			return false
		}
	}
	return true
}

// scalarString renders a JSON scalar without quotes so numbers and numeric
// strings compare equal.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

func idLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	if aerr == nil || berr == nil {
		return aerr == nil
	}
	return a < b
}
