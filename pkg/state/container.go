// Package state holds the per-render application state that is prefetched on
// the server and embedded in the served document.
//
// State is organized as namespace -> key -> JSON value. A namespace usually
// corresponds to one kind of record (for example "posts") and keys are record
// IDs, so the serialized form is directly usable as a normalized client store:
//
//	{"posts":{"42":{"id":42,"title":"X"}}}
//
// A Container belongs to exactly one in-flight render. It is not safe for
// concurrent use; the prefetch resolver writes to it from a single goroutine.
// Once handed to the page assembler it is frozen into an immutable Snapshot.
package state

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// ErrFrozen is returned when writing to a container after Freeze.
var ErrFrozen = errors.New("state: container is frozen")

// Container is a mutable, serializable key-value store for one render.
type Container struct {
	data   map[string]map[string]json.RawMessage
	frozen bool
}

// New creates an empty container.
func New() *Container {
	return &Container{
		data: make(map[string]map[string]json.RawMessage),
	}
}

// Ensure creates the namespace if it does not exist yet.
func (c *Container) Ensure(namespace string) error {
	if c.frozen {
		return ErrFrozen
	}
	if _, ok := c.data[namespace]; !ok {
		c.data[namespace] = make(map[string]json.RawMessage)
	}
	return nil
}

// Put stores value under namespace/key, replacing any previous value.
func (c *Container) Put(namespace, key string, value json.RawMessage) error {
	if err := c.Ensure(namespace); err != nil {
		return err
	}
	c.data[namespace][key] = value
	return nil
}

// Get returns the value stored under namespace/key.
func (c *Container) Get(namespace, key string) (json.RawMessage, bool) {
	ns, ok := c.data[namespace]
	if !ok {
		return nil, false
	}
	v, ok := ns[key]
	return v, ok
}

// Len returns the number of namespaces.
func (c *Container) Len() int {
	return len(c.data)
}

// Frozen reports whether Freeze has been called.
func (c *Container) Frozen() bool {
	return c.frozen
}

// Freeze marks the container read-only and returns a snapshot of its data.
// Calling Freeze more than once returns equivalent snapshots.
func (c *Container) Freeze() Snapshot {
	c.frozen = true
	return c.Snapshot()
}

// Snapshot returns a deep copy of the current data.
func (c *Container) Snapshot() Snapshot {
	out := make(Snapshot, len(c.data))
	for ns, entries := range c.data {
		cp := make(map[string]json.RawMessage, len(entries))
		for k, v := range entries {
			cp[k] = append(json.RawMessage(nil), v...)
		}
		out[ns] = cp
	}
	return out
}

// Snapshot is an immutable view of a container's data. It marshals to a JSON
// object; an empty snapshot marshals to {} rather than null.
type Snapshot map[string]map[string]json.RawMessage

// Empty returns a snapshot with no namespaces.
func Empty() Snapshot {
	return Snapshot{}
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]map[string]json.RawMessage(s))
}

// Decode unmarshals the value at namespace/key into v.
// Returns false if the entry does not exist.
func (s Snapshot) Decode(namespace, key string, v any) (bool, error) {
	raw, ok := s[namespace][key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Keys returns the keys of a namespace in natural order: numeric keys sort
// numerically and before non-numeric keys, which sort lexically.
func (s Snapshot) Keys(namespace string) []string {
	ns := s[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return naturalLess(keys[i], keys[j])
	})
	return keys
}

// Values returns the raw values of a namespace in key order.
func (s Snapshot) Values(namespace string) []json.RawMessage {
	keys := s.Keys(namespace)
	out := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		out = append(out, s[namespace][k])
	}
	return out
}

func naturalLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
