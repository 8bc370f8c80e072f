package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore is an in-memory Store. It's the default store and suitable for
// single-server deployments and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
	sequences   map[string]int64
	closed      bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
		sequences:   make(map[string]int64),
	}
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	coll := m.collections[q.Collection]
	if q.ID != "" {
		data, ok := coll[q.ID]
		if !ok || !matches(data, q.Filter) {
			return nil, ErrNotFound
		}
		return []Record{{ID: q.ID, Data: clone(data)}}, nil
	}

	out := make([]Record, 0, len(coll))
	for id, data := range coll {
		if matches(data, q.Filter) {
			out = append(out, Record{ID: id, Data: clone(data)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, collection string, rec Record) error {
	if err := (Query{Collection: collection}).Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]json.RawMessage)
		m.collections[collection] = coll
	}
	coll[rec.ID] = clone(rec.Data)

	// Keep the sequence ahead of explicitly numbered records.
	if n, err := strconv.ParseInt(rec.ID, 10, 64); err == nil && n > m.sequences[collection] {
		m.sequences[collection] = n
	}
	return nil
}

// NextID implements Store.
func (m *MemoryStore) NextID(ctx context.Context, collection string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrStoreClosed
	}
	m.sequences[collection]++
	return strconv.FormatInt(m.sequences[collection], 10), nil
}

// Len returns the number of records in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Close marks the store as closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func clone(data json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), data...)
}
