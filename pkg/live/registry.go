package live

import "sync"

// Handle is one live client connection as seen by the registry and the
// broadcaster. Implementations must be comparable; pointers are typical.
type Handle interface {
	// ID identifies the connection in logs.
	ID() string

	// Send queues one encoded frame for the client. It must not block on
	// a slow client.
	Send(frame []byte) error
}

// Registry is the set of open connections, kept in registration order.
// A handle is present exactly while its transport is open.
type Registry struct {
	mu      sync.RWMutex
	handles []Handle
	index   map[Handle]struct{}
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[Handle]struct{})}
}

// Register adds h. It returns false if h is already registered or the
// registry has been drained.
func (r *Registry) Register(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, ok := r.index[h]; ok {
		return false
	}
	r.index[h] = struct{}{}
	r.handles = append(r.handles, h)
	return true
}

// Unregister removes h and reports whether it was present. Removing an
// unknown handle is a no-op.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[h]; !ok {
		return false
	}
	delete(r.index, h)
	for i, existing := range r.handles {
		if existing == h {
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether h is registered.
func (r *Registry) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[h]
	return ok
}

// AllExcept returns a snapshot of every registered handle other than h, in
// registration order. A nil h returns every handle.
func (r *Registry) AllExcept(h Handle) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.handles))
	for _, existing := range r.handles {
		if existing != h {
			out = append(out, existing)
		}
	}
	return out
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Drain empties the registry and refuses further registrations. It returns
// the handles that were registered.
func (r *Registry) Drain() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.handles
	r.handles = nil
	r.index = make(map[Handle]struct{})
	r.closed = true
	return out
}
