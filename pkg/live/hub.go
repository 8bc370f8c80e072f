package live

import (
	"errors"
	"log/slog"
)

// Hub ties connection lifecycle and client events to the registry and the
// broadcaster. It is created at service start and shut down once.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	logger      *slog.Logger
	observer    Observer
}

// HubOption configures a Hub.
type HubOption func(*hubConfig)

type hubConfig struct {
	logger   *slog.Logger
	observer Observer
	registry *Registry
}

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(c *hubConfig) {
		c.logger = l
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) HubOption {
	return func(c *hubConfig) {
		c.observer = o
	}
}

// WithRegistry uses an existing registry instead of a new one.
func WithRegistry(r *Registry) HubOption {
	return func(c *hubConfig) {
		c.registry = r
	}
}

// NewHub creates a Hub with its own registry.
func NewHub(opts ...HubOption) *Hub {
	cfg := &hubConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.observer == nil {
		cfg.observer = nopObserver{}
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	return &Hub{
		registry:    cfg.registry,
		broadcaster: NewBroadcaster(cfg.registry, cfg.logger, cfg.observer),
		logger:      cfg.logger.With("component", "hub"),
		observer:    cfg.observer,
	}
}

// Registry returns the hub's registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	return h.registry.Len()
}

// OnConnect registers a newly opened connection. It returns false if the
// connection is already registered or the hub is shutting down.
func (h *Hub) OnConnect(c Handle) bool {
	if !h.registry.Register(c) {
		return false
	}
	open := h.registry.Len()
	h.observer.ConnectionsChanged(open)
	h.logger.Debug("connection opened", "conn", c.ID(), "open", open)
	return true
}

// OnDisconnect unregisters a closed connection. Disconnecting twice is a
// no-op.
func (h *Hub) OnDisconnect(c Handle) {
	if !h.registry.Unregister(c) {
		return
	}
	open := h.registry.Len()
	h.observer.ConnectionsChanged(open)
	h.logger.Debug("connection closed", "conn", c.ID(), "open", open)
}

// OnClientEvent decodes a raw client frame and relays it to every other
// connection. Malformed frames are logged and dropped.
func (h *Hub) OnClientEvent(c Handle, raw []byte) Delivery {
	ev, err := ParseEvent(raw)
	if err != nil {
		h.observer.EventDropped(DropMalformed)
		h.logger.Warn("dropping malformed event", "conn", c.ID(), "error", err)
		return Delivery{Ignored: true}
	}
	return h.broadcaster.Broadcast(c, ev)
}

// Shutdown drains the registry and closes every connection that supports
// closing. Later connections are refused.
func (h *Hub) Shutdown() error {
	handles := h.registry.Drain()
	h.observer.ConnectionsChanged(0)

	var errs []error
	for _, c := range handles {
		if closer, ok := c.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	h.logger.Info("hub shut down", "closed", len(handles))
	return errors.Join(errs...)
}
