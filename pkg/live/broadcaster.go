package live

import "log/slog"

// Observer receives connection and relay measurements.
type Observer interface {
	// ConnectionsChanged is called after a connect or disconnect with the
	// number of open connections.
	ConnectionsChanged(open int)

	// EventRelayed is called once per broadcast event.
	EventRelayed(kind string, delivered, failed int)

	// EventDropped is called for client frames that were not relayed.
	EventDropped(reason string)
}

type nopObserver struct{}

func (nopObserver) ConnectionsChanged(int)        {}
func (nopObserver) EventRelayed(string, int, int) {}
func (nopObserver) EventDropped(string)           {}

// Drop reasons reported to Observer.EventDropped.
const (
	DropUnknownKind = "unknown_kind"
	DropMalformed   = "malformed"
	DropEncode      = "encode"
)

// Delivery summarizes one broadcast.
type Delivery struct {
	Kind       Kind
	Recipients int
	Delivered  int
	Failed     int

	// Ignored is set when the event kind was not recognized and nothing
	// was sent.
	Ignored bool
}

// Broadcaster relays events to every registered handle except the origin.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
	observer Observer
}

// NewBroadcaster creates a Broadcaster over registry. A nil logger uses
// slog.Default and a nil observer records nothing.
func NewBroadcaster(registry *Registry, logger *slog.Logger, observer Observer) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Broadcaster{
		registry: registry,
		logger:   logger.With("component", "broadcaster"),
		observer: observer,
	}
}

// Broadcast sends ev, re-tagged with its public kind, to each handle in
// registry.AllExcept(origin), in registration order. Events of unknown kind
// are ignored. A failed send is logged and counted and the fan-out moves on
// to the next recipient.
func (b *Broadcaster) Broadcast(origin Handle, ev MutationEvent) Delivery {
	d := Delivery{Kind: ev.Kind}
	if ev.Kind == KindUnknown {
		d.Ignored = true
		b.observer.EventDropped(DropUnknownKind)
		b.logger.Debug("ignoring unknown event kind", "type", ev.Tag)
		return d
	}

	frame, err := ev.Encode()
	if err != nil {
		d.Ignored = true
		b.observer.EventDropped(DropEncode)
		b.logger.Warn("encode event failed", "type", ev.Tag, "error", err)
		return d
	}

	recipients := b.registry.AllExcept(origin)
	d.Recipients = len(recipients)
	for _, h := range recipients {
		if err := h.Send(frame); err != nil {
			d.Failed++
			b.logger.Debug("send failed", "conn", h.ID(), "kind", ev.Kind.PublicTag(), "error", err)
			continue
		}
		d.Delivered++
	}

	b.observer.EventRelayed(ev.Kind.PublicTag(), d.Delivered, d.Failed)
	return d
}
