// Package live keeps every open client connection in a Registry and relays
// mutation events from one client to all the others.
//
// A Hub owns the registry and the broadcaster for the lifetime of the
// service:
//
//	hub := live.NewHub(live.WithLogger(logger))
//	mux.Handle("/ws", live.NewHandler(hub, live.DefaultConfig()))
//	...
//	hub.Shutdown()
//
// Clients send events tagged with an internal kind ("server/addPost"); other
// clients receive the same payload re-tagged with the public kind
// ("ADD_POST"). The sender never receives its own event. Delivery is best
// effort: a failing recipient is skipped and the fan-out continues.
package live
