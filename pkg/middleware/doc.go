// Package middleware provides the HTTP middleware and metrics collectors
// used by the postline server.
//
// # Prometheus Metrics
//
// A Collector registers every metric on one registry and plugs into the
// render orchestrator and the live hub as their observer:
//
//	reg := prometheus.NewRegistry()
//	metrics := middleware.NewCollector(middleware.WithRegistry(reg))
//
//	r.Use(metrics.Middleware)
//	handler := server.NewHandler(server.HandlerConfig{Observer: metrics, ...})
//	hub := live.NewHub(live.WithObserver(metrics))
//
// Metrics collected (namespace "postline" by default):
//   - renders_total: page renders by outcome
//   - render_duration_seconds: page render duration by outcome
//   - open_connections: live connections currently registered
//   - events_relayed_total: relayed mutation events by public kind
//   - deliveries_total: per-recipient sends by result
//   - events_dropped_total: client frames not relayed, by reason
//   - http_requests_total: requests by route pattern, method and status
//   - http_request_duration_seconds: request duration by route pattern
//
// # OpenTelemetry
//
// Tracing starts a server span per request, continuing any trace context
// carried in the request headers:
//
//	r.Use(middleware.Tracing(middleware.WithTracerName("postline")))
//
// The tracer comes from the global provider; configure it with
// otel.SetTracerProvider before starting the server.
package middleware
