// Package server renders pages for incoming requests and hosts the live
// relay endpoint.
//
// # Render Orchestration
//
// Handler drives one request through four steps:
//
//  1. Match the path against the route table. A redirect answers 302; an
//     unmatched path is passed to the next handler.
//  2. Prefetch the data every matched component declares, concurrently.
//  3. Render the component tree to markup and head fragments.
//  4. Assemble the document with the frozen state snapshot.
//
// Any failure in steps 1 to 4 ends in an error document with an empty
// state snapshot and status 500. Outside production the document carries
// a coded trace of the failure. Nothing is retried.
//
// # Server
//
// Server mounts the orchestrator behind a chi router together with the
// WebSocket relay, static assets, the metrics endpoint and any API routes:
//
//	srv := server.New(cfg, handler, hub,
//	    server.WithMetrics(collector, registry),
//	    server.WithRoutes(blog.MountAPI),
//	)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then drains the live hub and shuts
// the HTTP server down gracefully.
package server
