// Package errors provides coded, developer-facing errors for postline.
//
// A PageError carries a registered code, the request path and component
// involved, the wrapped cause chain and a captured stack. Outside
// production the render orchestrator embeds its Format output in the
// error document; the CLI prints configuration errors with FormatTerminal.
//
// # Error Codes
//
//   - E1xx: render pipeline (route resolution, prefetch, render, assembly)
//   - E2xx: configuration
//   - E3xx: server lifecycle
//
// # Usage
//
//	err := errors.New("E102").
//	    WithPath("/posts/42").
//	    WithComponent("PostDetail").
//	    Wrap(cause).
//	    WithStack(0)
//
//	fmt.Println(err.Format())
//	// [E102] Data prefetch failed
//	//
//	//   path:      /posts/42
//	//   component: PostDetail
//	//
//	//   cause: prefetch: PostDetail (posts): store: not found
//	//   ...
package errors
