// Package render assembles complete HTML documents around rendered markup.
//
// An Assembler wraps the markup produced by the view layer together with the
// page's initial state:
//
//	asm := render.NewAssembler(render.AssemblerConfig{
//	    Production: true,
//	    Assets:     manifest,
//	})
//	html, err := asm.Assemble(render.PageData{
//	    Markup: markup,
//	    Head:   head,
//	    State:  snapshot,
//	})
//
// The state is serialized into window.__INITIAL_STATE__ so the client can
// resume without refetching. In production the stylesheet and client script
// are resolved through the asset manifest and the manifest's script chunks
// are published as window.__CHUNKS__; in development fixed paths are used.
//
// # Security
//
// Text and attribute values are escaped. Inline JSON is encoded with <, >
// and & escaped so state values cannot terminate the script element.
package render
