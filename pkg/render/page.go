package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Global bindings the client reads on boot.
const (
	StateBinding  = "__INITIAL_STATE__"
	ChunksBinding = "__CHUNKS__"
)

// Head carries the document head fragments produced while rendering a page.
type Head struct {
	Title string
	Meta  []MetaTag
	Links []LinkTag
}

// Merge returns h extended with inner. A non-empty inner title replaces the
// outer one; meta and link tags accumulate in order.
func (h Head) Merge(inner Head) Head {
	out := Head{
		Title: h.Title,
		Meta:  append(append([]MetaTag(nil), h.Meta...), inner.Meta...),
		Links: append(append([]LinkTag(nil), h.Links...), inner.Links...),
	}
	if inner.Title != "" {
		out.Title = inner.Title
	}
	return out
}

// MetaTag represents a meta element in the document head.
type MetaTag struct {
	Name     string // name attribute
	Content  string // content attribute
	Property string // property attribute (for OpenGraph)
}

// LinkTag represents a link element in the document head.
type LinkTag struct {
	Rel  string
	Href string
	Type string
}

// AssetLookup resolves logical asset names to their built paths.
// *assets.Manifest satisfies it.
type AssetLookup interface {
	Resolve(source string) string
	All() map[string]string
}

// AssemblerConfig configures document assembly.
type AssemblerConfig struct {
	// Production switches asset references to the manifest and emits the
	// chunk metadata binding.
	Production bool

	// Assets is consulted in production. A nil lookup leaves names unchanged.
	Assets AssetLookup

	// AssetPrefix is prepended to manifest-resolved paths.
	// Default: "/static/".
	AssetPrefix string

	// Stylesheet and Script are the manifest keys of the main bundle.
	// Defaults: "main.css", "main.js".
	Stylesheet string
	Script     string

	// DevStylesheet and DevScript are the fixed development paths.
	// Defaults: "/static/main.css", "/static/main.js".
	DevStylesheet string
	DevScript     string

	// Lang is the html lang attribute. Default: "en".
	Lang string
}

// PageData is the input to a single document assembly.
type PageData struct {
	// Markup is the rendered component tree, placed inside the mount node.
	Markup string

	// Head holds the fragments collected during rendering.
	Head Head

	// State is serialized into the initial-state binding. A nil state is
	// written as {}.
	State any
}

// Assembler wraps rendered markup and state into complete HTML documents.
// It performs no I/O beyond writing to the destination and is safe for
// concurrent use.
type Assembler struct {
	config AssemblerConfig
}

// NewAssembler creates an Assembler, filling unset fields with defaults.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.AssetPrefix == "" {
		cfg.AssetPrefix = "/static/"
	}
	if cfg.Stylesheet == "" {
		cfg.Stylesheet = "main.css"
	}
	if cfg.Script == "" {
		cfg.Script = "main.js"
	}
	if cfg.DevStylesheet == "" {
		cfg.DevStylesheet = "/static/main.css"
	}
	if cfg.DevScript == "" {
		cfg.DevScript = "/static/main.js"
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	return &Assembler{config: cfg}
}

// Production reports whether the assembler runs in production mode.
func (a *Assembler) Production() bool {
	return a.config.Production
}

// Assemble returns the complete document as a string.
func (a *Assembler) Assemble(page PageData) (string, error) {
	var buf bytes.Buffer
	if err := a.RenderPage(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPage writes a complete HTML document to w.
func (a *Assembler) RenderPage(w io.Writer, page PageData) error {
	state := page.State
	if state == nil {
		state = struct{}{}
	}
	stateJSON, err := inlineJSON(state)
	if err != nil {
		return fmt.Errorf("render: serialize state: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, "<html lang=\"%s\">\n", escapeAttr(a.config.Lang))

	a.writeHead(&b, page.Head)

	b.WriteString("<body>\n")
	b.WriteString(`<div id="root">`)
	b.WriteString(page.Markup)
	b.WriteString("</div>\n")

	fmt.Fprintf(&b, "<script>window.%s = %s;</script>\n", StateBinding, stateJSON)
	if a.config.Production {
		chunksJSON, err := inlineJSON(a.chunks())
		if err != nil {
			return fmt.Errorf("render: serialize chunks: %w", err)
		}
		fmt.Fprintf(&b, "<script>window.%s = %s;</script>\n", ChunksBinding, chunksJSON)
	}
	fmt.Fprintf(&b, "<script src=\"%s\" defer></script>\n", escapeAttr(a.scriptHref()))
	b.WriteString("</body>\n</html>\n")

	_, err = io.WriteString(w, b.String())
	return err
}

func (a *Assembler) writeHead(b *strings.Builder, head Head) {
	b.WriteString("<head>\n")
	b.WriteString(`  <meta charset="utf-8">` + "\n")
	b.WriteString(`  <meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")

	if head.Title != "" {
		fmt.Fprintf(b, "  <title>%s</title>\n", escapeHTML(head.Title))
	}
	for _, meta := range head.Meta {
		writeMetaTag(b, meta)
	}
	for _, link := range head.Links {
		writeLinkTag(b, link)
	}

	fmt.Fprintf(b, "  <link rel=\"stylesheet\" href=\"%s\">\n", escapeAttr(a.stylesheetHref()))
	b.WriteString("</head>\n")
}

func writeMetaTag(b *strings.Builder, meta MetaTag) {
	b.WriteString("  <meta")
	if meta.Name != "" {
		fmt.Fprintf(b, ` name="%s"`, escapeAttr(meta.Name))
	}
	if meta.Property != "" {
		fmt.Fprintf(b, ` property="%s"`, escapeAttr(meta.Property))
	}
	if meta.Content != "" {
		fmt.Fprintf(b, ` content="%s"`, escapeAttr(meta.Content))
	}
	b.WriteString(">\n")
}

func writeLinkTag(b *strings.Builder, link LinkTag) {
	b.WriteString("  <link")
	if link.Rel != "" {
		fmt.Fprintf(b, ` rel="%s"`, escapeAttr(link.Rel))
	}
	if link.Href != "" {
		fmt.Fprintf(b, ` href="%s"`, escapeAttr(link.Href))
	}
	if link.Type != "" {
		fmt.Fprintf(b, ` type="%s"`, escapeAttr(link.Type))
	}
	b.WriteString(">\n")
}

func (a *Assembler) stylesheetHref() string {
	if !a.config.Production {
		return a.config.DevStylesheet
	}
	return a.assetHref(a.config.Stylesheet)
}

func (a *Assembler) scriptHref() string {
	if !a.config.Production {
		return a.config.DevScript
	}
	return a.assetHref(a.config.Script)
}

func (a *Assembler) assetHref(name string) string {
	resolved := name
	if a.config.Assets != nil {
		resolved = a.config.Assets.Resolve(name)
	}
	if isAbsoluteRef(resolved) {
		return resolved
	}
	return a.config.AssetPrefix + resolved
}

// chunks returns the script entries of the manifest, each mapped to its
// public path.
func (a *Assembler) chunks() map[string]string {
	out := make(map[string]string)
	if a.config.Assets == nil {
		return out
	}
	for name := range a.config.Assets.All() {
		if strings.HasSuffix(name, ".js") {
			out[name] = a.assetHref(name)
		}
	}
	return out
}

func isAbsoluteRef(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
