package render

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorPage builds the page shown when a render fails. The trace is included
// only outside production.
func ErrorPage(production bool, status int, trace string) PageData {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	text := http.StatusText(status)

	var b strings.Builder
	b.WriteString(`<main class="error">`)
	fmt.Fprintf(&b, "<h1>%d %s</h1>", status, escapeHTML(text))
	b.WriteString("<p>Something went wrong while rendering this page.</p>")
	if !production && trace != "" {
		fmt.Fprintf(&b, `<pre class="trace">%s</pre>`, escapeHTML(trace))
	}
	b.WriteString("</main>")

	return PageData{
		Markup: b.String(),
		Head:   Head{Title: fmt.Sprintf("%d %s", status, text)},
	}
}
