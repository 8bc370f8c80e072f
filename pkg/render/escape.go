package render

import (
	"bytes"
	"encoding/json"
	"strings"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// escapeHTML escapes text for safe inclusion in HTML content.
func escapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// escapeAttr escapes text for a double-quoted attribute value. Whitespace
// control characters are escaped as well so values survive reformatting.
func escapeAttr(s string) string {
	return attrReplacer.Replace(s)
}

// inlineJSON serializes v for embedding inside an inline <script> element.
//
// The encoder escapes <, > and & as \u003c, \u003e and \u0026, so no
// "</script>" or "<!--" sequence can appear in the output, and it escapes
// U+2028 and U+2029, which older JavaScript parsers treat as line breaks.
func inlineJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
