package errors

import (
	"fmt"
	"io"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

// colorEnabled controls whether FormatTerminal uses ANSI colors.
var colorEnabled = true

// SetColor turns ANSI color output on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

type palette struct {
	header func(string) string
	label  func(string) string
	dim    func(string) string
}

func plain(s string) string { return s }

func color(code string) func(string) string {
	return func(s string) string {
		if !colorEnabled {
			return s
		}
		return code + s + colorReset
	}
}

var (
	plainPalette    = palette{header: plain, label: plain, dim: plain}
	terminalPalette = palette{header: color(colorRed + colorBold), label: color(colorCyan), dim: color(colorGray)}
)

// Format returns the error as plain text, suitable for a <pre> block in
// the development error document.
func (e *PageError) Format() string {
	return e.format(plainPalette)
}

// FormatTerminal returns the error with ANSI colors for the CLI.
func (e *PageError) FormatTerminal() string {
	return "\n" + e.format(terminalPalette)
}

func (e *PageError) format(p palette) string {
	var b strings.Builder

	if e.Code != "" {
		b.WriteString(p.header("[" + e.Code + "] "))
	}
	b.WriteString(p.header(e.Message))
	b.WriteString("\n")

	if e.Path != "" || e.Component != "" {
		b.WriteString("\n")
		if e.Path != "" {
			fmt.Fprintf(&b, "  %s %s\n", p.label("path:     "), e.Path)
		}
		if e.Component != "" {
			fmt.Fprintf(&b, "  %s %s\n", p.label("component:"), e.Component)
		}
	}

	if e.Detail != "" {
		b.WriteString("\n")
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if chain := e.Chain(); len(chain) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s %s\n", p.label("cause:"), chain[0])
		for _, msg := range chain[1:] {
			fmt.Fprintf(&b, "  %s %s\n", p.dim("  <-"), msg)
		}
	}

	if e.Suggestion != "" {
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s %s\n", p.label("hint:"), e.Suggestion)
	}

	if len(e.Stack) > 0 || e.RawStack != "" {
		b.WriteString("\n")
		b.WriteString("  ")
		b.WriteString(p.label("stack:"))
		b.WriteString("\n")
		for _, f := range e.Stack {
			fmt.Fprintf(&b, "    %s\n", f.Function)
			fmt.Fprintf(&b, "      %s\n", p.dim(fmt.Sprintf("%s:%d", f.File, f.Line)))
		}
		if e.RawStack != "" {
			for _, line := range strings.Split(strings.TrimRight(e.RawStack, "\n"), "\n") {
				b.WriteString("    ")
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// FormatCompact returns a compact single-line error format for logs.
func (e *PageError) FormatCompact() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Path != "" {
		b.WriteString(" path=")
		b.WriteString(e.Path)
	}
	if e.Component != "" {
		b.WriteString(" component=")
		b.WriteString(e.Component)
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// PrintError writes a formatted error to w. PageErrors use the terminal
// format; other errors get a single ERROR line.
func PrintError(w io.Writer, err error) {
	if pe, ok := err.(*PageError); ok {
		fmt.Fprint(w, pe.FormatTerminal())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", color(colorRed+colorBold)("ERROR:"), err.Error())
}
