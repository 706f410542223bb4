package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[1;31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() { colorEnabled = false }

// EnableColors enables ANSI color output.
func EnableColors() { colorEnabled = true }

func paint(code, text string) string {
	if !colorEnabled || text == "" {
		return text
	}
	return code + text + ansiReset
}

// gutter is the width of the line-number column in source snippets.
const gutter = 4

// Format renders the error for a terminal: a header, the source snippet
// with the offending fragment underlined, the import chain of a boundary
// violation, then detail and hint.
func (e *Error) Format() string {
	var b strings.Builder
	b.WriteString("\n")
	e.writeHeader(&b)

	if e.Location != nil {
		fmt.Fprintf(&b, "  %s\n\n", paint(ansiCyan, e.Location.String()))
	}
	if len(e.Context) > 0 {
		e.writeSnippet(&b)
	} else if e.Fragment != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", paint(ansiGray, "near: "), paint(ansiYellow, e.Fragment))
	}
	if len(e.Chain) > 1 {
		e.writeChain(&b)
	}
	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", paint(ansiCyan, "Hint: "), e.Suggestion)
	}
	return b.String()
}

func (e *Error) writeHeader(b *strings.Builder) {
	label := "ERROR: "
	if e.Code != "" {
		label = "ERROR " + e.Code + ": "
	}
	b.WriteString(paint(ansiRed, label))
	b.WriteString(e.Message)
	b.WriteString("\n\n")
}

// writeSnippet prints Context with the Location line marked. The marker
// underlines Fragment when the line contains it, otherwise it points at
// the column.
func (e *Error) writeSnippet(b *strings.Builder) {
	first := e.contextStart()
	bar := paint(ansiGray, " │ ")
	for i, line := range e.Context {
		n := first + i
		if e.Location == nil || n != e.Location.Line {
			fmt.Fprintf(b, "    %*d%s%s\n", gutter, n, bar, line)
			continue
		}
		fmt.Fprintf(b, "  %s%*d%s%s\n", paint(ansiRed, "→ "), gutter, n, bar, line)
		if start, width := e.marker(line); width > 0 {
			fmt.Fprintf(b, "  %*s%s%s%s\n", gutter+2, "", bar,
				strings.Repeat(" ", start), paint(ansiRed, strings.Repeat("^", width)))
		}
	}
	b.WriteString("\n")
}

// marker returns the offset and width to underline on the error line.
func (e *Error) marker(line string) (int, int) {
	col := e.Location.Column - 1
	if e.Fragment != "" {
		if col >= 0 && col <= len(line) && strings.HasPrefix(line[col:], e.Fragment) {
			return col, len(e.Fragment)
		}
		if i := strings.Index(line, e.Fragment); i >= 0 {
			return i, len(e.Fragment)
		}
	}
	if col >= 0 {
		return col, 1
	}
	return 0, 0
}

// writeChain prints the import path from the client module to the server
// module, relative to the client's directory.
func (e *Error) writeChain(b *strings.Builder) {
	base := filepath.Dir(e.Chain[0])
	b.WriteString(paint(ansiGray, "  import chain:"))
	b.WriteString("\n")
	for i, p := range e.Chain {
		if rel, err := filepath.Rel(base, p); err == nil {
			p = rel
		}
		arrow := "  "
		if i > 0 {
			arrow = "→ "
		}
		fmt.Fprintf(b, "    %s%s\n", arrow, p)
	}
	b.WriteString("\n")
}

// FormatCompact returns "file:line:col: CODE: message".
func (e *Error) FormatCompact() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

type jsonError struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Fragment   string        `json:"fragment,omitempty"`
	Chain      []string      `json:"chain,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// FormatJSON returns the error as a JSON object.
func (e *Error) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Fragment:   e.Fragment,
		Chain:      e.Chain,
		Suggestion: e.Suggestion,
	}
	if e.Location != nil {
		out.Location = &jsonLocation{File: e.Location.File, Line: e.Location.Line, Column: e.Location.Column}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(data)
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
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// PrintError prints err to stderr, formatted when it is an *Error.
func PrintError(err error) {
	fprintError(os.Stderr, err)
}

func fprintError(w io.Writer, err error) {
	if e, ok := err.(*Error); ok {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\n%s%s\n\n", paint(ansiRed, "ERROR: "), err.Error())
}
