// Package highlight turns raw container output into terminal-styled lines:
// SQL highlighting for the database, access-log highlighting for the rest.
package highlight

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// Format styles one complete line
type Format func(line string) string

// Printer buffers a byte stream into lines and styles each line.
type Printer struct {
	lines  LineBuffer
	format Format
}

// NewPrinter wraps format with a line buffer
func NewPrinter(format Format) *Printer {
	return &Printer{format: format}
}

// ForContainer picks the printer for a container key
func ForContainer(key string) *Printer {
	if key == "db" {
		return NewPrinter(SQL)
	}
	return NewPrinter(AccessLog)
}

// Write consumes a chunk and returns the styled lines it completed
func (p *Printer) Write(data []byte) []string {
	return p.apply(p.lines.Write(data))
}

// Flush styles whatever partial line is left
func (p *Printer) Flush() []string {
	return p.apply(p.lines.Flush())
}

func (p *Printer) apply(lines []string) []string {
	for i, l := range lines {
		lines[i] = p.format(l)
	}
	return lines
}

var (
	SQLStyle     = "monokai"
	SQLFormatter = "terminal256"
)

// SQL highlights one line of SQL (or Postgres log output containing SQL).
// The line is returned unstyled when the highlighter fails.
func SQL(line string) string {
	if strings.TrimSpace(line) == "" {
		return line
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, line, "postgresql", SQLFormatter, SQLStyle); err != nil {
		return line
	}
	// the lexer terminates its input with a newline
	return strings.ReplaceAll(buf.String(), "\n", "")
}

var markupSpan = regexp.MustCompile(`<span class="hljs-string">|</span>`)

// StripMarkupSpans removes the literal highlight.js spans that leak into
// access-log output.
func StripMarkupSpans(s string) string {
	return markupSpan.ReplaceAllString(s, "")
}
