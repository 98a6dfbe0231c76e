package document

import (
	"strconv"
	"strings"
)

// Builder writes Markdown in the subset the chunker recognises. Parsers for
// non-Markdown formats use it to map their structure onto headings, list
// items, and paragraphs.
type Builder struct {
	sb strings.Builder
}

// Heading writes an ATX heading. Levels are clamped to 1..6.
func (b *Builder) Heading(level int, title string) {
	title = flatten(title)
	if title == "" {
		return
	}
	level = min(max(level, 1), 6)
	b.block(strings.Repeat("#", level) + " " + title)
}

// Paragraph writes a paragraph, preserving its internal line breaks.
func (b *Builder) Paragraph(text string) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return
	}
	b.block(strings.Join(lines, "\n"))
}

// Bullet writes a "- " list item. Consecutive items are not separated by a
// blank line so they stay one list.
func (b *Builder) Bullet(text string) {
	b.item("- ", text)
}

// Numbered writes an "N. " list item.
func (b *Builder) Numbered(n int, text string) {
	b.item(strconv.Itoa(n)+". ", text)
}

// String returns the Markdown written so far.
func (b *Builder) String() string {
	return b.sb.String()
}

// Len reports the number of bytes written.
func (b *Builder) Len() int {
	return b.sb.Len()
}

func (b *Builder) item(marker, text string) {
	text = flatten(text)
	if text == "" {
		return
	}
	b.sb.WriteString(marker)
	b.sb.WriteString(text)
	b.sb.WriteByte('\n')
}

func (b *Builder) block(s string) {
	if b.sb.Len() > 0 {
		b.sb.WriteByte('\n')
	}
	b.sb.WriteString(s)
	b.sb.WriteString("\n")
}

// flatten collapses all whitespace runs, including newlines, to one space.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
