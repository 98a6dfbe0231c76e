package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/kgest/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser passes Markdown through untouched. goldmark is only used to
// find the document title.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	md, err := document.Normalize(string(src))
	if err != nil {
		return nil, err
	}

	title := firstHeading([]byte(md))
	if title == "" {
		title = document.Stem(filename)
	}
	return &document.Document{
		Title:    title,
		Filename: filename,
		Markdown: md,
	}, nil
}

// firstHeading returns the text of the first top-level H1, or "".
func firstHeading(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return inlineText(h, src)
		}
	}
	return ""
}

// inlineText concatenates the text segments under a goldmark node.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
