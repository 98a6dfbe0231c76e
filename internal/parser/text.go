package parser

import (
	"io"

	"github.com/dgallion1/kgest/internal/document"
)

// TextParser handles plain text files. Paragraphs are separated by blank
// lines; nothing else is interpreted.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := document.Normalize(string(src))
	if err != nil {
		return nil, err
	}

	var b document.Builder
	for _, para := range splitParagraphs(text) {
		b.Paragraph(para)
	}
	return &document.Document{
		Title:    document.Stem(filename),
		Filename: filename,
		Markdown: b.String(),
	}, nil
}
