package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/kgest/internal/document"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles become Markdown headers and
// list styles become list items.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// go-docx needs a ReaderAt plus size.
	tmp, err := os.CreateTemp("", "kgest-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var b document.Builder
	numbered := 0
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		style := docxStyle(para)
		switch {
		case docxHeadingLevel(style) > 0:
			b.Heading(docxHeadingLevel(style), text)
			numbered = 0
		case isNumberedListStyle(style):
			numbered++
			b.Numbered(numbered, text)
		case isListStyle(style):
			b.Bullet(text)
			numbered = 0
		default:
			b.Paragraph(text)
			numbered = 0
		}
	}

	return &document.Document{
		Title:    strings.TrimSuffix(filename, ".docx"),
		Filename: filename,
		Markdown: b.String(),
	}, nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxHeadingLevel maps "Heading1" or "heading 1" style names to a level.
func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if len(s) == len("heading1") && strings.HasPrefix(s, "heading") {
		if d := s[len(s)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

func isListStyle(style string) bool {
	return strings.Contains(strings.ToLower(style), "list")
}

func isNumberedListStyle(style string) bool {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.HasPrefix(s, "listnumber")
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
