package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/kgest/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. Each page becomes a "## Page N" section. It
// tries the Go library first and can fall back to pdftotext.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf opens by path.
	tmp, err := os.CreateTemp("", "kgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if (err != nil || strings.TrimSpace(text) == "") && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return &document.Document{
		Title:    strings.TrimSuffix(filename, ".pdf"),
		Filename: filename,
		Markdown: pagesToMarkdown(text),
	}, nil
}

// pagesToMarkdown renders form-feed separated page text as one section per
// non-empty page.
func pagesToMarkdown(text string) string {
	var b document.Builder
	for i, page := range strings.Split(text, "\f") {
		paras := splitParagraphs(page)
		if len(paras) == 0 {
			continue
		}
		b.Heading(2, fmt.Sprintf("Page %d", i+1))
		for _, para := range paras {
			b.Paragraph(para)
		}
	}
	return b.String()
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			buf.WriteString("\f")
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
