package parser

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"a.md", false},
		{"a.MARKDOWN", false},
		{"a.txt", false},
		{"a.csv", false},
		{"a.html", false},
		{"a.htm", false},
		{"a.pdf", false},
		{"a.docx", false},
		{"a.doc", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename, Options{})
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) err = %v, wantErr %v", tt.filename, err, tt.wantErr)
		}
		if IsSupportedExtension(tt.filename) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.filename)
		}
	}
}

func TestForFile_PDFOptions(t *testing.T) {
	p, err := ForFile("x.pdf", Options{PDFFallbackPdftotext: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pp, ok := p.(*PDFParser)
	if !ok || !pp.FallbackPdftotext {
		t.Errorf("expected PDF parser with fallback enabled, got %#v", p)
	}
}

func TestParse_NormalizesAndFillsMetadata(t *testing.T) {
	doc, err := Parse(strings.NewReader("\ufeffline\r\n"), "dir/notes.txt", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Markdown != "line\n" {
		t.Errorf("got %q", doc.Markdown)
	}
	if doc.Filename != "dir/notes.txt" {
		t.Errorf("filename = %q", doc.Filename)
	}
}

func TestParse_InvalidUTF8(t *testing.T) {
	if _, err := Parse(strings.NewReader("bad \xff byte"), "x.md", Options{}); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestPagesToMarkdown(t *testing.T) {
	got := pagesToMarkdown("first page\n\nsecond para\f  \fthird page")
	want := "## Page 1\n\nfirst page\n\nsecond para\n\n## Page 3\n\nthird page\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDocxStyles(t *testing.T) {
	levels := map[string]int{"Heading1": 1, "heading 3": 3, "Heading7": 0, "Title": 0, "": 0}
	for style, want := range levels {
		if got := docxHeadingLevel(style); got != want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", style, got, want)
		}
	}
	if !isListStyle("ListParagraph") || isListStyle("Normal") {
		t.Error("isListStyle misclassified")
	}
	if !isNumberedListStyle("List Number 2") || isNumberedListStyle("ListBullet") {
		t.Error("isNumberedListStyle misclassified")
	}
}
