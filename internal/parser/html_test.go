package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_StructureToMarkdown(t *testing.T) {
	input := `<html><head><title>Widget Manual</title><script>var x = 1;</script></head>
<body>
<nav><a href="/">Home</a></nav>
<h1>Widgets</h1>
<p>Widgets are
  small.</p>
<h2>Parts</h2>
<ul><li>Gear</li><li>Spring</li></ul>
<ol><li>Open the box</li><li>Turn the gear</li></ol>
<footer>copyright</footer>
</body></html>`

	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "manual.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Widget Manual" {
		t.Errorf("expected title %q, got %q", "Widget Manual", doc.Title)
	}

	want := "# Widgets\n\nWidgets are\nsmall.\n\n## Parts\n- Gear\n- Spring\n1. Open the box\n2. Turn the gear\n"
	if doc.Markdown != want {
		t.Errorf("markdown mismatch\nwant %q\ngot  %q", want, doc.Markdown)
	}
	for _, banned := range []string{"Home", "copyright", "var x"} {
		if strings.Contains(doc.Markdown, banned) {
			t.Errorf("markdown should not contain %q", banned)
		}
	}
}

func TestHTMLParser_TitleFallsBackToFilename(t *testing.T) {
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader("<p>hello</p>"), "page.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "page" {
		t.Errorf("expected %q, got %q", "page", doc.Title)
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := map[string]int{"h1": 1, "h6": 6, "h7": 0, "hr": 0, "p": 0, "": 0}
	for tag, want := range tests {
		if got := headingLevel(tag); got != want {
			t.Errorf("headingLevel(%q) = %d, want %d", tag, got, want)
		}
	}
}
