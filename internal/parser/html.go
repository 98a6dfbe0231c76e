package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/kgest/internal/document"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Headings map to Markdown headers, list
// items to list lines, and block text to paragraphs.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &document.Document{
		Title:    strings.TrimSuffix(strings.TrimSuffix(filename, ".html"), ".htm"),
		Filename: filename,
	}
	if title := findTitle(root); title != "" {
		out.Title = title
	}

	var b document.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				b.Heading(level, textContent(n))
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "li":
				if n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "ol" {
					b.Numbered(itemOrdinal(n), textContent(n))
				} else {
					b.Bullet(textContent(n))
				}
				return
			case "p", "td", "blockquote", "pre":
				if t := textContent(n); t != "" {
					b.Paragraph(t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	out.Markdown = b.String()
	return out, nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// itemOrdinal is the 1-based position of an <li> among its element siblings.
func itemOrdinal(li *html.Node) int {
	n := 1
	for s := li.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == "li" {
			n++
		}
	}
	return n
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
