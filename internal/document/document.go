package document

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Document is a parsed upload rendered to Markdown, ready for chunking.
type Document struct {
	Title    string // From metadata, the first H1, or the filename.
	Filename string
	Markdown string
}

var ErrInvalidUTF8 = errors.New("document is not valid UTF-8")

// Normalize prepares raw text for the chunker: it rejects invalid UTF-8,
// converts CRLF and lone CR to LF, and composes to NFC so lengths are
// counted the same way for equivalent input.
func Normalize(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s), nil
}

// Stem strips the extension from a filename for use as a fallback title.
func Stem(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		return filename[:i]
	}
	return filename
}
