package chunker

import (
	"regexp"
	"strings"
)

// LineKind is the structural category of a single Markdown line.
type LineKind int

const (
	KindBlank LineKind = iota
	KindHeader
	KindNumbered
	KindBulleted
	KindPlain
)

func (k LineKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindHeader:
		return "header"
	case KindNumbered:
		return "numbered"
	case KindBulleted:
		return "bulleted"
	default:
		return "plain"
	}
}

// Line is the classification of one line. Level is set for headers only;
// Text holds the header title or the list item text.
type Line struct {
	Kind  LineKind
	Level int
	Text  string
}

var (
	headerRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	numberedRe = regexp.MustCompile(`^\d+\.\s+(.+)$`)
	bulletedRe = regexp.MustCompile(`^[-*+]\s+(.+)$`)
)

// Classify puts a line into exactly one category. Patterns are anchored at
// the first column, so an indented "- item" is plain text here.
func Classify(line string) Line {
	if strings.TrimSpace(line) == "" {
		return Line{Kind: KindBlank}
	}
	if m := headerRe.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindHeader, Level: len(m[1]), Text: strings.TrimSpace(m[2])}
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindNumbered, Text: strings.TrimSpace(m[1])}
	}
	if m := bulletedRe.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindBulleted, Text: strings.TrimSpace(m[1])}
	}
	return Line{Kind: KindPlain}
}

// isItem reports whether the line starts a numbered or bulleted item.
func (l Line) isItem() bool {
	return l.Kind == KindNumbered || l.Kind == KindBulleted
}

// itemType maps a list line to the chunk type it produces.
func (l Line) itemType() ChunkType {
	if l.Kind == KindNumbered {
		return TypeNumberedItem
	}
	return TypeBulletedItem
}
