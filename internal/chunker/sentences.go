package chunker

import (
	"regexp"
	"strings"
)

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// SplitSentences re-segments an oversized paragraph on sentence boundaries.
// Sentences keep their terminator and trailing whitespace, and are packed
// greedily into paragraph chunks of at most MaxParagraphChars. A sentence
// longer than the ceiling is emitted alone; there is no mid-sentence wrap.
//
// Indices run contiguously from start. The size floor is not applied here.
func SplitSentences(text string, ctx *string, start int) []Chunk {
	var chunks []Chunk
	flush := func(s string) {
		chunks = append(chunks, Chunk{
			Content:       strings.TrimSpace(s),
			Type:          TypeParagraph,
			HeaderContext: ctx,
			Index:         start + len(chunks),
		})
	}

	var current strings.Builder
	currentLen := 0
	for _, sent := range sentences(text) {
		n := charLen(sent)
		if currentLen+n > MaxParagraphChars && current.Len() > 0 {
			flush(current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(sent)
		currentLen += n
	}
	if strings.TrimSpace(current.String()) != "" {
		flush(current.String())
	}
	return chunks
}

// sentences cuts text after every terminator run, so concatenating the
// result gives back text unchanged.
func sentences(text string) []string {
	var out []string
	prev := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		out = append(out, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}
