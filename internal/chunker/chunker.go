package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinChunkChars is the smallest chunk, in characters, that is emitted.
	MinChunkChars = 50
	// MaxParagraphChars is the paragraph length above which a paragraph is
	// re-split on sentence boundaries.
	MaxParagraphChars = 2000
)

// ChunkType identifies which rule produced a chunk.
type ChunkType string

const (
	TypeHeaderSection ChunkType = "header_section"
	TypeNumberedItem  ChunkType = "numbered_item"
	TypeBulletedItem  ChunkType = "bulleted_item"
	TypeParagraph     ChunkType = "paragraph"
)

// Chunk is a bounded piece of a Markdown document plus the header lineage it
// sits under.
type Chunk struct {
	Content       string    `json:"content"`
	Type          ChunkType `json:"chunk_type"`
	HeaderContext *string   `json:"header_context"`
	Index         int       `json:"chunk_index"`
}

// Context returns the header breadcrumb, or "" when the chunk has none.
func (c Chunk) Context() string {
	if c.HeaderContext == nil {
		return ""
	}
	return *c.HeaderContext
}

// Split segments a Markdown document into chunks using the headers-first
// strategy. Input must already use "\n" line endings.
//
// Each header swallows every line up to the next header of any level. The
// section body is split into list items when it has any; otherwise it becomes
// one header_section chunk. Chunks from a section carry the breadcrumb of the
// header's ancestors, not the header itself. Lists and paragraphs that appear
// before the first header carry the whole (empty) stack.
func Split(text string) []Chunk {
	b := &builder{lines: strings.Split(text, "\n")}
	b.run()
	return b.chunks
}

type headerEntry struct {
	level int
	raw   string
}

// headerStack holds the chain of open headers, shallowest first.
type headerStack []headerEntry

// push closes every header at the same or a deeper level, then opens raw.
func (s *headerStack) push(level int, raw string) {
	kept := (*s)[:0]
	for _, h := range *s {
		if h.level < level {
			kept = append(kept, h)
		}
	}
	*s = append(kept, headerEntry{level: level, raw: raw})
}

// ancestors is the breadcrumb of everything below the top entry.
func (s headerStack) ancestors() *string {
	if len(s) == 0 {
		return nil
	}
	return s[:len(s)-1].breadcrumb()
}

// breadcrumb joins the titles of all entries, or nil for an empty stack.
func (s headerStack) breadcrumb() *string {
	if len(s) == 0 {
		return nil
	}
	titles := make([]string, len(s))
	for i, h := range s {
		titles[i] = strings.TrimSpace(strings.ReplaceAll(h.raw, "#", ""))
	}
	bc := strings.Join(titles, " > ")
	return &bc
}

type builder struct {
	lines  []string
	pos    int
	stack  headerStack
	chunks []Chunk
}

func (b *builder) run() {
	for b.pos < len(b.lines) {
		line := rtrim(b.lines[b.pos])
		cl := Classify(line)
		switch cl.Kind {
		case KindBlank:
			b.pos++
		case KindHeader:
			b.header(cl.Level, line)
		case KindNumbered, KindBulleted:
			b.pos++
			var text string
			b.pos, text = absorbItem(b.lines, b.pos, cl.Text)
			b.emit(text, cl.itemType(), b.stack.breadcrumb())
		default:
			b.paragraph(line)
		}
	}
}

// header opens a section and consumes its body up to the next header.
func (b *builder) header(level int, raw string) {
	b.stack.push(level, raw)
	b.pos++

	var body []string
	for b.pos < len(b.lines) {
		next := rtrim(b.lines[b.pos])
		if Classify(next).Kind == KindHeader {
			break
		}
		if strings.TrimSpace(next) != "" {
			body = append(body, next)
		}
		b.pos++
	}
	if len(body) == 0 {
		return
	}

	ctx := b.stack.ancestors()
	if items := splitSectionLists(body, ctx, len(b.chunks)); len(items) > 0 {
		b.chunks = append(b.chunks, items...)
		return
	}
	b.emit(strings.Join(body, "\n"), TypeHeaderSection, ctx)
}

// paragraph consumes plain lines until a blank line, header, or list item.
func (b *builder) paragraph(first string) {
	para := []string{first}
	b.pos++
	for b.pos < len(b.lines) {
		next := rtrim(b.lines[b.pos])
		cl := Classify(next)
		if cl.Kind == KindBlank || cl.Kind == KindHeader || cl.isItem() {
			break
		}
		para = append(para, next)
		b.pos++
	}

	content := strings.TrimSpace(strings.Join(para, "\n"))
	ctx := b.stack.breadcrumb()
	if charLen(content) > MaxParagraphChars {
		for _, c := range SplitSentences(content, ctx, len(b.chunks)) {
			b.emit(c.Content, c.Type, c.HeaderContext)
		}
		return
	}
	b.emit(content, TypeParagraph, ctx)
}

// emit appends a chunk when it clears the size floor. Indices are assigned
// here so dropped candidates never consume one.
func (b *builder) emit(content string, typ ChunkType, ctx *string) {
	if charLen(strings.TrimSpace(content)) < MinChunkChars {
		return
	}
	b.chunks = append(b.chunks, Chunk{
		Content:       content,
		Type:          typ,
		HeaderContext: ctx,
		Index:         len(b.chunks),
	})
}

// splitSectionLists emits one chunk per list item found in a section body.
// Lines before the first item are not chunked; lines after an item are
// merged into it as continuations.
func splitSectionLists(body []string, ctx *string, start int) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(body); {
		cl := Classify(strings.TrimSpace(body[i]))
		i++
		if !cl.isItem() {
			continue
		}
		var text string
		i, text = absorbItem(body, i, cl.Text)
		if charLen(strings.TrimSpace(text)) < MinChunkChars {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:       text,
			Type:          cl.itemType(),
			HeaderContext: ctx,
			Index:         start + len(chunks),
		})
	}
	return chunks
}

// absorbItem appends continuation lines to a list item starting at lines[i].
// It stops at a blank line, another item, or a header and returns the index
// of the first unconsumed line.
func absorbItem(lines []string, i int, text string) (int, string) {
	var sb strings.Builder
	sb.WriteString(text)
	for ; i < len(lines); i++ {
		next := rtrim(lines[i])
		cl := Classify(next)
		if cl.Kind == KindBlank || cl.Kind == KindHeader || cl.isItem() {
			break
		}
		sb.WriteByte(' ')
		if strings.HasPrefix(next, " ") || strings.HasPrefix(next, "\t") {
			sb.WriteString(strings.TrimSpace(next))
		} else {
			sb.WriteString(next)
		}
	}
	return i, sb.String()
}

func rtrim(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// charLen counts characters, not bytes.
func charLen(s string) int {
	return utf8.RuneCountInString(s)
}
