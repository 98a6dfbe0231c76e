// Package search keeps a full-text index over stored chunks.
package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/dgallion1/kgest/internal/chunker"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	deleteBatch  = 500

	// DefaultLockTimeout bounds the wait for another process's lock on an
	// on-disk index.
	DefaultLockTimeout = 5 * time.Second
)

// Hit is one matching chunk.
type Hit struct {
	DocID         string  `json:"doc_id"`
	ChunkIndex    int     `json:"chunk_index"`
	ChunkType     string  `json:"chunk_type"`
	HeaderContext string  `json:"header_context,omitempty"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
}

type chunkDoc struct {
	DocID         string `json:"doc_id"`
	ChunkIndex    int    `json:"chunk_index"`
	ChunkType     string `json:"chunk_type"`
	HeaderContext string `json:"header_context"`
	Content       string `json:"content"`
}

// Index wraps a bleve index of chunks.
type Index struct {
	idx bleve.Index
}

func newMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()
	text := bleve.NewTextFieldMapping()
	number := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("doc_id", keyword)
	doc.AddFieldMappingsAt("chunk_type", keyword)
	doc.AddFieldMappingsAt("chunk_index", number)
	doc.AddFieldMappingsAt("header_context", text)
	doc.AddFieldMappingsAt("content", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Open opens the index at path, creating it if missing. An empty path gives
// an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{idx: idx}, nil
	}

	idx, err := bleve.OpenUsing(path, runtimeConfig(false, DefaultLockTimeout))
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// OpenReadOnly opens an existing on-disk index for searching only. It gives
// up after lockTimeout if another process holds the index open for writing.
func OpenReadOnly(path string, lockTimeout time.Duration) (*Index, error) {
	if path == "" {
		return nil, errors.New("open index: empty path")
	}
	idx, err := bleve.OpenUsing(path, runtimeConfig(true, lockTimeout))
	if err != nil {
		return nil, fmt.Errorf("open index %s read-only: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

func runtimeConfig(readOnly bool, lockTimeout time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"read_only":    readOnly,
		"bolt_timeout": lockTimeout.String(),
	}
}

func (ix *Index) Close() error {
	return ix.idx.Close()
}

func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s#%d", docID, index)
}

// IndexChunks adds or replaces the chunks of one document.
func (ix *Index) IndexChunks(docID string, chunks []chunker.Chunk) error {
	batch := ix.idx.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{
			DocID:         docID,
			ChunkIndex:    c.Index,
			ChunkType:     string(c.Type),
			HeaderContext: c.Context(),
			Content:       c.Content,
		}
		if err := batch.Index(chunkID(docID, c.Index), doc); err != nil {
			return fmt.Errorf("batch chunk %d: %w", c.Index, err)
		}
	}
	if err := ix.idx.Batch(batch); err != nil {
		return fmt.Errorf("index chunks of %s: %w", docID, err)
	}
	return nil
}

// Search runs a match query over chunk text and breadcrumbs, optionally
// restricted to one document. limit is clamped to [1, 100]; zero means 10.
func (ix *Index) Search(text, docID string, limit int) ([]Hit, error) {
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}

	match := bleve.NewMatchQuery(text)
	var req *bleve.SearchRequest
	if docID != "" {
		req = bleve.NewSearchRequest(bleve.NewConjunctionQuery(match, docTerm(docID)))
	} else {
		req = bleve.NewSearchRequest(match)
	}
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		if v, ok := h.Fields["doc_id"].(string); ok {
			hit.DocID = v
		}
		if v, ok := h.Fields["chunk_index"].(float64); ok {
			hit.ChunkIndex = int(v)
		}
		if v, ok := h.Fields["chunk_type"].(string); ok {
			hit.ChunkType = v
		}
		if v, ok := h.Fields["header_context"].(string); ok {
			hit.HeaderContext = v
		}
		if v, ok := h.Fields["content"].(string); ok {
			hit.Content = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteDocument removes every chunk of docID from the index.
func (ix *Index) DeleteDocument(docID string) error {
	for {
		req := bleve.NewSearchRequest(docTerm(docID))
		req.Size = deleteBatch
		res, err := ix.idx.Search(req)
		if err != nil {
			return fmt.Errorf("find chunks of %s: %w", docID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := ix.idx.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := ix.idx.Batch(batch); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", docID, err)
		}
	}
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() (uint64, error) {
	return ix.idx.DocCount()
}

func docTerm(docID string) *query.TermQuery {
	q := bleve.NewTermQuery(docID)
	q.SetField("doc_id")
	return q
}
