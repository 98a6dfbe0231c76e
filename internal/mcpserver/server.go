// Package mcpserver exposes chunking, chunk search and stored triplets as
// Model Context Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/document"
	"github.com/dgallion1/kgest/internal/kg"
	"github.com/dgallion1/kgest/internal/search"
	"github.com/dgallion1/kgest/internal/store"
)

const serverName = "kgest"

// Tools backs the MCP tool handlers. Store and Index may be nil, in which
// case the tools that need them report an error.
type Tools struct {
	store *store.Store
	index *search.Index
	log   *slog.Logger
}

func NewTools(st *store.Store, idx *search.Index, log *slog.Logger) *Tools {
	if log == nil {
		log = slog.Default()
	}
	return &Tools{store: st, index: idx, log: log}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	t.Register(server)
	return server
}

// Register adds the kgest tools to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "chunk_markdown",
			Description: "Split a Markdown document into header-aware chunks. Each chunk carries its type, its header breadcrumb and its position.",
		},
		t.ChunkMarkdown,
	)
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_chunks",
			Description: "Full-text search over the chunks of ingested documents, optionally limited to one document.",
		},
		t.SearchChunks,
	)
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_documents",
			Description: "List ingested documents with their chunk and triplet counts, newest first.",
		},
		t.ListDocuments,
	)
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_triplets",
			Description: "Return the knowledge-graph triplets extracted from one ingested document.",
		},
		t.GetTriplets,
	)
	t.log.Info("mcp tools registered", "tools", 4)
}

type ChunkMarkdownInput struct {
	Text string `json:"text" jsonschema:"Markdown document to split"`
}

type ChunkMarkdownOutput struct {
	Count  int             `json:"count"`
	Chunks []chunker.Chunk `json:"chunks"`
}

func (t *Tools) ChunkMarkdown(ctx context.Context, req *mcp.CallToolRequest, input ChunkMarkdownInput) (*mcp.CallToolResult, ChunkMarkdownOutput, error) {
	text, err := document.Normalize(input.Text)
	if err != nil {
		return nil, ChunkMarkdownOutput{}, err
	}
	chunks := chunker.Split(text)
	if chunks == nil {
		chunks = []chunker.Chunk{}
	}
	return nil, ChunkMarkdownOutput{Count: len(chunks), Chunks: chunks}, nil
}

type SearchChunksInput struct {
	Query string `json:"query" jsonschema:"Words to search for"`
	DocID string `json:"doc_id,omitempty" jsonschema:"Restrict results to this document (optional)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of hits (optional, defaults to 10)"`
}

type SearchChunksOutput struct {
	Query string       `json:"query"`
	Hits  []search.Hit `json:"hits"`
}

func (t *Tools) SearchChunks(ctx context.Context, req *mcp.CallToolRequest, input SearchChunksInput) (*mcp.CallToolResult, SearchChunksOutput, error) {
	if t.index == nil {
		return nil, SearchChunksOutput{}, errors.New("search index is not configured")
	}
	if input.Query == "" {
		return nil, SearchChunksOutput{}, errors.New("query is required")
	}
	hits, err := t.index.Search(input.Query, input.DocID, input.Limit)
	if err != nil {
		return nil, SearchChunksOutput{}, fmt.Errorf("search: %w", err)
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return nil, SearchChunksOutput{Query: input.Query, Hits: hits}, nil
}

type ListDocumentsInput struct{}

// DocumentInfo is a stored document as reported to MCP clients.
type DocumentInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Filename     string `json:"filename"`
	Instructions string `json:"instructions"`
	CreatedAt    string `json:"created_at"`
	ChunkCount   int    `json:"chunk_count"`
	TripletCount int    `json:"triplet_count"`
}

type ListDocumentsOutput struct {
	Documents []DocumentInfo `json:"documents"`
}

func (t *Tools) ListDocuments(ctx context.Context, req *mcp.CallToolRequest, _ ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if t.store == nil {
		return nil, ListDocumentsOutput{}, errors.New("document store is not configured")
	}
	docs, err := t.store.ListDocuments(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	out := ListDocumentsOutput{Documents: make([]DocumentInfo, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentInfo{
			ID:           d.ID,
			Title:        d.Title,
			Filename:     d.Filename,
			Instructions: d.Instructions,
			CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
			ChunkCount:   d.ChunkCount,
			TripletCount: d.TripletCount,
		})
	}
	return nil, out, nil
}

type GetTripletsInput struct {
	DocID string `json:"doc_id" jsonschema:"ID of an ingested document"`
}

type GetTripletsOutput struct {
	DocID    string       `json:"doc_id"`
	Title    string       `json:"title"`
	Triplets []kg.Triplet `json:"triplets"`
}

func (t *Tools) GetTriplets(ctx context.Context, req *mcp.CallToolRequest, input GetTripletsInput) (*mcp.CallToolResult, GetTripletsOutput, error) {
	if t.store == nil {
		return nil, GetTripletsOutput{}, errors.New("document store is not configured")
	}
	doc, err := t.store.GetDocument(ctx, input.DocID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, GetTripletsOutput{}, fmt.Errorf("document %q not found", input.DocID)
		}
		return nil, GetTripletsOutput{}, err
	}
	triplets, err := t.store.Triplets(ctx, doc.ID)
	if err != nil {
		return nil, GetTripletsOutput{}, err
	}
	if triplets == nil {
		triplets = []kg.Triplet{}
	}
	return nil, GetTripletsOutput{DocID: doc.ID, Title: doc.Title, Triplets: triplets}, nil
}
