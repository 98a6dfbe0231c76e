package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/document"
)

type chunkRequest struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy"`
}

// chunkView is a chunk plus its estimated token count.
type chunkView struct {
	chunker.Chunk
	Tokens int `json:"tokens"`
}

func viewChunks(chunks []chunker.Chunk) []chunkView {
	out := make([]chunkView, len(chunks))
	for i, c := range chunks {
		out[i] = chunkView{Chunk: c, Tokens: chunker.EstimateTokens(c.Content)}
	}
	return out
}

// handleChunk splits a Markdown body without storing anything. The body is
// either raw Markdown or a JSON chunkRequest.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	req := chunkRequest{Text: string(body), Strategy: r.URL.Query().Get("strategy")}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		req = chunkRequest{}
		if err := json.Unmarshal(body, &req); err != nil {
			jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = s.cfg.ChunkStrategy
	}
	if _, err := chunker.ParseStrategy(strategy); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, err := document.Normalize(req.Text)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, document.ErrInvalidUTF8) {
			code = http.StatusBadRequest
		}
		jsonError(w, err.Error(), code)
		return
	}

	chunks := chunker.Split(text)
	writeJSON(w, http.StatusOK, map[string]any{
		"strategy": chunker.HeadersFirst,
		"count":    len(chunks),
		"chunks":   viewChunks(chunks),
	})
}
