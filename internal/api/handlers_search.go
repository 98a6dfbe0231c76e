package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/kgest/internal/search"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	idx := s.orchestrator.Index()
	if idx == nil {
		jsonError(w, "search index unavailable", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	hits, err := idx.Search(text, q.Get("doc_id"), limit)
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": text, "hits": hits})
}
