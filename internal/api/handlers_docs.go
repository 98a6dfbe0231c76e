package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dgallion1/kgest/internal/kg"
	"github.com/dgallion1/kgest/internal/store"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.orchestrator.Store().ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument deletes a document with its chunks, triplets, search
// entries and mirrored graph.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.orchestrator.DeleteDocument(r.Context(), docID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()
	if _, err := s.orchestrator.Store().GetDocument(ctx, docID); err != nil {
		storeError(w, err)
		return
	}
	chunks, err := s.orchestrator.Store().Chunks(ctx, docID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id": docID,
		"count":  len(chunks),
		"chunks": viewChunks(chunks),
	})
}

// handleDocumentTriplets streams a document's triplets as JSON Lines.
func (s *Server) handleDocumentTriplets(w http.ResponseWriter, r *http.Request) {
	_, triplets, ok := s.loadTriplets(r.Context(), w, chi.URLParam(r, "docID"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := kg.WriteJSONL(w, triplets); err != nil {
		s.log.Error("write triplets", "error", err)
	}
}

func (s *Server) handleDocumentGraph(w http.ResponseWriter, r *http.Request) {
	doc, triplets, ok := s.loadTriplets(r.Context(), w, chi.URLParam(r, "docID"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := kg.RenderHTML(w, kg.NewGraph(triplets), doc.Title); err != nil {
		s.log.Error("render graph", "doc_id", doc.ID, "error", err)
	}
}

// handleCompareGraphs renders the graphs of documents a and b side by side.
func (s *Server) handleCompareGraphs(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		jsonError(w, "a and b query parameters are required", http.StatusBadRequest)
		return
	}
	docA, first, ok := s.loadTriplets(r.Context(), w, a)
	if !ok {
		return
	}
	docB, second, ok := s.loadTriplets(r.Context(), w, b)
	if !ok {
		return
	}
	cmp := kg.Compare(kg.NewGraph(first), kg.NewGraph(second))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := kg.RenderComparisonHTML(w, cmp, docA.Title, docB.Title); err != nil {
		s.log.Error("render comparison", "a", a, "b", b, "error", err)
	}
}

// loadTriplets fetches a document and its triplets, writing an error
// response and returning false when either lookup fails.
func (s *Server) loadTriplets(ctx context.Context, w http.ResponseWriter, docID string) (*store.Document, []kg.Triplet, bool) {
	doc, err := s.orchestrator.Store().GetDocument(ctx, docID)
	if err != nil {
		storeError(w, err)
		return nil, nil, false
	}
	triplets, err := s.orchestrator.Store().Triplets(ctx, docID)
	if err != nil {
		storeError(w, err)
		return nil, nil, false
	}
	return doc, triplets, true
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}
