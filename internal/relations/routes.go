package relations

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

// RegisterRoutes mounts the relation and similarity endpoints under
// /api/documents/{id}.
func RegisterRoutes(r chi.Router, g *Graph, defaultThreshold float64) {
	r.Get("/api/documents/{id}/relations", handleGet(g))
	r.Post("/api/documents/{id}/relations/{childID}", handleLink(g))
	r.Delete("/api/documents/{id}/relations/{childID}", handleUnlink(g))
	r.Get("/api/documents/{id}/similar", handleSimilar(g, defaultThreshold))
}

func handleGet(g *Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := g.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	}
}

type linkRequest struct {
	RelationType string `json:"relation_type"`
}

func handleLink(g *Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req linkRequest
		// The body is optional.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, apperr.New(apperr.ValidationFailure, "relations", "invalid request body: %v", err))
			return
		}
		link, err := g.Link(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "childID"), req.RelationType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, link)
	}
}

func handleUnlink(g *Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.Unlink(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "childID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSimilar(g *Graph, defaultThreshold float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := DefaultSimilarLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, apperr.New(apperr.ValidationFailure, "relations", "invalid limit %q", v))
				return
			}
			limit = n
		}
		threshold := defaultThreshold
		if v := q.Get("threshold"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, apperr.New(apperr.ValidationFailure, "relations", "invalid threshold %q", v))
				return
			}
			threshold = f
		}

		similar, err := g.FindSimilar(r.Context(), chi.URLParam(r, "id"), limit, threshold)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, similar)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  string(apperr.KindOf(err)),
	})
}
