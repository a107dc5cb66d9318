package staging

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

// RegisterRoutes mounts the staging folder endpoints.
func RegisterRoutes(r chi.Router, p *Processor) {
	r.Route("/api/staging", func(r chi.Router) {
		r.Get("/files", func(w http.ResponseWriter, r *http.Request) {
			files, err := p.List()
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"folder": p.Folder(), "files": files})
		})
		r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
			result, err := p.ProcessAll(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})
	})
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
