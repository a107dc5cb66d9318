package pipeline

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
)

const maxMultipartMemory = 32 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes mounts upload, reprocessing, status and index maintenance
// endpoints. m may be nil when no vector store is configured.
func RegisterRoutes(r chi.Router, o *Orchestrator, m IndexMaintainer) {
	r.Post("/api/documents/upload", handleUpload(o))
	r.Post("/api/documents/{id}/reprocess", handleReprocess(o, ""))
	r.Post("/api/documents/{id}/reprocess-ocr", handleReprocess(o, documents.StageOCR))
	r.Post("/api/documents/{id}/reprocess-ai", handleReprocess(o, documents.StageAI))
	r.Post("/api/documents/{id}/reprocess-vector", handleReprocess(o, documents.StageVector))
	r.Get("/api/documents/{id}/status", handleDocumentStatus(o))

	r.Route("/api/processing", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			st, err := o.Status(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})
		r.Get("/events", handleEvents(o.Hub(), o.logger))
	})

	if m == nil {
		return
	}
	r.Route("/api/index", func(r chi.Router) {
		r.Post("/rebuild", func(w http.ResponseWriter, r *http.Request) {
			result, err := o.Reindex(r.Context(), m, nil)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})
		r.Post("/verify", func(w http.ResponseWriter, r *http.Request) {
			repair, _ := strconv.ParseBool(r.URL.Query().Get("repair"))
			result, err := o.VerifyIndex(r.Context(), m, repair)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			st, err := m.Stats(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})
	})
}

type uploadResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ExistingID string `json:"existing_id,omitempty"`
}

func handleUpload(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, apperr.New(apperr.ValidationFailure, "upload", "invalid multipart form: %v", err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, apperr.New(apperr.ValidationFailure, "upload", "missing file field"))
			return
		}
		defer file.Close()

		doc, err := o.Ingest(r.Context(), header.Filename, file)
		if err != nil {
			if errors.Is(err, apperr.Conflict) && doc != nil {
				writeJSON(w, http.StatusConflict, map[string]string{
					"error":       err.Error(),
					"kind":        string(apperr.Conflict),
					"existing_id": doc.ID,
				})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, uploadResponse{ID: doc.ID, Status: "queued"})
	}
}

type reprocessResponse struct {
	ID     string            `json:"id"`
	Stages []documents.Stage `json:"stages"`
}

func handleReprocess(o *Orchestrator, stage documents.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stages, err := o.Reprocess(r.Context(), id, stage)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, reprocessResponse{ID: id, Stages: stages})
	}
}

func handleDocumentStatus(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := o.DocumentStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// handleEvents streams hub events to a WebSocket client until it disconnects.
func handleEvents(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade", "error", err)
			return
		}
		defer conn.Close()

		events, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		// The client only ever sends close frames; reading detects them.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.Debug("websocket read", "error", err)
					}
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(e); err != nil {
					logger.Debug("websocket write", "error", err)
					return
				}
			}
		}
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
