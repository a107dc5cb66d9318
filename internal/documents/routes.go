package documents

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/markdown"
	"github.com/ziadkadry99/docvault/internal/storage"
)

// Deleter removes a document together with its stored file and vectors.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

const defaultPageSize = 50

// RegisterRoutes mounts the document and entity endpoints. Document routes
// are registered by full path because other packages add their own
// /api/documents/{id}/... endpoints to the same router.
func RegisterRoutes(r chi.Router, store *Store, files storage.Store, deleter Deleter) {
	r.Get("/api/documents", handleList(store))
	r.Get("/api/documents/stats", handleStats(store))
	r.Get("/api/documents/{id}", handleGet(store))
	r.Put("/api/documents/{id}", handleUpdate(store))
	r.Delete("/api/documents/{id}", handleDelete(deleter))
	r.Get("/api/documents/{id}/file", handleFile(store, files))
	r.Post("/api/documents/{id}/view", handleView(store))
	r.Post("/api/documents/{id}/tags/{tagID}", handleAddTag(store))
	r.Delete("/api/documents/{id}/tags/{tagID}", handleRemoveTag(store))
	r.Get("/api/documents/{id}/notes", handleGetNotes(store))
	r.Put("/api/documents/{id}/notes", handleSetNotes(store))
	r.Post("/api/documents/{id}/approve", handleApprove(store))
	r.Get("/api/documents/{id}/approval", handleApproval(store))

	r.Route("/api/correspondents", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK)(store.ListCorrespondents(r.Context()))
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var c Correspondent
			if !decode(w, r, &c) {
				return
			}
			respond(w, http.StatusCreated)(store.CreateCorrespondent(r.Context(), c))
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK)(store.GetCorrespondent(r.Context(), chi.URLParam(r, "id")))
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var c Correspondent
			if !decode(w, r, &c) {
				return
			}
			respond(w, http.StatusOK)(store.UpdateCorrespondent(r.Context(), chi.URLParam(r, "id"), c))
		})
		r.Delete("/{id}", handleDeleteEntity(store.DeleteCorrespondent))
	})

	r.Route("/api/doctypes", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK)(store.ListDocTypes(r.Context()))
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var t DocType
			if !decode(w, r, &t) {
				return
			}
			respond(w, http.StatusCreated)(store.CreateDocType(r.Context(), t))
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK)(store.GetDocType(r.Context(), chi.URLParam(r, "id")))
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var t DocType
			if !decode(w, r, &t) {
				return
			}
			respond(w, http.StatusOK)(store.UpdateDocType(r.Context(), chi.URLParam(r, "id"), t))
		})
		r.Delete("/{id}", handleDeleteEntity(store.DeleteDocType))
	})

	r.Route("/api/tags", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK)(store.ListTags(r.Context()))
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var t Tag
			if !decode(w, r, &t) {
				return
			}
			respond(w, http.StatusCreated)(store.CreateTag(r.Context(), t))
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK)(store.GetTag(r.Context(), chi.URLParam(r, "id")))
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var t Tag
			if !decode(w, r, &t) {
				return
			}
			respond(w, http.StatusOK)(store.UpdateTag(r.Context(), chi.URLParam(r, "id"), t))
		})
		r.Delete("/{id}", handleDeleteEntity(store.DeleteTag))
	})
}

type listResponse struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := ListOptions{Limit: defaultPageSize}
		var err error
		if v := r.URL.Query().Get("limit"); v != "" {
			if opts.Limit, err = strconv.Atoi(v); err != nil {
				writeError(w, apperr.New(apperr.ValidationFailure, "documents.list", "invalid limit %q", v))
				return
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if opts.Offset, err = strconv.Atoi(v); err != nil {
				writeError(w, apperr.New(apperr.ValidationFailure, "documents.list", "invalid offset %q", v))
				return
			}
		}

		docs, total, err := store.List(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if docs == nil {
			docs = []Document{}
		}
		for i := range docs {
			docs[i].FullText = ""
		}
		writeJSON(w, http.StatusOK, listResponse{Documents: docs, Total: total, Limit: opts.Limit, Offset: opts.Offset})
	}
}

func handleStats(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK)(store.Stats(r.Context()))
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK)(store.Get(r.Context(), chi.URLParam(r, "id")))
	}
}

func handleUpdate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u Update
		if !decode(w, r, &u) {
			return
		}
		respond(w, http.StatusOK)(store.Update(r.Context(), chi.URLParam(r, "id"), u))
	}
}

func handleDelete(deleter Deleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deleter.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleFile(store *Store, files storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		rc, err := files.Open(r.Context(), doc.FilePath)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				err = apperr.New(apperr.NotFound, "documents.file", "stored file for %s is missing", doc.ID)
			}
			writeError(w, err)
			return
		}
		defer rc.Close()

		contentType := doc.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
		if doc.FileSize > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
		}
		w.WriteHeader(http.StatusOK)
		io.Copy(w, rc)
	}
}

func handleView(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.RecordView(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddTag(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.AddTag(r.Context(), id, chi.URLParam(r, "tagID")); err != nil {
			writeError(w, err)
			return
		}
		respond(w, http.StatusOK)(store.Get(r.Context(), id))
	}
}

func handleRemoveTag(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.RemoveTag(r.Context(), id, chi.URLParam(r, "tagID")); err != nil {
			writeError(w, err)
			return
		}
		respond(w, http.StatusOK)(store.Get(r.Context(), id))
	}
}

type notesPayload struct {
	Notes string `json:"notes"`
	HTML  string `json:"html,omitempty"`
}

func handleGetNotes(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		html, err := markdown.Render(doc.Notes)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, notesPayload{Notes: doc.Notes, HTML: html})
	}
}

func handleSetNotes(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p notesPayload
		if !decode(w, r, &p) {
			return
		}
		if err := store.SetNotes(r.Context(), chi.URLParam(r, "id"), p.Notes); err != nil {
			writeError(w, err)
			return
		}
		html, err := markdown.Render(p.Notes)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, notesPayload{Notes: p.Notes, HTML: html})
	}
}

type approveRequest struct {
	Approved *bool  `json:"approved"`
	Actor    string `json:"actor"`
}

func handleApprove(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveRequest
		if !decode(w, r, &req) {
			return
		}
		approved := true
		if req.Approved != nil {
			approved = *req.Approved
		}
		respond(w, http.StatusOK)(store.SetApproval(r.Context(), chi.URLParam(r, "id"), approved, req.Actor))
	}
}

func handleApproval(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK)(store.Approval(r.Context(), chi.URLParam(r, "id")))
	}
}

func handleDeleteEntity(del func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := del(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// respond writes v with status, or the error if err is set. It is used as
// respond(w, status)(store.Call(...)).
func respond(w http.ResponseWriter, status int) func(v any, err error) {
	return func(v any, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, status, v)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperr.New(apperr.ValidationFailure, "decode", "invalid request body: %v", err))
		return false
	}
	return true
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
