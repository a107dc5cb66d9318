// Package server assembles the HTTP API from the feature packages.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/pipeline"
	"github.com/ziadkadry99/docvault/internal/rag"
	"github.com/ziadkadry99/docvault/internal/relations"
	"github.com/ziadkadry99/docvault/internal/search"
	"github.com/ziadkadry99/docvault/internal/staging"
	"github.com/ziadkadry99/docvault/internal/storage"
)

const defaultRequestTimeout = 120 * time.Second

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool // allow all CORS origins (dev mode)
	RequestTimeout time.Duration
}

// Services are the components behind the API. Index, Staging, RAG and
// Relations are optional; their endpoints are only mounted when set.
type Services struct {
	Documents        *documents.Store
	Logs             *audit.Store
	Files            storage.Store
	Pipeline         *pipeline.Orchestrator
	Index            pipeline.IndexMaintainer
	Staging          *staging.Processor
	Search           *search.Engine
	RAG              *rag.Answerer
	Relations        *relations.Graph
	SimilarThreshold float64
}

// Server is the document vault HTTP server.
type Server struct {
	cfg        Config
	db         *db.DB
	svc        Services
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server and registers every route.
func New(cfg Config, database *db.DB, svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		cfg:    cfg,
		db:     database,
		svc:    svc,
		logger: logger,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(timeoutExceptUpgrades(s.cfg.RequestTimeout))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)

	svc := s.svc
	if svc.Documents != nil {
		var deleter documents.Deleter = storeDeleter{svc.Documents}
		if svc.Pipeline != nil {
			deleter = svc.Pipeline
		}
		documents.RegisterRoutes(r, svc.Documents, svc.Files, deleter)
	}
	if svc.Logs != nil {
		audit.RegisterRoutes(r, svc.Logs)
	}
	if svc.Pipeline != nil {
		pipeline.RegisterRoutes(r, svc.Pipeline, svc.Index)
	}
	if svc.Staging != nil {
		staging.RegisterRoutes(r, svc.Staging)
	}
	if svc.Search != nil {
		search.RegisterRoutes(r, svc.Search)
	}
	if svc.RAG != nil {
		rag.RegisterRoutes(r, svc.RAG)
	}
	if svc.Relations != nil {
		relations.RegisterRoutes(r, svc.Relations, svc.SimilarThreshold)
	}

	return r
}

// storeDeleter removes only the database row; used when no pipeline runs.
type storeDeleter struct{ docs *documents.Store }

func (d storeDeleter) Delete(ctx context.Context, id string) error {
	_, err := d.docs.Delete(ctx, id)
	return err
}

type healthResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	Processing bool   `json:"processing"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status, resp.Database = "degraded", err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if s.svc.Pipeline != nil {
		resp.Processing = s.svc.Pipeline.IsProcessing()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// timeoutExceptUpgrades bounds ordinary requests; WebSocket upgrades live
// as long as the client stays connected.
func timeoutExceptUpgrades(d time.Duration) func(http.Handler) http.Handler {
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		bounded := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("docvault server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
