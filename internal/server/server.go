// Package server provides the HTTP API for ClauseLens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/clauseindex"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/pipeline"
	"github.com/clauselens/clauselens/internal/queue"
	"github.com/clauselens/clauselens/internal/storage"
)

// maxUploadBytes bounds a single uploaded document.
const maxUploadBytes = 50 << 20

// Server is the HTTP server for the ClauseLens API.
type Server struct {
	store        storage.Store
	queue        *queue.Queue
	orchestrator *pipeline.Orchestrator
	index        *clauseindex.Index
	config       *config.ServerConfig
	logger       *zap.Logger
	server       *http.Server

	// procCtx outlives individual requests; document processing started by
	// an upload continues after the uploading connection closes.
	procCtx context.Context
}

// NewServer creates a server with the given dependencies. index may be nil
// when clause search is disabled.
func NewServer(
	store storage.Store,
	q *queue.Queue,
	orch *pipeline.Orchestrator,
	index *clauseindex.Index,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:        store,
		queue:        q,
		orchestrator: orch,
		index:        index,
		config:       cfg,
		logger:       logger,
		procCtx:      context.Background(),
	}
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleUploadDocument)
	r.Post("/api/v1/documents/batch", s.handleUploadBatch)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/documents/{id}/clauses", s.handleGetClauses)
	r.Get("/api/v1/documents/{id}/clauses/search", s.handleSearchClauses)

	r.Get("/api/v1/queue/status", s.handleQueueStatus)
	r.Get("/api/v1/queue/items", s.handleQueueItems)
	r.Get("/api/v1/queue/items/{id}", s.handleQueueItem)
	r.Delete("/api/v1/queue/items/{id}", s.handleCancelItem)
	r.Put("/api/v1/queue/concurrency", s.handleSetConcurrency)

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and waits for in-flight documents.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
