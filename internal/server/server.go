// Package server provides the HTTP API: expert questions, raw similarity
// search, document management, and ingestion status.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/bucket"
	"github.com/analogtech/cofounder/internal/config"
	"github.com/analogtech/cofounder/internal/expert"
	"github.com/analogtech/cofounder/internal/search"
	"github.com/analogtech/cofounder/internal/storage"
)

// Asker answers expert questions. Satisfied by *expert.Expert.
type Asker interface {
	Ask(ctx context.Context, question string, opts expert.AskOptions) (expert.Answer, error)
}

// Server is the HTTP server for the knowledge base API.
type Server struct {
	asker   Asker
	engine  *search.Engine
	store   storage.Store
	library bucket.Store
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	asker Asker,
	engine *search.Engine,
	store storage.Store,
	library bucket.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		asker:   asker,
		engine:  engine,
		store:   store,
		library: library,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router. Exposed separately so tests can drive it
// with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Post("/api/v1/documents", s.handleUploadDocument)
	r.Delete("/api/v1/documents/{name}", s.handleDeleteDocument)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
