// Package server provides the HTTP API for tsumiki.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/tsumiki/internal/config"
	"github.com/hyperjump/tsumiki/internal/indexer"
	"github.com/hyperjump/tsumiki/internal/inspect"
	"github.com/hyperjump/tsumiki/internal/prune"
	"github.com/hyperjump/tsumiki/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the tsumiki API. Requests that touch the store run one at a time.
type Server struct {
	pipeline  *indexer.Pipeline
	inspector *inspect.Inspector
	store     storage.Store
	dataDir   string
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server

	mu sync.Mutex
}

// NewServer creates a server. pipeline must write into store.
func NewServer(
	pipeline *indexer.Pipeline,
	store storage.Store,
	dataDir string,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:  pipeline,
		inspector: inspect.New(store),
		store:     store,
		dataDir:   dataDir,
		config:    cfg,
		logger:    logger,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(middleware.Compress(5))
			r.Get("/status", s.handleStatus)
			r.Get("/peek", s.handlePeek)
			r.Delete("/sources", s.handleDeleteSource)
		})
		// Ingestion embeds every chunk and may outlive the request timeout.
		r.Post("/ingest", s.handleIngest)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
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

func (s *Server) prune(ctx context.Context, source string, dryRun bool) (*prune.Result, error) {
	return prune.New(s.store, prune.WithLogger(s.logger), prune.WithDryRun(dryRun)).Prune(ctx, source)
}
