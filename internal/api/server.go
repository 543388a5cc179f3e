// Package api exposes the retrieval engine over HTTP for external
// orchestration layers.
package api

import (
	"context"
	"net/http"
	"time"

	"mnemo/internal/logging"
	"mnemo/internal/retrieval"
)

// Server represents the HTTP API server
type Server struct {
	router *http.ServeMux
	server *http.Server
	addr   string
	logger *logging.Logger
	engine *retrieval.Engine
}

// NewServer creates a new HTTP server instance
func NewServer(addr string, engine *retrieval.Engine, logger *logging.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger.Component("api"),
		engine: engine,
		router: http.NewServeMux(),
	}

	s.registerRoutes()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /v1/query", s.handleQuery)
	s.router.HandleFunc("POST /v1/graph", s.handleGraph)
	s.router.HandleFunc("POST /v1/associate", s.handleAssociate)
	s.router.HandleFunc("POST /v1/inflate", s.handleInflate)
}

func (s *Server) applyMiddleware(h http.Handler) http.Handler {
	return RequestIDMiddleware(RecoveryMiddleware(s.logger)(LoggingMiddleware(s.logger)(h)))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the configured handler chain. Intended for tests.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.router)
}
