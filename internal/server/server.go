// Package server provides the HTTP status API of the LED watcher.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/ledwatch/internal/server/api"
	"github.com/ayusman/ledwatch/internal/store"
)

// Config holds the server configuration. Nil components disable their routes.
type Config struct {
	StaticDir string
	Store     *store.Store
	Status    *StatusTracker
	Ticks     *TickHub
	Snapshots *SnapshotSink
}

// Server represents the HTTP server of the watcher.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Status != nil {
		s.mux.Handle("/api/status", s.config.Status)
	}

	if s.config.Store != nil {
		runs := api.NewRunsHandler(s.config.Store)
		s.mux.Handle("/api/runs", runs)
		s.mux.Handle("/api/runs/", runs)
	}

	if s.config.Ticks != nil {
		s.mux.Handle("/api/ticks/ws", s.config.Ticks)
	}

	if s.config.Snapshots != nil {
		s.mux.Handle("/api/snapshot", s.config.Snapshots)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Snapshots))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns
// nil once Shutdown was called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
