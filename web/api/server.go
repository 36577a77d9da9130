// Package api exposes the dashboard state over HTTP: JSON endpoints for
// theater snapshots and mutations, plus SSE and websocket event feeds that
// push recompute results to live clients.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/6ofHertz/aelpher-control/internal/recompute"
	"github.com/6ofHertz/aelpher-control/internal/store"
)

// Server is the HTTP API server
type Server struct {
	store  *store.Store
	engine *recompute.Engine
	addr   string
	mux    *http.ServeMux
	hub    *EventHub
	log    zerolog.Logger
}

// NewServer creates a new API server
func NewServer(st *store.Store, engine *recompute.Engine, addr string, logger zerolog.Logger) *Server {
	s := &Server{
		store:  st,
		engine: engine,
		addr:   addr,
		mux:    http.NewServeMux(),
		hub:    NewEventHub(),
		log:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/metrics", s.metricsHandler())
	s.mux.HandleFunc("/api/theaters", s.listTheatersHandler())
	s.mux.HandleFunc("/api/theaters/", s.theaterDispatchHandler())
	s.mux.HandleFunc("/api/recompute", s.recomputeHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/ws", s.wsHandler())
}

// Run starts the HTTP server and shuts it down when the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	srv := &http.Server{Addr: s.addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info().Str("addr", s.addr).Msg("api server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler returns the server's HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Broadcast sends an event to all SSE and websocket clients
func (s *Server) Broadcast(event Event) {
	s.hub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
