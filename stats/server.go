// Package stats exposes runtime counters over HTTP for operators.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/resilio/fetch"
	"github.com/vietddude/resilio/thinking"
)

// Source supplies the snapshots the server serves.
type Source interface {
	FetchStats() fetch.Stats
	ThinkingStats() thinking.Stats
	BreakerStates() map[string]string
	BlacklistSize() int
}

// Server provides HTTP endpoints for stats and health monitoring.
type Server struct {
	source Source
	server *http.Server
	start  time.Time
}

// NewServer creates a new stats server on the given port.
func NewServer(source Source, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		start: time.Now(),
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"status": "ok"}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"uptime":         time.Since(s.start).String(),
		"fetch":          s.source.FetchStats(),
		"thinking":       s.source.ThinkingStats(),
		"breakers":       s.source.BreakerStates(),
		"blacklist_size": s.source.BlacklistSize(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
