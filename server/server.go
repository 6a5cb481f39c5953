// Package server exposes the relay run over HTTP for Cloud Run and Cloud Scheduler.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"hipchat-slack-relay/poll"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poller interface for triggering a relay run.
type Poller interface {
	RunOnce(ctx context.Context) (*poll.Result, error)
}

// Server handles HTTP requests.
type Server struct {
	poller Poller
	logger *slog.Logger
	mu     sync.Mutex // serializes runs
}

// New creates a new HTTP server handler.
func New(poller Poller, logger *slog.Logger) *Server {
	return &Server{poller: poller, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe starts the server on port and blocks.
func (s *Server) ListenAndServe(port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // a run may page through many rooms
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

type pollResponse struct {
	*poll.Result
	Status string `json:"status"`
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	s.mu.Lock()
	res, err := s.poller.RunOnce(r.Context())
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Relay run failed", "error", err)
		http.Error(w, "Run failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(pollResponse{Status: "completed", Result: res}); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
