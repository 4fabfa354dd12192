package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devXcant/lecture-learning-sphere/internal/config"
	"github.com/devXcant/lecture-learning-sphere/internal/signaling"
)

// Server is the HTTP surface of the signaling relay: the websocket
// endpoint plus liveness and registry-stats probes.
type Server struct {
	cfg      config.Config
	hub      *signaling.Hub
	upgrader websocket.Upgrader
}

// New constructs a Server around an already-running hub.
func New(cfg config.Config, hub *signaling.Hub) *Server {
	return &Server{
		cfg:      cfg,
		hub:      hub,
		upgrader: newUpgrader(cfg),
	}
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("signaling relay listening", "addr", s.cfg.Addr)
	return srv.ListenAndServe()
}

// Routes builds the request mux. Exposed so tests can mount it on httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleSignaling)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.hub.Snapshot())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode json response", "err", err)
	}
}
