package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devXcant/lecture-learning-sphere/internal/config"
	"github.com/devXcant/lecture-learning-sphere/internal/signaling"
)

// newUpgrader configures the websocket upgrader against the allowed-origin
// list. The default configuration ("*") accepts any origin, matching the
// permissive stance of the hosted deployment.
func newUpgrader(cfg config.Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
}

// writeCORSHeaders sets the permissive CORS header set expected by the
// browser client on both preflight responses and upgrade rejections.
func writeCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// handleSignaling terminates the websocket endpoint: preflight requests get
// CORS headers, non-upgrade requests an error, and real upgrades a Client
// wired into the hub.
func (s *Server) handleSignaling(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		writeCORSHeaders(w)
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "This endpoint requires a WebSocket connection",
		})
		return
	}

	// Upgrade the HTTP connection to a WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "err", err)
		return
	}

	// Create a new client
	client := &signaling.Client{
		Hub:  s.hub,
		Conn: conn,
		ID:   uuid.NewString(),
		Send: make(chan *signaling.Message, 256), // Buffered channel for *Message
	}

	// Register the client with the hub
	s.hub.Register <- client

	// Start the client's read and write pumps in separate goroutines
	// These methods will handle the client's lifecycle
	go client.WritePump()
	go client.ReadPump()
}
