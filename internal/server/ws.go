package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsPingInterval keeps idle websocket connections alive.
const wsPingInterval = 30 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is served cross-origin already (see corsMiddleware).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleJobWebSocket streams progress events for a job over a websocket,
// mirroring the SSE stream for clients that prefer a bidirectional transport.
func (s *Server) handleJobWebSocket(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "jobID", jobID, "error", err)
		return
	}
	defer conn.Close()

	eventChan := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, eventChan)

	// Drain client frames so close and pong handling work; incoming
	// messages are otherwise ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(snapshotEvent(job)); err != nil {
		slog.Debug("WebSocket initial write failed", "jobID", jobID, "error", err)
		return
	}

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			slog.Debug("WebSocket client disconnected", "jobID", jobID)
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				slog.Debug("WebSocket write failed", "jobID", jobID, "error", err)
				return
			}

		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
