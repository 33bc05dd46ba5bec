package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// devConsoleUpgrader configures the websocket upgrade used by the
// illustrative dev console endpoint (spec.md marks caller-facing
// streaming a Non-goal of the core A2A contract; this is a
// development aid only, grounded on the teacher's a2a/server.go
// websocket.Upgrader use, never on the JSON-RPC dispatch path).
var devConsoleUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type devConsoleQuery struct {
	TaskID string `json:"taskId"`
}

// handleDevConsole upgrades to a websocket and, on every inbound
// {"taskId": "..."} message, writes back the task's current snapshot.
// It is a polling convenience for a local dev console, not a
// subscription feed: each request gets exactly one reply.
func (s *Server) handleDevConsole(w http.ResponseWriter, r *http.Request) {
	conn, err := devConsoleUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("dev console upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var q devConsoleQuery
		if err := conn.ReadJSON(&q); err != nil {
			return
		}
		if q.TaskID == "" {
			_ = conn.WriteJSON(map[string]any{"error": "taskId required"})
			continue
		}
		t, err := s.tasks.Get(q.TaskID)
		if err != nil {
			_ = conn.WriteJSON(map[string]any{"taskId": q.TaskID, "error": err.Error()})
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(t); err != nil {
			return
		}
	}
}
