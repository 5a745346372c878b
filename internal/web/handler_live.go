package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/parkadmin/internal/gate"
	"github.com/vbonduro/parkadmin/internal/workbench"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 10 * time.Second
)

// liveMessage tells the page to re-render the panel and markers.
type liveMessage struct {
	Type string `json:"type"`
}

var refreshMessage = liveMessage{Type: "refresh"}

// handleLive holds one websocket per open dashboard tab. The session's
// workbench stays open while at least one tab is connected.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, access gate.Access, _ *workbench.Workbench) {
	wb, release := s.deps.Workbenches.Attach(access.SessionID)
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	changes, stop := wb.Watch()
	defer stop()

	// The request context is not cancelled when a hijacked client goes away.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	write := func(fn func() error) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return fn()
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Info("websocket closed", "session", access.SessionID, "error", err)
				}
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	// The first refresh covers anything that changed between page render and connect.
	if err := write(func() error { return conn.WriteJSON(refreshMessage) }); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				// The workbench was torn down; the page reconnects or falls back to login.
				_ = write(func() error {
					return conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "workbench closed"))
				})
				return
			}
			if err := write(func() error { return conn.WriteJSON(refreshMessage) }); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-pingTicker.C:
			if err := write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				s.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}
