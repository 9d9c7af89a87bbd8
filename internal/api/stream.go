package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// wireEvent is the stream frame: the event kind plus its payload.
type wireEvent struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// handleEventStream upgrades to websocket and forwards hub notifications as
// JSON until the client goes away.
func (s *Server) handleEventStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	s.metrics.IncrementStreamClients()
	defer s.metrics.DecrementStreamClients()

	ch, cancel := s.hub.Subscribe(256)
	defer cancel()

	// Reader goroutine: we never expect client frames, but reading is what
	// surfaces the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wireEvent{Kind: ev.Kind(), Payload: ev}); err != nil {
				slog.Debug("stream write failed", slog.Any("error", err))
				return
			}
		}
	}
}
