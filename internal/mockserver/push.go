// internal/mockserver/push.go
package mockserver

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/holosync/internal/middleware"
)

// pushWriteTimeout bounds a single websocket write.
const pushWriteTimeout = 5 * time.Second

// handlePush upgrades to the match push channel. The client receives a SYNC right away and
// another after every state change. Inbound messages are ignored.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request, playerID string) {
	m, ok := s.member(w, r, playerID)
	if !ok {
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warnf("WebSocket accept error for match %s: %v", r.PathValue("id"), err)
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != "game" {
		c.Close(websocket.StatusPolicyViolation, "client must use the 'game' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.PathValue("id"))

	id, updates := m.subscribe()
	defer m.unsubscribe(id)

	m.mu.Lock()
	initial, err := m.syncMessage()
	m.mu.Unlock()
	if err != nil {
		c.Close(websocket.StatusInternalError, "failed to encode state")
		return
	}

	// CloseRead discards inbound frames and cancels ctx once the client goes away.
	ctx := c.CloseRead(r.Context())
	err = writeMessage(ctx, c, initial)
	for err == nil {
		select {
		case msg := <-updates:
			err = writeMessage(ctx, c, msg)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.PathValue("id"), err)
}

func writeMessage(ctx context.Context, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, pushWriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, msg)
}
