// internal/api/push.go
package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// PushSubprotocol is the websocket subprotocol spoken on the match push channel.
const PushSubprotocol = "game"

// DialPush opens the match-scoped push channel. The dial goes through the session guard,
// so a rejected handshake (401) triggers one re-authentication and one retry like any other
// authenticated call.
func (c *Client) DialPush(ctx context.Context, matchID string) (*websocket.Conn, error) {
	return Call(ctx, c.guard, func(ctx context.Context) (*websocket.Conn, error) {
		if c.session.Token() == "" {
			return nil, &ServerError{Status: http.StatusUnauthorized, Message: "not signed in"}
		}
		conn, resp, err := websocket.Dial(ctx, c.PushURL(matchID), &websocket.DialOptions{
			HTTPClient:   c.http,
			HTTPHeader:   c.AuthHeader(),
			Subprotocols: []string{PushSubprotocol},
		})
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 {
				return nil, &ServerError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return nil, err
		}
		return conn, nil
	})
}
