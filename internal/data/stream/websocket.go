package stream

import (
	"context"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/colonyops/inbox/internal/core/notify"
)

// WebsocketDialer opens the push stream over a websocket on the same path.
type WebsocketDialer struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var _ Dialer = (*WebsocketDialer)(nil)

func (d *WebsocketDialer) Dial(ctx context.Context) (Channel, error) {
	if err := preflight(d.Token); err != nil {
		return nil, err
	}

	target, err := streamURL(d.BaseURL, d.Token, true)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPClient: d.Client})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &notify.AuthError{Op: "open stream", StatusCode: resp.StatusCode}
		}
		return nil, streamErr("connect: %w", err)
	}
	conn.SetReadLimit(maxEventSize)

	return &wsChannel{conn: conn}, nil
}

type wsChannel struct {
	conn *websocket.Conn
}

// Next returns the next text frame. Binary frames are skipped.
func (c *wsChannel) Next(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return nil, streamErr("server closed stream: %s", status)
			}
			return nil, &notify.StreamError{Err: err}
		}
		if typ != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (c *wsChannel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
