// Package stream opens the backend's push stream. Two transports are
// supported: server-sent events (the default) and websocket. Both yield one
// raw notification payload per call to Next.
package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/data/remote"
)

// StreamPath is the push stream endpoint relative to the base URL.
const StreamPath = "/notifications/stream"

// Transport names accepted in configuration.
const (
	TransportSSE       = "sse"
	TransportWebsocket = "websocket"
)

// Channel is one open push connection.
type Channel interface {
	// Next blocks until the next payload arrives. Any transport failure is
	// returned as a *notify.StreamError.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Channel. Dial returns *notify.AuthError when the server
// rejects the session and *notify.StreamError for everything else.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// New returns the dialer for the named transport.
func New(transport, baseURL, token string, opts ...Option) (Dialer, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", TransportSSE:
		return &SSEDialer{BaseURL: baseURL, Token: token, Client: o.client}, nil
	case TransportWebsocket:
		return &WebsocketDialer{BaseURL: baseURL, Token: token, Client: o.client}, nil
	}
	return nil, fmt.Errorf("unknown stream transport %q", transport)
}

// streamURL builds the stream endpoint with the token as a query parameter,
// optionally swapping http(s) for ws(s).
func streamURL(baseURL, token string, websocketScheme bool) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = remote.DefaultBaseURL
	}
	u, err := url.Parse(base + StreamPath)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if websocketScheme {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func preflight(token string) error {
	return remote.CheckToken("open stream", token, time.Now())
}

func streamErr(format string, args ...any) error {
	return &notify.StreamError{Err: fmt.Errorf(format, args...)}
}
