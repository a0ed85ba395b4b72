package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/colonyops/inbox/internal/core/notify"
)

// maxEventSize bounds a single event so a misbehaving server cannot grow the
// buffer without limit.
const maxEventSize = 1 << 20

// SSEDialer opens the push stream as text/event-stream.
type SSEDialer struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var _ Dialer = (*SSEDialer)(nil)

func (d *SSEDialer) Dial(ctx context.Context) (Channel, error) {
	if err := preflight(d.Token); err != nil {
		return nil, err
	}

	target, err := streamURL(d.BaseURL, d.Token, false)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, streamErr("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := d.Client
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, streamErr("connect: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, &notify.AuthError{Op: "open stream", StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, streamErr("unexpected status %d", resp.StatusCode)
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		_ = resp.Body.Close()
		return nil, streamErr("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	return &sseChannel{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

type sseChannel struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// Next reads lines until a blank line dispatches an event with data. Comment
// lines and the event, id and retry fields are ignored; multiple data lines
// are joined with a newline.
func (c *sseChannel) Next(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.body.Close() })
	defer stop()

	var (
		data    strings.Builder
		hasData bool
	)
	for {
		line, err := c.readLine()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &notify.StreamError{Err: ctxErr}
			}
			if errors.Is(err, io.EOF) {
				return nil, streamErr("server closed stream")
			}
			return nil, &notify.StreamError{Err: err}
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				return []byte(data.String()), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field != "data" {
			continue
		}
		if hasData {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		hasData = true
		if data.Len() > maxEventSize {
			return nil, streamErr("event exceeds %d bytes", maxEventSize)
		}
	}
}

// readLine reads one line, failing once it grows past maxEventSize instead of
// buffering an unterminated line without limit.
func (c *sseChannel) readLine() (string, error) {
	var buf []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		if len(buf)+len(chunk) > maxEventSize {
			return "", streamErr("line exceeds %d bytes", maxEventSize)
		}
		buf = append(buf, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(buf), err
	}
}

func (c *sseChannel) Close() error {
	return c.body.Close()
}
