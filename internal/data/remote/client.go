// Package remote implements notify.Repository over the backend's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/inbox/internal/core/logging"
	"github.com/colonyops/inbox/internal/core/notify"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8080"
	DefaultTimeout = 15 * time.Second
	userAgent      = "inbox-client"
)

// Client talks to the notification endpoints. It never retries; a transient
// failure comes back as a *notify.NetworkError for the caller to handle.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ notify.Repository = (*Client)(nil)

// New creates a client. A nil httpClient gets a default with DefaultTimeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		log:        logging.Component("remote"),
	}
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the session token sent with every request.
func (c *Client) Token() string { return c.token }

func (c *Client) List(ctx context.Context, filters notify.Filters) (notify.ListResult, error) {
	q := url.Values{}
	if filters.Type != "" {
		q.Set("type", string(filters.Type))
	}
	if filters.Status != "" && filters.Status != notify.StatusAll {
		q.Set("status", string(filters.Status))
	}
	if filters.Priority != "" {
		q.Set("priority", string(filters.Priority))
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		q.Set("search", s)
	}
	if filters.Page > 0 {
		q.Set("page", strconv.Itoa(filters.Page))
	}

	path := "/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out notify.ListResult
	if err := c.doJSON(ctx, "list notifications", http.MethodGet, path, nil, &out); err != nil {
		return notify.ListResult{}, err
	}
	if out.Items == nil {
		out.Items = []notify.Notification{}
	}
	return out, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.doJSON(ctx, "mark read", http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.doJSON(ctx, "mark all read", http.MethodPut, "/notifications/read-all", nil, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete notification", http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeleteAllRead(ctx context.Context) error {
	return c.doJSON(ctx, "delete read notifications", http.MethodDelete, "/notifications/delete-read", nil, nil)
}

func (c *Client) Create(ctx context.Context, payload notify.CreatePayload) (notify.Notification, error) {
	var out struct {
		Notification notify.Notification `json:"notification"`
	}
	if err := c.doJSON(ctx, "create notification", http.MethodPost, "/notifications", payload, &out); err != nil {
		return notify.Notification{}, err
	}
	return out.Notification, nil
}

func (c *Client) CreateBulk(ctx context.Context, payload notify.BulkPayload) ([]notify.Notification, error) {
	var out struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	if err := c.doJSON(ctx, "create notifications", http.MethodPost, "/notifications/bulk", payload, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) GetPreferences(ctx context.Context) (notify.Preferences, error) {
	var out struct {
		Preferences notify.Preferences `json:"preferences"`
	}
	if err := c.doJSON(ctx, "get preferences", http.MethodGet, "/notifications/preferences", nil, &out); err != nil {
		return notify.Preferences{}, err
	}
	return out.Preferences, nil
}

func (c *Client) SetPreferences(ctx context.Context, prefs notify.Preferences) (notify.Preferences, error) {
	body := map[string]any{"preferences": prefs}
	var out struct {
		Preferences *notify.Preferences `json:"preferences"`
	}
	if err := c.doJSON(ctx, "set preferences", http.MethodPut, "/notifications/preferences", body, &out); err != nil {
		return notify.Preferences{}, err
	}
	if out.Preferences == nil {
		return prefs, nil
	}
	return *out.Preferences, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, requestPath string, body, out any) error {
	if err := CheckToken(op, c.token, time.Now()); err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}

	correlationID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Correlation-Id", correlationID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logCtx := logging.WithCorrelationID(ctx, correlationID)
	c.log.Debug().Ctx(logCtx).Str("method", method).Str("path", requestPath).Msg("request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return &notify.NetworkError{Op: op, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug().Ctx(logCtx).Err(err).Msg("close response body")
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &notify.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		return nil
	}

	c.log.Debug().Ctx(logCtx).Int("status", resp.StatusCode).Msg("request failed")
	return classify(op, resp.StatusCode, payload)
}

// classify maps an HTTP failure onto the error taxonomy.
func classify(op string, status int, payload []byte) error {
	msg := errorMessage(payload)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &notify.AuthError{Op: op, StatusCode: status, Message: msg}
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, notify.ErrNotFound)
	case status == http.StatusTooManyRequests || status >= 500:
		var cause error
		if msg != "" {
			cause = errors.New(msg)
		}
		return &notify.NetworkError{Op: op, StatusCode: status, Err: cause}
	default:
		return &notify.ValidationError{Op: op, StatusCode: status, Message: msg}
	}
}

func errorMessage(payload []byte) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return strings.TrimSpace(string(payload))
	}
	switch {
	case body.Message != "" && body.Code != "":
		return body.Code + ": " + body.Message
	case body.Message != "":
		return body.Message
	case body.Error != "":
		return body.Error
	}
	return body.Code
}
