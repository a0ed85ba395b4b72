// Package fakeapi is an in-memory notification backend for tests. It serves
// the REST endpoints and the push stream (SSE and websocket) over httptest.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/colonyops/inbox/internal/core/notify"
)

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	token  string
	userID string

	mu         sync.Mutex
	items      map[string]notify.Notification
	prefs      notify.Preferences
	failures   map[string][]int
	calls      []string
	streams    map[chan string]struct{}
	streamDial int
}

// New starts a fake backend that accepts token and treats userID as the
// signed-in recipient whose new notifications are pushed on the stream.
func New(t testing.TB, token, userID string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		token:    token,
		userID:   userID,
		items:    map[string]notify.Notification{},
		failures: map[string][]int{},
		streams:  map[chan string]struct{}{},
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.auth, s.injectFailure)

	g := r.Group("/notifications")
	g.GET("", s.list)
	g.PUT("/read-all", s.markAllRead)
	g.PUT("/:id/read", s.markRead)
	g.DELETE("/delete-read", s.deleteRead)
	g.DELETE("/:id", s.delete)
	g.POST("", s.create)
	g.POST("/bulk", s.createBulk)
	g.GET("/preferences", s.getPrefs)
	g.PUT("/preferences", s.setPrefs)
	g.GET("/stream", s.stream)

	s.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		s.DropStreams()
		s.Close()
	})
	return s
}

// Seed stores notifications as if they already existed server side.
func (s *Server) Seed(items ...notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range items {
		s.items[n.ID] = n
	}
}

// Items returns the server side notifications, newest first.
func (s *Server) Items() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, n)
	}
	notify.Sort(out)
	return out
}

// Item returns one server side notification.
func (s *Server) Item(id string) (notify.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	return n, ok
}

// FailNext makes the next request to route answer with status instead of
// being served. route is "METHOD /path" using gin route syntax, for example
// "PUT /notifications/:id/read". Repeated calls queue more failures.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// SetPreferences replaces the stored delivery preferences.
func (s *Server) SetPreferences(p notify.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// Preferences returns the stored delivery preferences.
func (s *Server) Preferences() notify.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Calls returns every request seen as "METHOD /path".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// StreamDials counts stream connection attempts that reached the handler.
func (s *Server) StreamDials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamDial
}

// Subscribers counts currently attached stream clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Push stores n and sends it to every stream client.
func (s *Server) Push(n notify.Notification) {
	s.mu.Lock()
	s.items[n.ID] = n
	s.mu.Unlock()

	data, _ := json.Marshal(n)
	s.PushRaw(string(data))
}

// PushRaw sends an arbitrary payload to every stream client.
func (s *Server) PushRaw(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.streams {
		select {
		case ch <- data:
		default:
		}
	}
}

// DropStreams disconnects every stream client.
func (s *Server) DropStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.streams {
		close(ch)
		delete(s.streams, ch)
	}
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, c.Request.Method+" "+c.Request.URL.Path)
	s.mu.Unlock()
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if s.token == "" {
		c.Next()
		return
	}
	token, _ := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	if token != s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "invalid token"})
		return
	}
	c.Next()
}

func (s *Server) injectFailure(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()

	s.mu.Lock()
	queue := s.failures[route]
	status := 0
	if len(queue) > 0 {
		status = queue[0]
		s.failures[route] = queue[1:]
	}
	if status != 0 && c.FullPath() == "/notifications/stream" {
		s.streamDial++
	}
	s.mu.Unlock()

	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"code": "injected", "message": http.StatusText(status)})
		return
	}
	c.Next()
}

func (s *Server) list(c *gin.Context) {
	filters := notify.Filters{
		Type:     notify.Type(c.Query("type")),
		Status:   notify.Status(c.Query("status")),
		Priority: notify.Priority(c.Query("priority")),
		Search:   c.Query("search"),
	}
	items := notify.Filter(s.Items(), filters)
	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"unreadCount":   notify.CountUnread(s.Items()),
	})
}

func (s *Server) markRead(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if !n.Read {
		now := time.Now().UTC()
		n.Read, n.ReadAt = true, &now
		s.items[n.ID] = n
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllRead(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, n := range s.items {
		if !n.Read {
			n.Read, n.ReadAt = true, &now
			s.items[id] = n
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) delete(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.Param("id")]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	delete(s.items, c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteRead(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.items {
		if n.Read {
			delete(s.items, id)
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) create(c *gin.Context) {
	var p notify.CreatePayload
	if err := c.ShouldBindJSON(&p); err != nil || strings.TrimSpace(p.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid", "message": "title is required"})
		return
	}
	n := s.newNotification(p.Title, p.Message, p.Type, p.Priority)
	if p.UserID == s.userID {
		s.Push(n)
	}
	c.JSON(http.StatusCreated, gin.H{"notification": n})
}

func (s *Server) createBulk(c *gin.Context) {
	var p notify.BulkPayload
	if err := c.ShouldBindJSON(&p); err != nil || len(p.UserIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid", "message": "userIds is required"})
		return
	}
	out := make([]notify.Notification, 0, len(p.UserIDs))
	for _, uid := range p.UserIDs {
		n := s.newNotification(p.Title, p.Message, p.Type, p.Priority)
		if uid == s.userID {
			s.Push(n)
		}
		out = append(out, n)
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": out})
}

func (s *Server) newNotification(title, message string, typ notify.Type, prio notify.Priority) notify.Notification {
	if typ == "" {
		typ = notify.TypeInfo
	}
	if prio == "" {
		prio = notify.PriorityMedium
	}
	return notify.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Priority:  prio,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Server) getPrefs(c *gin.Context) {
	s.mu.Lock()
	prefs := s.prefs
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

func (s *Server) setPrefs(c *gin.Context) {
	var body struct {
		Preferences notify.Preferences `json:"preferences"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.prefs = body.Preferences
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"preferences": body.Preferences})
}

func (s *Server) subscribe() chan string {
	ch := make(chan string, 64)
	s.mu.Lock()
	s.streams[ch] = struct{}{}
	s.streamDial++
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[ch]; ok {
		delete(s.streams, ch)
		close(ch)
	}
}

func (s *Server) stream(c *gin.Context) {
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		s.streamWebsocket(c)
		return
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("notification", data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) streamWebsocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case data, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server dropped stream")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, []byte(data)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
