package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/config"
	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/testutil/fakeapi"
	"github.com/colonyops/inbox/pkg/executil"
)

const (
	testToken = "cli-token"
	selfID    = "user-1"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliFixture struct {
	srv   *fakeapi.Server
	flags *Flags
	out   *syncBuffer
	exec  *executil.RecordingExecutor
	stdin string
}

func newCLI(t *testing.T) *cliFixture {
	t.Helper()

	srv := fakeapi.New(t, testToken, selfID)
	base := time.Now().UTC().Add(-time.Hour)
	srv.Seed(
		notify.Notification{ID: "a", Type: notify.TypeInfo, Title: "Build passed", Message: "main is green", Priority: notify.PriorityLow, CreatedAt: base},
		notify.Notification{ID: "b", Type: notify.TypeWarning, Title: "Disk almost full", Message: "92% used", Priority: notify.PriorityHigh, CreatedAt: base.Add(time.Minute)},
		notify.Notification{ID: "c", Type: notify.TypeInfo, Title: "Weekly digest", Message: "3 new posts", Priority: notify.PriorityMedium, Read: true, CreatedAt: base.Add(2 * time.Minute)},
	)

	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = srv.URL
	cfg.Server.Token = testToken
	cfg.Server.UserID = selfID
	cfg.Sync.PollInterval = 0
	cfg.Stream.BaseDelay = 10 * time.Millisecond
	cfg.Stream.MaxDelay = 50 * time.Millisecond

	return &cliFixture{
		srv:   srv,
		flags: &Flags{Config: &cfg},
		out:   &syncBuffer{},
		exec:  &executil.RecordingExecutor{},
	}
}

func (f *cliFixture) app() *cli.Command {
	app := &cli.Command{Name: "inbox", Writer: f.out}

	send := NewSendCmd(f.flags)
	send.SetStdin(strings.NewReader(f.stdin))

	watch := NewWatchCmd(f.flags)
	watch.exec = f.exec
	watch.goos = "linux"

	app = NewLsCmd(f.flags).Register(app)
	app = NewStatsCmd(f.flags).Register(app)
	app = NewReadCmd(f.flags).Register(app)
	app = NewRmCmd(f.flags).Register(app)
	app = send.Register(app)
	app = NewPrefsCmd(f.flags).Register(app)
	app = watch.Register(app)
	return app
}

func (f *cliFixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return f.app().Run(context.Background(), append([]string{"inbox"}, args...))
}

func TestLs_JSON(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "ls", "--json"))

	var got notify.ListResult
	require.NoError(t, json.Unmarshal([]byte(f.out.String()), &got))
	assert.Equal(t, 2, got.UnreadCount)
	require.Len(t, got.Items, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got.Items[0].ID, got.Items[1].ID, got.Items[2].ID})
}

func TestLs_Filters(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "ls", "--json", "--status", "unread", "--priority", "high"))

	var got notify.ListResult
	require.NoError(t, json.Unmarshal([]byte(f.out.String()), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "b", got.Items[0].ID)
	assert.Equal(t, 2, got.UnreadCount, "unread count ignores filters")
}

func TestLs_Search(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "ls", "--json", "-q", "GREEN"))

	var got notify.ListResult
	require.NoError(t, json.Unmarshal([]byte(f.out.String()), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "a", got.Items[0].ID)
}

func TestLs_Table(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "ls"))

	out := f.out.String()
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Disk almost full")
	assert.Contains(t, out, "Weekly digest")
}

func TestLs_RejectsUnknownFilter(t *testing.T) {
	f := newCLI(t)
	err := f.run(t, "ls", "--type", "urgent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
	assert.Empty(t, f.srv.Calls())
}

func TestStats_JSON(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "stats", "--json"))

	var got notify.Stats
	require.NoError(t, json.Unmarshal([]byte(f.out.String()), &got))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Unread)
	assert.Equal(t, 1, got.Read)
	assert.Equal(t, 2, got.ByType[notify.TypeInfo])
	assert.Equal(t, 1, got.ByPriority[notify.PriorityHigh])
	assert.Equal(t, 3, got.RecentCount)
}

func TestStats_Text(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "stats"))
	assert.Contains(t, f.out.String(), "3 total, 2 unread, 1 read")
}

func TestRead(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "read", "a"))

	n, ok := f.srv.Item("a")
	require.True(t, ok)
	assert.True(t, n.Read)
	assert.Contains(t, f.out.String(), "Marked a as read")
}

func TestRead_UnknownID(t *testing.T) {
	f := newCLI(t)
	err := f.run(t, "read", "a", "zzz")
	require.ErrorIs(t, err, notify.ErrNotFound)

	n, _ := f.srv.Item("a")
	assert.True(t, n.Read, "known ids are still marked")
}

func TestRead_All(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "read", "--all"))

	for _, n := range f.srv.Items() {
		assert.True(t, n.Read, n.ID)
	}
	assert.Contains(t, f.out.String(), "Marked 2 notification(s)")
}

func TestRead_RequiresTarget(t *testing.T) {
	f := newCLI(t)
	require.Error(t, f.run(t, "read"))
	require.Error(t, f.run(t, "read", "--all", "a"))
}

func TestRm(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "rm", "b"))

	_, ok := f.srv.Item("b")
	assert.False(t, ok)
}

func TestRm_Read(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "rm", "--read"))

	_, ok := f.srv.Item("c")
	assert.False(t, ok)
	assert.Len(t, f.srv.Items(), 2)
	assert.Contains(t, f.out.String(), "Deleted 1 read")
}

func TestSend_Self(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "send", "--title", "Lunch", "--message", "pizza in 10", "--json"))

	var created []notify.Notification
	require.NoError(t, json.Unmarshal([]byte(f.out.String()), &created))
	require.Len(t, created, 1)
	assert.Equal(t, "Lunch", created[0].Title)
	assert.Equal(t, notify.TypeInfo, created[0].Type)
	assert.Equal(t, notify.PriorityMedium, created[0].Priority)

	_, ok := f.srv.Item(created[0].ID)
	assert.True(t, ok)
	assert.Contains(t, f.srv.Calls(), "POST /notifications")
}

func TestSend_Bulk(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "send", "-t", "Standup", "-m", "in 5 minutes", "--to", "user-2", "--to", "user-3"))

	assert.Contains(t, f.srv.Calls(), "POST /notifications/bulk")
	assert.Equal(t, 2, strings.Count(f.out.String(), "Sent "))
}

func TestSend_FromStdin(t *testing.T) {
	f := newCLI(t)
	f.stdin = `{"title":"Piped","message":"from a script","type":"success","userIds":["user-2"]}`
	require.NoError(t, f.run(t, "send", "-f", "-"))

	assert.Contains(t, f.srv.Calls(), "POST /notifications")
	assert.Contains(t, f.out.String(), "Sent ")
}

func TestSend_Invalid(t *testing.T) {
	f := newCLI(t)
	err := f.run(t, "send", "--title", "", "--message", "body")
	require.ErrorIs(t, err, notify.ErrValidation)
	assert.NotContains(t, f.srv.Calls(), "POST /notifications")
}

func TestPrefs(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, f.run(t, "prefs", "set", "--desktop"))
	assert.Equal(t, notify.Preferences{BrowserNotifications: true}, f.srv.Preferences())

	f.out = &syncBuffer{}
	require.NoError(t, f.run(t, "prefs", "set", "--sound=true", "--json"))
	assert.Equal(t, notify.Preferences{BrowserNotifications: true, SoundNotifications: true}, f.srv.Preferences())

	f.out = &syncBuffer{}
	require.NoError(t, f.run(t, "prefs", "get"))
	assert.Contains(t, f.out.String(), "desktop: on")
	assert.Contains(t, f.out.String(), "sound:   on")
}

func TestPrefs_SetRequiresFlag(t *testing.T) {
	f := newCLI(t)
	require.Error(t, f.run(t, "prefs", "set"))
}

func TestCommands_RequireToken(t *testing.T) {
	f := newCLI(t)
	f.flags.Config.Server.Token = ""

	err := f.run(t, "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvToken)
	assert.Empty(t, f.srv.Calls())
}

func TestWatch_PrintsAndDeliversArrivals(t *testing.T) {
	f := newCLI(t)
	f.srv.SetPreferences(notify.Preferences{BrowserNotifications: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app().Run(ctx, []string{"inbox", "watch"}) }()

	require.Eventually(t, func() bool { return f.srv.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return strings.Contains(f.out.String(), "2 unread") }, 2*time.Second, 5*time.Millisecond)

	f.srv.Push(notify.Notification{ID: "d", Type: notify.TypeError, Title: "Deploy failed", Message: "rollback started", Priority: notify.PriorityHigh, CreatedAt: time.Now().UTC()})

	require.Eventually(t, func() bool { return strings.Contains(f.out.String(), "Deploy failed") }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		for _, c := range f.exec.Commands() {
			if c.Cmd == "notify-send" && len(c.Args) > 0 && c.Args[len(c.Args)-2] == "Deploy failed" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not exit")
	}
	require.Eventually(t, func() bool { return f.srv.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWatch_JSONLines(t *testing.T) {
	f := newCLI(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.app().Run(ctx, []string{"inbox", "watch", "--json", "--no-delivery"}) }()

	require.Eventually(t, func() bool { return f.srv.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	f.srv.Push(notify.Notification{ID: "e", Type: notify.TypeInfo, Title: "Hello", Message: "world", Priority: notify.PriorityLow, CreatedAt: time.Now().UTC()})

	require.Eventually(t, func() bool { return strings.Contains(f.out.String(), `"id":"e"`) }, 2*time.Second, 5*time.Millisecond)
	assert.NotContains(t, f.out.String(), "unread")
	assert.Empty(t, f.exec.Commands())

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_LoadFailure(t *testing.T) {
	f := newCLI(t)
	f.srv.FailNext("GET /notifications", 500)

	err := f.run(t, "watch", "--no-delivery")
	require.ErrorIs(t, err, notify.ErrNetwork)
	assert.Zero(t, f.srv.StreamDials())
}
