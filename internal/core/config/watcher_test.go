package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Setenv(EnvToken, "")
	t.Setenv(EnvBaseURL, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  token: one\n"), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go w.Run(ctx, func(cfg *Config) { got <- cfg })

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("server:\n  token: two\n"), 0o600))

	select {
	case cfg := <-got:
		assert.Equal(t, "two", cfg.Server.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_SkipsInvalidConfig(t *testing.T) {
	t.Setenv(EnvBaseURL, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  token: one\n"), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go w.Run(ctx, func(cfg *Config) { got <- cfg })

	require.NoError(t, os.WriteFile(path, []byte("stream:\n  transport: smoke-signals\n"), 0o600))

	select {
	case cfg := <-got:
		t.Fatalf("unexpected reload: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w, err := NewWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, func(*Config) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
