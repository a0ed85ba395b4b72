package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/colonyops/inbox/internal/core/logging"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	watcher     *fsnotify.Watcher
	path        string
	debounceDur time.Duration
}

// NewWatcher watches the directory holding path so editors that replace the
// file on save are still picked up.
func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:     watcher,
		path:        filepath.Clean(path),
		debounceDur: 200 * time.Millisecond,
	}, nil
}

// Run blocks until ctx is done or the watcher is closed. Each settled change
// to the file that loads and validates is passed to onChange. Invalid
// configs are logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) {
	log := logging.Component("config")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op == fsnotify.Chmod {
				continue
			}

			// Debounce: wait for writes to settle
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.debounceDur):
			}

			drained := false
			for !drained {
				select {
				case <-w.watcher.Events:
				default:
					drained = true
				}
			}

			cfg, err := Load(w.path)
			if err != nil {
				log.Warn().Err(err).Str("path", w.path).Msg("ignoring config change")
				continue
			}
			log.Info().Str("path", w.path).Msg("config reloaded")
			onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
