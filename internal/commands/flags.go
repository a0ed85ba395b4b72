package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/colonyops/inbox/internal/core/config"
	"github.com/colonyops/inbox/internal/data/remote"
	"github.com/colonyops/inbox/internal/inbox"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return config.DefaultPath()
}

// repository returns a backend client for the configured session.
func (f *Flags) repository() (*remote.Client, error) {
	if f.Config == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	if err := f.Config.RequireSession(); err != nil {
		return nil, err
	}
	return remote.New(f.Config.Server.BaseURL, f.Config.Server.Token, &http.Client{Timeout: f.Config.Server.Timeout}), nil
}

// loadStore opens a polling-only store populated with the first page of the
// inbox. Callers must Close it.
func (f *Flags) loadStore(ctx context.Context) (*inbox.Store, error) {
	client, err := f.repository()
	if err != nil {
		return nil, err
	}

	store := inbox.NewStore(inbox.StoreConfig{
		Repository:  client,
		UserID:      f.Config.Server.UserID,
		Preferences: f.Config.Delivery.Defaults,
	})
	if err := store.Load(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load inbox: %w", err)
	}
	return store, nil
}
