package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/runixer/shastrarthi/internal/config"
	"github.com/runixer/shastrarthi/internal/storage"
)

// TestSiteURL is the site URL used by TestConfig.
const TestSiteURL = "https://shastrarthi.example"

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns a config with sensible test defaults.
func TestConfig() *config.Config {
	cfg := &config.Config{
		Generation: config.GenerationConfig{
			APIKey:  "test-key",
			Model:   "gemini-test",
			Timeout: "5s",
		},
		RateLimit: config.RateLimitConfig{
			Driver:      "memory",
			Window:      "1m",
			MaxRequests: 20,
		},
	}
	cfg.Log.Level = "debug"
	cfg.Server.ListenPort = "0"
	cfg.Server.SiteURL = TestSiteURL
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = ":memory:"
	cfg.Identity.Driver = "header"
	return cfg
}

// NewTestStore returns an initialized in-memory SQLite store closed on cleanup.
func NewTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(TestLogger(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
