package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/shastrarthi/internal/ratelimit"
	"github.com/runixer/shastrarthi/internal/storage"
	"github.com/runixer/shastrarthi/internal/storage/supabase"
	"github.com/runixer/shastrarthi/internal/testutil"
)

func TestSetupServices_SQLite(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Generation.APIKey = ""
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "shastrarthi.db")

	services, err := SetupServices(t.Context(), testutil.TestLogger(), cfg)
	require.NoError(t, err)

	assert.FileExists(t, cfg.Database.Path)
	assert.IsType(t, &storage.SQLiteStore{}, services.Store)
	assert.NotNil(t, services.Maintenance)
	assert.False(t, services.Generator.Configured())
	assert.False(t, services.AuditLogger.Enabled())
	assert.IsType(t, &ratelimit.MemoryLimiter{}, services.Limiter)

	deps := services.WebDeps()
	assert.NotNil(t, deps.Texts)
	assert.NotNil(t, deps.Publisher)
	assert.NotNil(t, deps.Verifier)

	require.NoError(t, services.Close())
	// A second close is a no-op
	require.NoError(t, services.Close())
}

func TestSetupServices_RequiresInputs(t *testing.T) {
	_, err := SetupServices(t.Context(), nil, testutil.TestConfig())
	assert.Error(t, err)

	_, err = SetupServices(t.Context(), testutil.TestLogger(), nil)
	assert.Error(t, err)
}

func TestSetupServices_InvalidIdentityDriver(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Generation.APIKey = ""
	cfg.Identity.Driver = "ldap"

	_, err := SetupServices(t.Context(), testutil.TestLogger(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity verifier")
}

func TestOpenStorage(t *testing.T) {
	t.Run("supabase has no maintenance", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.Database.Driver = "supabase"
		cfg.Supabase.URL = "https://project.supabase.co"
		cfg.Supabase.APIKey = "anon-key"

		store, maintenance, err := OpenStorage(testutil.TestLogger(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &supabase.Store{}, store)
		assert.Nil(t, maintenance)
	})

	t.Run("supabase requires credentials", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.Database.Driver = "supabase"

		_, _, err := OpenStorage(testutil.TestLogger(), cfg)
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.Database.Driver = "mongo"

		_, _, err := OpenStorage(testutil.TestLogger(), cfg)
		assert.ErrorContains(t, err, "mongo")
	})
}

func TestNewLimiter(t *testing.T) {
	t.Run("memory by default", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.RateLimit.Driver = ""

		l, closeFn, err := NewLimiter(cfg)
		require.NoError(t, err)
		assert.IsType(t, &ratelimit.MemoryLimiter{}, l)
		assert.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.RateLimit.Driver = "redis"
		cfg.RateLimit.RedisAddr = "127.0.0.1:6379"

		l, closeFn, err := NewLimiter(cfg)
		require.NoError(t, err)
		assert.IsType(t, &ratelimit.RedisLimiter{}, l)
		assert.NoError(t, closeFn())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.RateLimit.Driver = "memcached"

		_, closeFn, err := NewLimiter(cfg)
		assert.ErrorIs(t, err, ratelimit.ErrInvalidDriver)
		assert.NotNil(t, closeFn)
	})
}

func TestResolveConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())

	path, err := ResolveConfigPath("")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = ResolveConfigPath("missing.yaml")
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll("configs", 0o755))
	require.NoError(t, os.WriteFile(DefaultConfigPath, []byte("log:\n  level: debug\n"), 0o644))

	path, err = ResolveConfigPath("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigPath, path)

	path, err = ResolveConfigPath(DefaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigPath, path)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("server:\n  listen_port: \"9999\"\n"), 0o644))
	cfg, err := LoadConfig(valid)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.ListenPort)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("database:\n  driver: \"mongo\"\n"), 0o644))
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "invalid configuration")
}
