package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/runixer/shastrarthi/internal/agentlog"
	"github.com/runixer/shastrarthi/internal/auth"
	"github.com/runixer/shastrarthi/internal/config"
	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/publish"
	"github.com/runixer/shastrarthi/internal/ratelimit"
	"github.com/runixer/shastrarthi/internal/storage"
	"github.com/runixer/shastrarthi/internal/storage/supabase"
	"github.com/runixer/shastrarthi/internal/web"
)

// Services holds everything the HTTP service and shastractl share.
// It is built once by SetupServices and released with Close.
type Services struct {
	Store storage.Storage
	// Maintenance is nil for the supabase driver.
	Maintenance storage.MaintenanceRepository

	AuditLogger *agentlog.Logger
	Generator   gemini.Client
	Limiter     ratelimit.Limiter
	Verifier    auth.Verifier
	Publisher   *publish.Deduper

	closers []func() error
}

// OpenStorage opens the datastore selected by database.driver.
// The SQLite store is created and migrated; its parent directory is created
// when missing.
func OpenStorage(logger *slog.Logger, cfg *config.Config) (storage.Storage, storage.MaintenanceRepository, error) {
	switch cfg.Database.Driver {
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage: %w", err)
		}
		if err := store.Init(); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, store, nil
	case "supabase":
		store, err := supabase.New(logger, supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// NewLimiter creates the rate limiter selected by rate_limit.driver.
// The returned close func releases the redis client and is never nil.
func NewLimiter(cfg *config.Config) (ratelimit.Limiter, func() error, error) {
	noop := func() error { return nil }

	driver := ratelimit.Driver(cfg.RateLimit.Driver)
	if driver == "" {
		driver = ratelimit.DriverMemory
	}
	if driver != ratelimit.DriverRedis {
		l, err := ratelimit.New(driver)
		return l, noop, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	l, err := ratelimit.New(driver, ratelimit.WithRedisClient(client), ratelimit.WithKeyPrefix("shastrarthi:ratelimit:"))
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return l, client.Close, nil
}

// SetupServices initializes storage and every service on top of it.
// The caller must call Close when done.
func SetupServices(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Services, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	services := &Services{}

	// Track success for cleanup-on-error
	var success bool
	defer func() {
		if !success {
			_ = services.Close()
		}
	}()

	store, maintenance, err := OpenStorage(logger, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = store
	services.Maintenance = maintenance
	services.closers = append(services.closers, store.Close)

	// Only records when debug mode is enabled
	services.AuditLogger = agentlog.NewLogger(store, logger, cfg.Server.DebugMode)

	services.Generator, err = gemini.NewClient(ctx, logger, cfg.Generation, services.AuditLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	limiter, closeLimiter, err := NewLimiter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	services.Limiter = limiter
	services.closers = append(services.closers, closeLimiter)

	services.Verifier, err = auth.NewVerifier(cfg.Identity.Driver,
		auth.WithSupabase(cfg.Supabase.URL, cfg.Supabase.APIKey),
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity verifier: %w", err)
	}

	services.Publisher = publish.NewDeduper(store, cfg.Publish, cfg.GetSiteURL(), logger)

	success = true
	return services, nil
}

// WebDeps returns the HTTP server dependencies.
func (s *Services) WebDeps() web.Deps {
	return web.Deps{
		Texts:       s.Store,
		Datasets:    s.Store,
		Pages:       s.Store,
		Maintenance: s.Maintenance,
		Generator:   s.Generator,
		Limiter:     s.Limiter,
		Verifier:    s.Verifier,
		Publisher:   s.Publisher,
	}
}

// Close releases resources in reverse order, collecting any errors.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
