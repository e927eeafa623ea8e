package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// DefaultSiteURL is used when server.site_url is empty or cannot be parsed.
const DefaultSiteURL = "http://localhost:3000"

type GenerationConfig struct {
	APIKey  string `yaml:"api_key" env:"SHASTRARTHI_GEMINI_API_KEY"`
	Model   string `yaml:"model" env:"SHASTRARTHI_GEMINI_MODEL"`
	BaseURL string `yaml:"base_url" env:"SHASTRARTHI_GEMINI_BASE_URL"`
	Timeout string `yaml:"timeout" env:"SHASTRARTHI_GEMINI_TIMEOUT"`
}

// DefaultGenerationTimeout bounds a single backend call.
const DefaultGenerationTimeout = 60 * time.Second

// GetTimeout returns the parsed generation timeout.
// Falls back to DefaultGenerationTimeout if not configured or invalid.
func (c *GenerationConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, DefaultGenerationTimeout)
}

type RateLimitConfig struct {
	Driver        string `yaml:"driver" env:"SHASTRARTHI_RATE_LIMIT_DRIVER"`
	Window        string `yaml:"window" env:"SHASTRARTHI_RATE_LIMIT_WINDOW"`
	MaxRequests   int    `yaml:"max_requests" env:"SHASTRARTHI_RATE_LIMIT_MAX_REQUESTS"`
	RedisAddr     string `yaml:"redis_addr" env:"SHASTRARTHI_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"SHASTRARTHI_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"SHASTRARTHI_REDIS_DB"`
}

const (
	DefaultRateLimitWindow      = time.Minute
	DefaultRateLimitMaxRequests = 20
)

// GetWindow returns the fixed window length.
func (c *RateLimitConfig) GetWindow() time.Duration {
	return parseDurationOr(c.Window, DefaultRateLimitWindow)
}

// GetMaxRequests returns the number of requests allowed per window.
func (c *RateLimitConfig) GetMaxRequests() int {
	if c.MaxRequests <= 0 {
		return DefaultRateLimitMaxRequests
	}
	return c.MaxRequests
}

type ChatConfig struct {
	MaxQueryLength       int `yaml:"max_query_length"`
	HistoryLimit         int `yaml:"history_limit"`
	HistoryMessageLength int `yaml:"history_message_length"`
	StreamChunkSize      int `yaml:"stream_chunk_size"`
	NeighborVerses       int `yaml:"neighbor_verses"`
}

const (
	DefaultMaxQueryLength       = 2000
	DefaultHistoryLimit         = 8
	DefaultHistoryMessageLength = 2000
	DefaultStreamChunkSize      = 100
	DefaultNeighborVerses       = 3
)

func (c *ChatConfig) GetMaxQueryLength() int {
	return positiveOr(c.MaxQueryLength, DefaultMaxQueryLength)
}

func (c *ChatConfig) GetHistoryLimit() int {
	return positiveOr(c.HistoryLimit, DefaultHistoryLimit)
}

func (c *ChatConfig) GetHistoryMessageLength() int {
	return positiveOr(c.HistoryMessageLength, DefaultHistoryMessageLength)
}

func (c *ChatConfig) GetStreamChunkSize() int {
	return positiveOr(c.StreamChunkSize, DefaultStreamChunkSize)
}

func (c *ChatConfig) GetNeighborVerses() int {
	return positiveOr(c.NeighborVerses, DefaultNeighborVerses)
}

// PublishConfig tunes public page deduplication. The thresholds have no product
// meaning beyond skipping degenerate output and bounding the lookup.
type PublishConfig struct {
	MinContentLength      int `yaml:"min_content_length" env:"SHASTRARTHI_PUBLISH_MIN_CONTENT_LENGTH"`
	ScanWindow            int `yaml:"scan_window" env:"SHASTRARTHI_PUBLISH_SCAN_WINDOW"`
	MaxSlugAttempts       int `yaml:"max_slug_attempts"`
	SourceNormalizeLength int `yaml:"source_normalize_length"`
	MaxSourceQueryLength  int `yaml:"max_source_query_length"`
}

const (
	DefaultMinContentLength      = 300
	DefaultScanWindow            = 100
	DefaultMaxSlugAttempts       = 5
	DefaultSourceNormalizeLength = 500
	DefaultMaxSourceQueryLength  = 8000
)

func (c *PublishConfig) GetMinContentLength() int {
	return positiveOr(c.MinContentLength, DefaultMinContentLength)
}

func (c *PublishConfig) GetScanWindow() int {
	return positiveOr(c.ScanWindow, DefaultScanWindow)
}

func (c *PublishConfig) GetMaxSlugAttempts() int {
	return positiveOr(c.MaxSlugAttempts, DefaultMaxSlugAttempts)
}

func (c *PublishConfig) GetSourceNormalizeLength() int {
	return positiveOr(c.SourceNormalizeLength, DefaultSourceNormalizeLength)
}

func (c *PublishConfig) GetMaxSourceQueryLength() int {
	return positiveOr(c.MaxSourceQueryLength, DefaultMaxSourceQueryLength)
}

type ToolsConfig struct {
	MaxFieldLength int `yaml:"max_field_length"`
}

// DefaultMaxToolFieldLength caps each string field of a tool payload.
const DefaultMaxToolFieldLength = 5000

func (c *ToolsConfig) GetMaxFieldLength() int {
	return positiveOr(c.MaxFieldLength, DefaultMaxToolFieldLength)
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"SHASTRARTHI_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort      string `yaml:"listen_port" env:"SHASTRARTHI_SERVER_PORT"`
		DebugMode       bool   `yaml:"debug_mode" env:"SHASTRARTHI_SERVER_DEBUG"`
		SiteURL         string `yaml:"site_url" env:"SHASTRARTHI_SITE_URL"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Generation GenerationConfig `yaml:"generation"`
	Database   struct {
		Driver string `yaml:"driver" env:"SHASTRARTHI_DATABASE_DRIVER"`
		Path   string `yaml:"path" env:"SHASTRARTHI_DATABASE_PATH"`
	} `yaml:"database"`
	Supabase struct {
		URL    string `yaml:"url" env:"SHASTRARTHI_SUPABASE_URL"`
		APIKey string `yaml:"api_key" env:"SHASTRARTHI_SUPABASE_API_KEY"`
	} `yaml:"supabase"`
	Identity struct {
		Driver string `yaml:"driver" env:"SHASTRARTHI_IDENTITY_DRIVER"`
	} `yaml:"identity"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Chat      ChatConfig      `yaml:"chat"`
	Publish   PublishConfig   `yaml:"publish"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	// The key name used across Google tooling
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// GetSiteURL returns the public base URL without a trailing slash.
// A bare host gets an https:// scheme.
func (c *Config) GetSiteURL() string {
	raw := strings.TrimSpace(c.Server.SiteURL)
	if raw == "" {
		return DefaultSiteURL
	}
	if !schemeRe.MatchString(raw) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return DefaultSiteURL
	}
	return strings.TrimRight(u.String(), "/")
}

// DefaultShutdownTimeout is how long in-flight streams get on shutdown.
const DefaultShutdownTimeout = 5 * time.Second

func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDurationOr(c.Server.ShutdownTimeout, DefaultShutdownTimeout)
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenPort == "" {
		errs = append(errs, errors.New("server.listen_port is required"))
	}
	if c.Generation.Model == "" {
		errs = append(errs, errors.New("generation.model is required"))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required when database.driver is sqlite"))
		}
	case "supabase":
		errs = append(errs, c.requireSupabase("database.driver")...)
	default:
		errs = append(errs, fmt.Errorf("database.driver: must be one of 'sqlite', 'supabase', got %q", c.Database.Driver))
	}

	switch c.Identity.Driver {
	case "header":
	case "supabase":
		errs = append(errs, c.requireSupabase("identity.driver")...)
	default:
		errs = append(errs, fmt.Errorf("identity.driver: must be one of 'header', 'supabase', got %q", c.Identity.Driver))
	}

	switch c.RateLimit.Driver {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, errors.New("rate_limit.redis_addr is required when rate_limit.driver is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("rate_limit.driver: must be one of 'memory', 'redis', got %q", c.RateLimit.Driver))
	}

	durations := map[string]string{
		"generation.timeout":      c.Generation.Timeout,
		"rate_limit.window":       c.RateLimit.Window,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration format %q: %w", name, value, err))
		}
	}

	if c.RateLimit.MaxRequests < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.max_requests must not be negative, got %d", c.RateLimit.MaxRequests))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) requireSupabase(field string) []error {
	var errs []error
	if c.Supabase.URL == "" {
		errs = append(errs, fmt.Errorf("supabase.url is required when %s is supabase", field))
	}
	if c.Supabase.APIKey == "" {
		errs = append(errs, fmt.Errorf("supabase.api_key is required when %s is supabase", field))
	}
	return errs
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
