package app

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/runixer/shastrarthi/internal/config"
)

// DefaultConfigPath is probed when no config path is given.
const DefaultConfigPath = "configs/config.yaml"

// LoadEnv loads .env file from current working directory.
// Silently ignores if file not found, returns error for other failures.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ResolveConfigPath returns provided when it exists, else DefaultConfigPath
// when present, else "" (embedded defaults only).
func ResolveConfigPath(provided string) (string, error) {
	if provided != "" {
		if _, err := os.Stat(provided); err != nil {
			return "", fmt.Errorf("config file not found: %s", provided)
		}
		return provided, nil
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath, nil
	}
	return "", nil
}

// LoadConfig loads and validates the configuration at path.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
