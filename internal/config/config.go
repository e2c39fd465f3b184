// Package config loads vaultq configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DBPath          string `yaml:"db_path"`
	HistoryMaxItems int    `yaml:"history_max_items"`
	Output          string `yaml:"output"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/vaultq/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		HistoryMaxItems: 10,
		Output:          "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// Load ~/.config/vaultq/config.yaml if it exists
	_ = loadYAMLConfig(cfg)

	// Override with environment variables
	if dbPath := os.Getenv("VAULTQ_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if output := os.Getenv("VAULTQ_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if maxItems := os.Getenv("VAULTQ_HISTORY_MAX_ITEMS"); maxItems != "" {
		n, err := strconv.Atoi(maxItems)
		if err != nil {
			return nil, fmt.Errorf("invalid VAULTQ_HISTORY_MAX_ITEMS: %w", err)
		}
		cfg.HistoryMaxItems = n
	}

	// Set defaults if not configured
	if cfg.DBPath == "" {
		if _, err := os.Stat(".vaultq/vault.db"); err == nil {
			cfg.DBPath = ".vaultq/vault.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "vaultq", "vault.db")
		}
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/vaultq/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "vaultq", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
