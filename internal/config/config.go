package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/cesargomez89/mediacache/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port              string        `koanf:"port"`
	DBPath            string        `koanf:"db_path"`
	LibraryDir        string        `koanf:"library_dir"`
	LogLevel          string        `koanf:"log_level"`
	LogFormat         string        `koanf:"log_format"`
	BusyRetryInterval time.Duration `koanf:"busy_retry_interval"`
	BusyMaxAttempts   int           `koanf:"busy_max_attempts"`
	ChunkSize         int           `koanf:"chunk_size"`
	SyncConcurrency   int           `koanf:"sync_concurrency"`
	SyncPollInterval  time.Duration `koanf:"sync_poll_interval"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Port:              constants.DefaultPort,
		DBPath:            constants.DefaultDBPath,
		LogLevel:          "info",
		LogFormat:         "text",
		BusyRetryInterval: constants.DefaultBusyRetryInterval,
		BusyMaxAttempts:   constants.DefaultBusyMaxAttempts,
		ChunkSize:         constants.DefaultChunkSize,
		SyncConcurrency:   constants.DefaultConcurrency,
		SyncPollInterval:  constants.DefaultPollInterval,
	}
}

// Load builds the configuration from defaults, an optional TOML file and
// environment variables, in that order of precedence (last wins).
func Load() (*Config, error) {
	cfg := Defaults()

	path := configFilePath()
	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.LibraryDir = getEnv("LIBRARY_DIR", cfg.LibraryDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.BusyRetryInterval, err = getEnvDuration("BUSY_RETRY_INTERVAL", cfg.BusyRetryInterval); err != nil {
		return nil, err
	}
	if cfg.BusyMaxAttempts, err = getEnvInt("BUSY_MAX_ATTEMPTS", cfg.BusyMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return nil, err
	}
	if cfg.SyncConcurrency, err = getEnvInt("SYNC_CONCURRENCY", cfg.SyncConcurrency); err != nil {
		return nil, err
	}
	if cfg.SyncPollInterval, err = getEnvDuration("SYNC_POLL_INTERVAL", cfg.SyncPollInterval); err != nil {
		return nil, err
	}

	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.LibraryDir = expandPath(cfg.LibraryDir)

	return cfg, nil
}

// DataPath returns a path for name inside the XDG data directory
func DataPath(name string) string {
	return filepath.Join(xdg.DataHome, constants.AppName, name)
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.BusyRetryInterval <= 0 {
		errors = append(errors, fmt.Sprintf("BUSY_RETRY_INTERVAL must be positive, got: %s", c.BusyRetryInterval))
	}

	if c.BusyMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("BUSY_MAX_ATTEMPTS must be at least 1, got: %d", c.BusyMaxAttempts))
	}

	if c.ChunkSize < 1 {
		errors = append(errors, fmt.Sprintf("CHUNK_SIZE must be at least 1, got: %d", c.ChunkSize))
	}

	if c.SyncConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("SYNC_CONCURRENCY must be at least 1, got: %d", c.SyncConcurrency))
	}

	if c.SyncPollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SYNC_POLL_INTERVAL must be positive, got: %s", c.SyncPollInterval))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// configFilePath returns CONFIG_FILE when set, otherwise the XDG config
// file if one exists.
func configFilePath() string {
	if path, ok := os.LookupEnv("CONFIG_FILE"); ok {
		return expandPath(path)
	}
	path, err := xdg.SearchConfigFile(filepath.Join(constants.AppName, constants.ConfigFileName))
	if err != nil {
		return ""
	}
	return path
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number, got: %s", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration, got: %s", key, value)
	}
	return d, nil
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
