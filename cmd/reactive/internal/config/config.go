// Package config loads and saves the reactive CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the config file.
	ConfigFileName = "config.yaml"

	// DefaultConfigDir is the config directory under the user's home,
	// ~/.config/reactive on Unix systems.
	DefaultConfigDir = ".config/reactive"
)

// Config is the reactive CLI configuration.
type Config struct {
	// DefaultAddr is the listen address serve uses when -addr is not
	// given.
	DefaultAddr string `yaml:"default_addr,omitempty"`

	// Minify enables output minification for rendered fragments.
	Minify bool `yaml:"minify,omitempty"`

	// LogLevel sets serve's log verbosity: debug, info, warn, or error.
	LogLevel string `yaml:"log_level,omitempty"`

	// SessionTTLHours is how long idle fallback sessions live.
	SessionTTLHours int `yaml:"session_ttl_hours,omitempty"`

	// Version tracks the config file version for future migrations.
	Version string `yaml:"version,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DefaultAddr:     "localhost:8080",
		LogLevel:        "info",
		SessionTTLHours: 24,
		Version:         "1.0",
	}
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir, ConfigFileName), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(homeDir, DefaultConfigDir), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// LoadConfig loads the configuration, falling back to defaults when no
// config file exists.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.DefaultAddr == "" {
		config.DefaultAddr = "localhost:8080"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.SessionTTLHours == 0 {
		config.SessionTTLHours = 24
	}
	if config.Version == "" {
		config.Version = "1.0"
	}

	return &config, nil
}

// SaveConfig writes the configuration to the config file.
func SaveConfig(config *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
