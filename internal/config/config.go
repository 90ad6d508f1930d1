// Package config handles taskchat configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/taskchat/config.yaml, /etc/taskchat/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskchat", "config.yaml"))
	}

	paths = append(paths, "/etc/taskchat/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all taskchat configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Auth     AuthConfig     `yaml:"auth"`
	Chat     ChatConfig     `yaml:"chat"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DatabaseConfig defines where the SQLite database lives.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OpenAIConfig defines the model gateway settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Optional override for OpenAI-compatible endpoints
	Model   string `yaml:"model"`
}

// AuthConfig defines token signing settings.
type AuthConfig struct {
	// Secret signs bearer tokens. Required; the server refuses to start
	// without it.
	Secret string `yaml:"secret"`
	// TokenTTLHours is the token lifetime in hours (default 24).
	TokenTTLHours int `yaml:"token_ttl_hours"`
}

// ChatConfig tunes the chat orchestrator.
type ChatConfig struct {
	// HistoryLimit caps how many prior messages are sent to the model
	// per request (default 20).
	HistoryLimit int `yaml:"history_limit"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Port: 8080},
		Database: DatabaseConfig{Path: "taskchat.db"},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Auth: AuthConfig{TokenTTLHours: 24},
		Chat: ChatConfig{HistoryLimit: 20},
	}
}
