// Package config handles Sabio configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/sabio/config.yaml, /etc/sabio/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sabio", "config.yaml"))
	}

	paths = append(paths, "/etc/sabio/config.yaml")
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

// Config holds all Sabio configuration.
type Config struct {
	Model    ModelConfig  `yaml:"model"`
	Router   RouterConfig `yaml:"router"`
	Registry string       `yaml:"registry"` // path to the capability registry YAML
	Scope    string       `yaml:"scope"`    // path to the product scope markdown
	LogLevel string       `yaml:"log_level"`
}

// ModelConfig defines the LLM backend used for semantic classification.
type ModelConfig struct {
	Provider  string          `yaml:"provider"` // ollama, anthropic
	Name      string          `yaml:"name"`
	OllamaURL string          `yaml:"ollama_url"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// RouterConfig defines semantic router tuning knobs.
type RouterConfig struct {
	// MaxRetries bounds the JSON guard repair loop. Total model calls
	// per guarded request = MaxRetries + 1.
	MaxRetries int `yaml:"max_retries"`
	// HistoryTail is how many recent conversation turns are shown to
	// the semantic classifier.
	HistoryTail int `yaml:"history_tail"`
	// MaxAuditLog is how many route decisions to keep in memory.
	MaxAuditLog int `yaml:"max_audit_log"`
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
		Model: ModelConfig{
			Provider:  "ollama",
			Name:      "qwen3:4b",
			OllamaURL: "http://localhost:11434",
		},
		Router: RouterConfig{
			MaxRetries:  2,
			HistoryTail: 4,
			MaxAuditLog: 1000,
		},
		Registry: "CAPABILITIES.yaml",
		Scope:    "PRODUCT_SCOPE.md",
	}
}
