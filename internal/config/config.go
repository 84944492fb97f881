// Package config provides YAML-based configuration loading for Notary,
// plus environment-sourced credentials.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Notary configuration, loaded from notary.yaml.
type Config struct {
	DocStore         DocStoreConfig `yaml:"docstore"`
	AllowedDatabases []string       `yaml:"allowed_databases"`
	Status           StatusConfig   `yaml:"status"`
	LogLevel         string         `yaml:"log_level"`
}

// DocStoreConfig holds connection settings for the document store API.
type DocStoreConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// StatusConfig holds settings for the local status HTTP server.
type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Credentials are the secrets Notary needs, read from the environment
// so they never live in the config file.
type Credentials struct {
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN"`
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	DocStoreToken string `envconfig:"DOCSTORE_TOKEN"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCredentials reads and validates credentials from the environment.
func LoadCredentials() (*Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return nil, fmt.Errorf("config: credentials: %w", err)
	}
	if err := creds.validate(); err != nil {
		return nil, err
	}
	return &creds, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DocStore.BaseURL == "" {
		c.DocStore.BaseURL = "https://api.notion.com"
	}
	if c.DocStore.APIVersion == "" {
		c.DocStore.APIVersion = "2022-06-28"
	}
	if c.DocStore.TimeoutSec == 0 {
		c.DocStore.TimeoutSec = 10
	}
	if c.Status.Port == 0 {
		c.Status.Port = 8090
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if !strings.HasPrefix(c.DocStore.BaseURL, "http://") && !strings.HasPrefix(c.DocStore.BaseURL, "https://") {
		errs = append(errs, "docstore.base_url must be an http(s) URL")
	}
	for i, id := range c.AllowedDatabases {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Sprintf("allowed_databases[%d] is empty", i))
		}
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level %q is not one of trace/debug/info/warn/error", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validate checks that all secrets are present and look plausible.
func (c *Credentials) validate() error {
	var errs []string
	if c.SlackAppToken == "" {
		errs = append(errs, "SLACK_APP_TOKEN is required")
	} else if !strings.HasPrefix(c.SlackAppToken, "xapp-") {
		errs = append(errs, "SLACK_APP_TOKEN must start with xapp-")
	}
	if c.SlackBotToken == "" {
		errs = append(errs, "SLACK_BOT_TOKEN is required")
	} else if !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		errs = append(errs, "SLACK_BOT_TOKEN must start with xoxb-")
	}
	if c.DocStoreToken == "" {
		errs = append(errs, "DOCSTORE_TOKEN is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: credentials: %s", strings.Join(errs, "; "))
	}
	return nil
}
