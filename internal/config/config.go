// Package config loads gitbridge configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the gitbridge assistant.
type Config struct {
	GitLab    GitLabConfig
	Database  DatabaseConfig
	Vault     VaultConfig
	Agent     AgentConfig
	Callback  CallbackConfig
	Telemetry TelemetryConfig
}

// GitLabConfig describes the OAuth application and API endpoints.
type GitLabConfig struct {
	ClientID     string `env:"GITLAB_CLIENT_ID,required"`
	ClientSecret string `env:"GITLAB_CLIENT_SECRET,required"`
	RedirectURI  string `env:"GITLAB_REDIRECT_URI,required"`
	AuthURL      string `env:"GITLAB_AUTH_URL" envDefault:"https://gitlab.com/oauth/authorize"`
	TokenURL     string `env:"GITLAB_TOKEN_URL" envDefault:"https://gitlab.com/oauth/token"`
	APIBaseURL   string `env:"GITLAB_API_URL" envDefault:"https://gitlab.com/api/v4"`
}

// DatabaseConfig describes the credential storage backend.
type DatabaseConfig struct {
	URL   string `env:"DATABASE_URL,required"`
	Table string `env:"CREDENTIALS_TABLE" envDefault:"gitbridge_credentials"`
}

// VaultConfig holds the symmetric key that seals stored tokens.
type VaultConfig struct {
	// MasterKey is a base64-encoded AES key (16, 24 or 32 bytes decoded).
	MasterKey string `env:"MASTER_KEY,required"`
}

// AgentConfig describes the conversational model endpoint.
type AgentConfig struct {
	APIKey    string `env:"ANTHROPIC_API_KEY,required"`
	Endpoint  string `env:"ANTHROPIC_ENDPOINT" envDefault:"https://api.anthropic.com"`
	Model     string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	MaxTokens int    `env:"ANTHROPIC_MAX_TOKENS" envDefault:"4096"`
}

// CallbackConfig controls the optional local OAuth redirect listener.
type CallbackConfig struct {
	// Addr is the listen address for the loopback callback server,
	// e.g. "127.0.0.1:8484". Empty disables the listener.
	Addr string `env:"GITBRIDGE_CALLBACK_ADDR"`
}

type TelemetryConfig struct {
	Enabled      bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"gitbridge"`
}

// Load reads configuration from environment variables.
// Missing required values (OAuth app credentials, database URL, master key,
// model API key) are returned as an error so the process can refuse to start.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := cfg.Vault.Key(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Key decodes the base64 master key and validates its length.
func (v VaultConfig) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(v.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("MASTER_KEY is not valid base64: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("MASTER_KEY must decode to 16, 24 or 32 bytes, got %d", len(key))
	}
}
