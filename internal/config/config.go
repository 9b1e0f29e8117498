// Package config loads and validates the trackwire configuration file:
// the list of configured backends with their connection, retry, webhook,
// and status-mapping settings.
//
// Configuration is consumed here and handed to the core as immutable typed
// values; the transport/status/webhook packages never read files or
// environment variables themselves.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/trackwire/trackwire/internal/transport"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. TRACKWIRE_LISTEN.
const EnvPrefix = "TRACKWIRE"

// Auth is the credential section of a backend entry.
type Auth struct {
	Kind     string            `mapstructure:"kind"`
	Token    string            `mapstructure:"token"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Params   map[string]string `mapstructure:"params"`
}

// Retry is the recognized retry option surface: max attempts, initial
// interval in seconds, and backoff factor. All must be positive when set;
// a zero value means the transport default.
type Retry struct {
	Max           int     `mapstructure:"max"`
	Interval      float64 `mapstructure:"interval"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

// Backend is one configured project-management backend.
type Backend struct {
	Name          string            `mapstructure:"name"`
	Kind          string            `mapstructure:"kind"`
	BaseURL       string            `mapstructure:"base_url"`
	Auth          Auth              `mapstructure:"auth"`
	Headers       map[string]string `mapstructure:"headers"`
	Retry         Retry             `mapstructure:"retry"`
	WebhookSecret string            `mapstructure:"webhook_secret"`

	// StatusMap is context-keyed native→canonical status mapping; the ""
	// context applies globally for this backend.
	StatusMap map[string]map[string]string `mapstructure:"status_map"`
}

// Config is the root configuration.
type Config struct {
	// Listen is the webhook receiver bind address (default ":8400").
	Listen string `mapstructure:"listen"`

	Backends []Backend `mapstructure:"backends"`
}

// Load reads the configuration file at path (YAML) with TRACKWIRE_* env
// overrides and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("listen", ":8400")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration, naming the offending key in every error.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]
		key := fmt.Sprintf("backends[%d]", i)
		if b.Name == "" {
			return fmt.Errorf("%s.name: required", key)
		}
		if seen[b.Name] {
			return fmt.Errorf("%s.name: duplicate backend %q", key, b.Name)
		}
		seen[b.Name] = true
		if b.BaseURL == "" {
			return fmt.Errorf("%s.base_url: required for backend %q", key, b.Name)
		}
		if err := b.Retry.validate(); err != nil {
			return fmt.Errorf("%s.retry: backend %q: %w", key, b.Name, err)
		}
		switch transport.AuthKind(b.Auth.Kind) {
		case transport.AuthNone, transport.AuthBearer, transport.AuthBasic, transport.AuthQuery, "":
		default:
			return fmt.Errorf("%s.auth.kind: backend %q: unknown kind %q", key, b.Name, b.Auth.Kind)
		}
	}
	return nil
}

// validate rejects non-positive explicit values. Zero means "unset": the
// transport default applies.
func (r Retry) validate() error {
	if r.Max < 0 {
		return fmt.Errorf("max: must be positive, got %d", r.Max)
	}
	if r.Interval < 0 {
		return fmt.Errorf("interval: must be positive, got %g", r.Interval)
	}
	if r.BackoffFactor < 0 {
		return fmt.Errorf("backoff_factor: must be positive, got %g", r.BackoffFactor)
	}
	return nil
}

// TransportConfig converts a backend entry to the immutable transport config.
func (b *Backend) TransportConfig() transport.Config {
	authKind := transport.AuthKind(b.Auth.Kind)
	if authKind == "" {
		authKind = transport.AuthNone
	}

	policy := transport.DefaultRetryPolicy()
	if b.Retry.Max > 0 {
		policy.MaxAttempts = b.Retry.Max
	}
	if b.Retry.Interval > 0 {
		policy.InitialInterval = time.Duration(b.Retry.Interval * float64(time.Second))
	}
	if b.Retry.BackoffFactor > 0 {
		policy.BackoffFactor = b.Retry.BackoffFactor
	}

	return transport.Config{
		BaseURL: b.BaseURL,
		Auth: transport.Auth{
			Kind:     authKind,
			Token:    b.Auth.Token,
			Username: b.Auth.Username,
			Password: b.Auth.Password,
			Params:   b.Auth.Params,
		},
		DefaultHeaders: b.Headers,
		Retry:          policy,
	}
}

// WebhookSecrets collects the backend→secret table for the receiver.
func (c *Config) WebhookSecrets() map[string]string {
	secrets := make(map[string]string, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.WebhookSecret != "" {
			secrets[b.Kind] = b.WebhookSecret
		}
	}
	return secrets
}
