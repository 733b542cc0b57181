package oauth

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/mock-oauth/chaos"
	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/registry"
	"github.com/giantswarm/mock-oauth/server"
	"github.com/giantswarm/mock-oauth/storage/memory"
)

// Defaults for the process configuration.
const (
	DefaultAddress         = ":3001"
	DefaultIssuer          = "http://localhost:3001"
	DefaultAllowedOrigin   = "http://localhost:5173"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Environment variables that override file configuration.
const (
	EnvAddress          = "MOCK_OAUTH_ADDR"
	EnvIssuer           = "MOCK_OAUTH_ISSUER"
	EnvFaultProbability = "MOCK_OAUTH_FAULT_PROBABILITY"
	EnvAllowedOrigins   = "MOCK_OAUTH_ALLOWED_ORIGINS"
	EnvLogLevel         = "MOCK_OAUTH_LOG_LEVEL"
	EnvLogFormat        = "MOCK_OAUTH_LOG_FORMAT"
	EnvLogFile          = "MOCK_OAUTH_LOG_FILE"
	EnvAudit            = "MOCK_OAUTH_AUDIT"
	EnvMetrics          = "MOCK_OAUTH_METRICS"
	EnvTraces           = "MOCK_OAUTH_TRACES"
	EnvRateLimit        = "MOCK_OAUTH_RATE_LIMIT"
	EnvRateBurst        = "MOCK_OAUTH_RATE_BURST"
)

// Config holds the process configuration.
// Structured using composition, one section per concern.
type Config struct {
	// Address is the listen address of the HTTP server
	Address string `yaml:"address"`

	// Issuer is the public base URL. HSTS is sent when it is https.
	Issuer string `yaml:"issuer"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Chaos controls fault injection on the token and userinfo endpoints
	Chaos ChaosConfig `yaml:"chaos"`

	// Tokens controls lifetimes and token shapes
	Tokens TokenConfig `yaml:"tokens"`

	// Profile is returned by userinfo. Nil uses server.DefaultProfile().
	Profile *server.UserProfile `yaml:"profile,omitempty"`

	// CORS settings for the browser client
	CORS CORSConfig `yaml:"cors"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Log configures the process logger
	Log LogConfig `yaml:"log"`

	// Audit enables security audit logging
	Audit bool `yaml:"audit"`

	// Instrumentation selects metric and trace exporters
	Instrumentation InstrumentationConfig `yaml:"instrumentation"`

	// Storage configures the in-memory store
	Storage StorageConfig `yaml:"storage"`

	// Clients replaces the built-in client registry when non-empty
	Clients []registry.ClientConfig `yaml:"clients,omitempty"`

	// ClientsFile is a YAML file with a top-level clients list. It takes
	// precedence over Clients.
	ClientsFile string `yaml:"clients_file,omitempty"`
}

// ChaosConfig holds fault injection settings
type ChaosConfig struct {
	// FaultProbability is the chance in [0, 1] that a token or userinfo
	// request fails with server_error. Default: 0.10
	FaultProbability float64 `yaml:"fault_probability"`
}

// TokenConfig holds token issuance settings
type TokenConfig struct {
	// CodeTTL is how long authorization codes are valid. Default: 5m
	CodeTTL time.Duration `yaml:"code_ttl"`

	// AccessTokenTTL is how long access tokens are valid. Default: 1h
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	// DefaultScope is granted when the request has none
	DefaultScope string `yaml:"default_scope"`

	// Subject is the user id bound to every token
	Subject string `yaml:"subject"`

	AccessTokenPrefix  string `yaml:"access_token_prefix"`
	RefreshTokenPrefix string `yaml:"refresh_token_prefix"`
}

// CORSConfig holds CORS settings for browser-based clients
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"` // seconds
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int `yaml:"rate"`

	// Burst is the maximum burst size allowed per IP.
	Burst int `yaml:"burst"`

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool `yaml:"trust_proxy"`

	// TrustedProxyCount is the number of proxies in front of the server
	TrustedProxyCount int `yaml:"trusted_proxy_count"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json

	// File additionally writes logs to a rotating file when set
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// InstrumentationConfig holds exporter settings
type InstrumentationConfig struct {
	Metrics      string `yaml:"metrics"` // "" or "prometheus"
	Traces       string `yaml:"traces"`  // "" or "stdout"
	LogClientIPs bool   `yaml:"log_client_ips"`
}

// Enabled reports whether any exporter is configured.
func (c InstrumentationConfig) Enabled() bool {
	return c.Metrics != instrumentation.ExporterNone || c.Traces != instrumentation.ExporterNone
}

// StorageConfig holds store settings
type StorageConfig struct {
	// CleanupInterval is how often expired records are swept. Default: 1m
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Address:         DefaultAddress,
		Issuer:          DefaultIssuer,
		ShutdownTimeout: DefaultShutdownTimeout,
		Chaos: ChaosConfig{
			FaultProbability: chaos.DefaultProbability,
		},
		Tokens: TokenConfig{
			CodeTTL:            time.Duration(server.DefaultAuthorizationCodeTTL) * time.Second,
			AccessTokenTTL:     time.Duration(server.DefaultAccessTokenTTL) * time.Second,
			DefaultScope:       server.DefaultScope,
			Subject:            server.DefaultUserID,
			AccessTokenPrefix:  server.DefaultAccessTokenPrefix,
			RefreshTokenPrefix: server.DefaultRefreshTokenPrefix,
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{DefaultAllowedOrigin},
			AllowCredentials: true,
			MaxAge:           3600,
		},
		RateLimit: RateLimitConfig{
			TrustedProxyCount: server.DefaultTrustedProxyCount,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Storage: StorageConfig{
			CleanupInterval: memory.DefaultCleanupInterval,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path and the MOCK_OAUTH_* environment, then validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvAddress, &c.Address)
	str(EnvIssuer, &c.Issuer)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)
	str(EnvLogFile, &c.Log.File)
	str(EnvMetrics, &c.Instrumentation.Metrics)
	str(EnvTraces, &c.Instrumentation.Traces)

	if v, ok := lookup(EnvFaultProbability); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvFaultProbability, err)
		}
		c.Chaos.FaultProbability = p
	}
	if v, ok := lookup(EnvAllowedOrigins); ok {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvAudit); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAudit, err)
		}
		c.Audit = b
	}
	if v, ok := lookup(EnvRateLimit); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRateLimit, err)
		}
		c.RateLimit.Rate = n
	}
	if v, ok := lookup(EnvRateBurst); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRateBurst, err)
		}
		c.RateLimit.Burst = n
	}
	return nil
}

// Validate checks the configuration for values the process cannot run with.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if c.Chaos.FaultProbability < 0 || c.Chaos.FaultProbability > 1 {
		return fmt.Errorf("chaos.fault_probability must be in [0, 1], got %v", c.Chaos.FaultProbability)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values cannot be negative")
	}
	if c.Tokens.CodeTTL < 0 || c.Tokens.AccessTokenTTL < 0 {
		return errors.New("token lifetimes cannot be negative")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" && c.CORS.AllowCredentials {
			return errors.New("cors: wildcard origin cannot be combined with allow_credentials")
		}
	}
	for _, client := range c.Clients {
		if err := client.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return level, nil
}

// ServerConfig converts the process configuration into the protocol
// server's configuration.
func (c *Config) ServerConfig() *server.Config {
	return &server.Config{
		Issuer:               c.Issuer,
		AuthorizationCodeTTL: int64(c.Tokens.CodeTTL / time.Second),
		AccessTokenTTL:       int64(c.Tokens.AccessTokenTTL / time.Second),
		DefaultScope:         c.Tokens.DefaultScope,
		DefaultUserID:        c.Tokens.Subject,
		AccessTokenPrefix:    c.Tokens.AccessTokenPrefix,
		RefreshTokenPrefix:   c.Tokens.RefreshTokenPrefix,
		Profile:              c.Profile,
		TrustProxy:           c.RateLimit.TrustProxy,
		TrustedProxyCount:    c.RateLimit.TrustedProxyCount,
		CORS: server.CORSConfig{
			AllowedOrigins:   c.CORS.AllowedOrigins,
			AllowCredentials: c.CORS.AllowCredentials,
			MaxAge:           c.CORS.MaxAge,
		},
	}
}

// InstrumentationConfig converts the exporter settings.
func (c *Config) InstrumentationConfig(version string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:     instrumentation.DefaultServiceName,
		ServiceVersion:  version,
		Enabled:         c.Instrumentation.Enabled(),
		LogClientIPs:    c.Instrumentation.LogClientIPs,
		MetricsExporter: c.Instrumentation.Metrics,
		TracesExporter:  c.Instrumentation.Traces,
	}
}

// NewRegistry builds the client registry from ClientsFile, Clients or the
// built-in default client, in that order of precedence.
func (c *Config) NewRegistry(logger *slog.Logger) (*registry.Registry, error) {
	if c.ClientsFile != "" {
		return registry.LoadFile(c.ClientsFile, logger)
	}
	if len(c.Clients) > 0 {
		return registry.New(c.Clients, logger)
	}
	return registry.New(registry.DefaultClients(), logger)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
