package oauth

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/mock-oauth/chaos"
	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/registry"
	"github.com/giantswarm/mock-oauth/server"
	"github.com/giantswarm/mock-oauth/storage"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":3001", cfg.Address)
	assert.Equal(t, "http://localhost:3001", cfg.Issuer)
	assert.InDelta(t, chaos.DefaultProbability, cfg.Chaos.FaultProbability, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.CodeTTL)
	assert.Equal(t, time.Hour, cfg.Tokens.AccessTokenTTL)
	assert.Equal(t, "profile email", cfg.Tokens.DefaultScope)
	assert.Equal(t, "default", cfg.Tokens.Subject)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Zero(t, cfg.RateLimit.Rate)
	assert.False(t, cfg.Instrumentation.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddress, cfg.Address)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
address: ":8080"
issuer: "https://auth.example.com"
chaos:
  fault_probability: 0.25
tokens:
  code_ttl: 1m
  access_token_ttl: 15m
  default_scope: "openid"
cors:
  allowed_origins: ["http://app.example.com"]
  allow_credentials: false
rate_limit:
  rate: 10
  burst: 20
log:
  level: debug
  format: json
instrumentation:
  metrics: prometheus
storage:
  cleanup_interval: 30s
profile:
  id: "u1"
  email: "u1@example.com"
  name: "User One"
  picture: "https://example.com/u1.png"
clients:
  - id: web
    redirect_uris: ["http://app.example.com/cb"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, "https://auth.example.com", cfg.Issuer)
	assert.InDelta(t, 0.25, cfg.Chaos.FaultProbability, 1e-9)
	assert.Equal(t, time.Minute, cfg.Tokens.CodeTTL)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTokenTTL)
	assert.Equal(t, "openid", cfg.Tokens.DefaultScope)
	assert.Equal(t, "default", cfg.Tokens.Subject, "unset fields keep defaults")
	assert.Equal(t, []string{"http://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, 10, cfg.RateLimit.Rate)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Instrumentation.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Storage.CleanupInterval)
	require.NotNil(t, cfg.Profile)
	assert.Equal(t, "u1", cfg.Profile.ID)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "web", cfg.Clients[0].ID)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultAddress, cfg.Address)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown field", content: "adress: \":1\"\n"},
		{name: "invalid yaml", content: "address: [\n"},
		{name: "probability out of range", content: "chaos:\n  fault_probability: 1.5\n"},
		{name: "unknown log level", content: "log:\n  level: loud\n"},
		{name: "unknown log format", content: "log:\n  format: xml\n"},
		{name: "wildcard with credentials", content: "cors:\n  allowed_origins: [\"*\"]\n  allow_credentials: true\n"},
		{name: "invalid client", content: "clients:\n  - id: web\n"},
		{name: "empty address", content: "address: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "address: \":8080\"\n")
	t.Setenv(EnvAddress, ":9090")
	t.Setenv(EnvFaultProbability, "0")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address)
	assert.Zero(t, cfg.Chaos.FaultProbability)
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvIssuer:           "https://issuer.example.com",
		EnvFaultProbability: "0.5",
		EnvAllowedOrigins:   "http://a.example, http://b.example,,",
		EnvLogLevel:         "warn",
		EnvLogFormat:        "json",
		EnvLogFile:          "/tmp/mock-oauth.log",
		EnvAudit:            "true",
		EnvMetrics:          "prometheus",
		EnvTraces:           "stdout",
		EnvRateLimit:        "5",
		EnvRateBurst:        "7",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://issuer.example.com", cfg.Issuer)
	assert.InDelta(t, 0.5, cfg.Chaos.FaultProbability, 1e-9)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/mock-oauth.log", cfg.Log.File)
	assert.True(t, cfg.Audit)
	assert.Equal(t, instrumentation.ExporterPrometheus, cfg.Instrumentation.Metrics)
	assert.Equal(t, instrumentation.ExporterStdout, cfg.Instrumentation.Traces)
	assert.Equal(t, 5, cfg.RateLimit.Rate)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
}

func TestConfig_ApplyEnv_Invalid(t *testing.T) {
	for _, key := range []string{EnvFaultProbability, EnvAudit, EnvRateLimit, EnvRateBurst} {
		t.Run(key, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.ApplyEnv(envMap(map[string]string{key: "not-a-value"}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestConfig_ServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tokens.CodeTTL = 2 * time.Minute
	cfg.RateLimit.TrustProxy = true

	sc := cfg.ServerConfig()
	assert.Equal(t, int64(120), sc.AuthorizationCodeTTL)
	assert.Equal(t, int64(3600), sc.AccessTokenTTL)
	assert.Equal(t, server.DefaultScope, sc.DefaultScope)
	assert.Equal(t, server.DefaultUserID, sc.DefaultUserID)
	assert.Equal(t, server.DefaultAccessTokenPrefix, sc.AccessTokenPrefix)
	assert.Equal(t, server.DefaultRefreshTokenPrefix, sc.RefreshTokenPrefix)
	assert.True(t, sc.TrustProxy)
	assert.Equal(t, cfg.CORS.AllowedOrigins, sc.CORS.AllowedOrigins)
	assert.True(t, sc.CORS.AllowCredentials)
}

func TestConfig_InstrumentationConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Instrumentation.Traces = instrumentation.ExporterStdout

	ic := cfg.InstrumentationConfig("1.2.3")
	assert.True(t, ic.Enabled)
	assert.Equal(t, instrumentation.DefaultServiceName, ic.ServiceName)
	assert.Equal(t, "1.2.3", ic.ServiceVersion)
	assert.Equal(t, instrumentation.ExporterStdout, ic.TracesExporter)
}

func TestConfig_NewRegistry(t *testing.T) {
	t.Run("default client", func(t *testing.T) {
		reg, err := DefaultConfig().NewRegistry(nil)
		require.NoError(t, err)
		client, ok := reg.Lookup(registry.DefaultClientID)
		require.True(t, ok)
		assert.Equal(t, storage.ClientTypePublic, client.ClientType)
	})

	t.Run("inline clients replace default", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Clients = []registry.ClientConfig{{ID: "web", RedirectURIs: []string{"http://app/cb"}}}
		reg, err := cfg.NewRegistry(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, reg.Len())
		_, ok := reg.Lookup(registry.DefaultClientID)
		assert.False(t, ok)
	})

	t.Run("clients file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clients.yaml")
		require.NoError(t, os.WriteFile(path, []byte("clients:\n  - id: file-client\n    redirect_uris: [\"http://f/cb\"]\n"), 0o600))

		cfg := DefaultConfig()
		cfg.ClientsFile = path
		reg, err := cfg.NewRegistry(nil)
		require.NoError(t, err)
		_, ok := reg.Lookup("file-client")
		assert.True(t, ok)
	})
}
