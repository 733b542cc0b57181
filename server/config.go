package server

import (
	"log/slog"
)

// Defaults
const (
	DefaultAuthorizationCodeTTL int64 = 300  // 5 minutes
	DefaultAccessTokenTTL       int64 = 3600 // 1 hour
	DefaultScope                      = "profile email"
	DefaultUserID                     = "default"
	DefaultAccessTokenPrefix          = "mock_access_token_"
	DefaultRefreshTokenPrefix         = "mock_refresh_token_"
	DefaultTrustedProxyCount          = 1
)

// Config holds OAuth server configuration
type Config struct {
	// Issuer is the server's base URL. HSTS is sent when it is https.
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 300 (5 minutes)

	// AccessTokenTTL is how long access tokens are valid. It is also the
	// expires_in value of token responses.
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// DefaultScope is granted when an authorization request has no scope
	DefaultScope string // default: "profile email"

	// DefaultUserID is the subject bound to every issued token
	DefaultUserID string // default: "default"

	// Token value prefixes
	AccessTokenPrefix  string // default: "mock_access_token_"
	RefreshTokenPrefix string // default: "mock_refresh_token_"

	// Profile is returned by the userinfo endpoint for every valid token
	Profile *UserProfile // default: DefaultProfile()

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers
	// when determining the client IP for rate limiting and audit logs.
	// Default: false
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of this server
	// Default: 1
	TrustedProxyCount int

	// CORS controls which browser origins may call the endpoints
	CORS CORSConfig
}

// CORSConfig holds CORS settings for browser-based clients
type CORSConfig struct {
	// AllowedOrigins lists exact origins that receive CORS headers.
	// "*" allows any origin and cannot be combined with credentials.
	AllowedOrigins []string

	// AllowCredentials sends Access-Control-Allow-Credentials: true
	AllowCredentials bool

	// MaxAge is how long browsers may cache preflight responses
	MaxAge int // seconds, default: 3600
}

// applyDefaults fills zero values and returns config.
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	if config.AuthorizationCodeTTL <= 0 {
		config.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.DefaultScope == "" {
		config.DefaultScope = DefaultScope
	}
	if config.DefaultUserID == "" {
		config.DefaultUserID = DefaultUserID
	}
	if config.AccessTokenPrefix == "" {
		config.AccessTokenPrefix = DefaultAccessTokenPrefix
	}
	if config.RefreshTokenPrefix == "" {
		config.RefreshTokenPrefix = DefaultRefreshTokenPrefix
	}
	if config.Profile == nil {
		config.Profile = DefaultProfile()
	}
	if config.TrustedProxyCount <= 0 {
		config.TrustedProxyCount = DefaultTrustedProxyCount
	}
	if config.CORS.MaxAge <= 0 {
		config.CORS.MaxAge = 3600
	}
	if config.AccessTokenPrefix == config.RefreshTokenPrefix {
		logger.Warn("Access and refresh tokens share a prefix",
			"prefix", config.AccessTokenPrefix)
	}
	return config
}

// IsOriginAllowed reports whether origin may receive CORS headers.
func (c CORSConfig) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
