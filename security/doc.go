// Package security provides the credential primitives and HTTP hardening
// used by the mock authorization server.
//
// Credentials:
//   - GenerateToken mints opaque codes and tokens from 32 random bytes
//   - SHA256 and Base64URLNoPad implement the S256 PKCE transform
//   - IsExpired compares absolute expiry timestamps strictly
//
// HTTP:
//   - SetSecurityHeaders marks OAuth responses as non-cacheable and inert
//   - RequestIDMiddleware propagates or generates X-Request-ID
//   - GetClientIP resolves the caller address, optionally behind proxies
//   - RateLimiter is a per-identifier token bucket with LRU eviction
//
// Auditing:
//   - Auditor writes security_audit records through slog, hashing user ids
//
// Example:
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(security.GetClientIP(r, false, 0)) {
//	    // 429
//	}
package security
