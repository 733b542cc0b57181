package security

import "time"

// IsExpired reports whether expiresAt lies strictly before now.
// A zero expiresAt never expires.
//
// No clock skew grace period is applied: a code or token is valid up to and
// including its expiry instant.
func IsExpired(now, expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt)
}
