package security

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// GenerateToken returns prefix followed by a URL-safe encoding of 32 bytes
// from crypto/rand (256 bits of entropy).
func GenerateToken(prefix string) string {
	return prefix + oauth2.GenerateVerifier()
}

// SHA256 returns the SHA-256 digest of input.
func SHA256(input string) []byte {
	sum := sha256.Sum256([]byte(input))
	return sum[:]
}

// Base64URLNoPad encodes b with the URL-safe alphabet and no '=' padding.
func Base64URLNoPad(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// S256Challenge derives the RFC 7636 S256 code challenge for verifier.
func S256Challenge(verifier string) string {
	return Base64URLNoPad(SHA256(verifier))
}
