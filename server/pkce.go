package server

import (
	"crypto/subtle"

	"github.com/giantswarm/mock-oauth/security"
)

// PKCE code_challenge_method values
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// verifyPKCE reports whether verifier satisfies challenge under method.
// Unknown methods never match.
func verifyPKCE(challenge, method, verifier string) bool {
	var computed string
	switch method {
	case PKCEMethodPlain:
		computed = verifier
	case PKCEMethodS256:
		computed = security.S256Challenge(verifier)
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
