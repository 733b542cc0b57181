package server

import (
	"testing"

	"golang.org/x/oauth2"
)

func TestVerifyPKCE(t *testing.T) {
	// RFC 7636 Appendix B
	const (
		rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	)
	verifier := oauth2.GenerateVerifier()

	tests := []struct {
		name      string
		challenge string
		method    string
		verifier  string
		want      bool
	}{
		{name: "rfc vector", challenge: rfcChallenge, method: PKCEMethodS256, verifier: rfcVerifier, want: true},
		{name: "S256 oracle", challenge: oauth2.S256ChallengeFromVerifier(verifier), method: PKCEMethodS256, verifier: verifier, want: true},
		{name: "S256 mismatch", challenge: rfcChallenge, method: PKCEMethodS256, verifier: verifier, want: false},
		{name: "S256 given challenge as verifier", challenge: rfcChallenge, method: PKCEMethodS256, verifier: rfcChallenge, want: false},
		{name: "plain match", challenge: "abc", method: PKCEMethodPlain, verifier: "abc", want: true},
		{name: "plain mismatch", challenge: "abc", method: PKCEMethodPlain, verifier: "abd", want: false},
		{name: "plain with S256 challenge", challenge: rfcChallenge, method: PKCEMethodPlain, verifier: rfcVerifier, want: false},
		{name: "lowercase method", challenge: rfcChallenge, method: "s256", verifier: rfcVerifier, want: false},
		{name: "unknown method", challenge: "abc", method: "S512", verifier: "abc", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifyPKCE(tt.challenge, tt.method, tt.verifier); got != tt.want {
				t.Errorf("verifyPKCE() = %v, want %v", got, tt.want)
			}
		})
	}
}
