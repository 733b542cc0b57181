package security

import (
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestGenerateToken(t *testing.T) {
	const prefix = "mock_access_token_"

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token := GenerateToken(prefix)
		if !strings.HasPrefix(token, prefix) {
			t.Fatalf("GenerateToken() = %q, want prefix %q", token, prefix)
		}
		// 32 random bytes encode to 43 unpadded base64url characters
		if got := len(token) - len(prefix); got != 43 {
			t.Fatalf("random part length = %d, want 43", got)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("GenerateToken() produced duplicate %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestBase64URLNoPad(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "empty", input: []byte{}, want: ""},
		{name: "plus and slash are replaced", input: []byte{0xfb, 0xff, 0xbf}, want: "-_-_"},
		{name: "padding is stripped", input: []byte("a"), want: "YQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Base64URLNoPad(tt.input); got != tt.want {
				t.Errorf("Base64URLNoPad() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS256Challenge(t *testing.T) {
	// RFC 7636 Appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := S256Challenge(verifier); got != want {
		t.Errorf("S256Challenge() = %q, want %q", got, want)
	}

	random := oauth2.GenerateVerifier()
	if got, want := S256Challenge(random), oauth2.S256ChallengeFromVerifier(random); got != want {
		t.Errorf("S256Challenge(%q) = %q, want %q", random, got, want)
	}
}

func TestSHA256(t *testing.T) {
	if got := len(SHA256("anything")); got != 32 {
		t.Errorf("len(SHA256()) = %d, want 32", got)
	}
}
