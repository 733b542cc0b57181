package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mock-oauth/storage"
)

// Fixture values matching the built-in client registration.
const (
	TestClientID    = "mock-client-id"
	TestRedirectURI = "http://localhost:5173/callback"
	TestUserID      = "default"
	TestScope       = "profile email"
)

// MockTime provides a controllable time source for deterministic testing.
// It is safe for concurrent use.
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// GeneratePKCEPair returns an S256 challenge and its verifier.
func GeneratePKCEPair() (challenge, verifier string) {
	verifier = oauth2.GenerateVerifier()
	return oauth2.S256ChallengeFromVerifier(verifier), verifier
}

// GenerateTestClient returns a public client with TestRedirectURI.
func GenerateTestClient() *storage.Client {
	return &storage.Client{
		ClientID:     TestClientID,
		ClientName:   "Test Client",
		ClientType:   storage.ClientTypePublic,
		RedirectURIs: []string{TestRedirectURI},
	}
}

// GenerateTestAuthorizationCode returns a code issued at now with a five
// minute lifetime and no PKCE challenge.
func GenerateTestAuthorizationCode(now time.Time) *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:        "mock_code_" + oauth2.GenerateVerifier(),
		ClientID:    TestClientID,
		RedirectURI: TestRedirectURI,
		Scope:       TestScope,
		UserID:      TestUserID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

// GenerateTestTokenPair returns an access token valid for an hour from now
// and its refresh token.
func GenerateTestTokenPair(now time.Time) (*storage.AccessToken, *storage.RefreshToken) {
	access := &storage.AccessToken{
		Token:     "mock_access_token_" + oauth2.GenerateVerifier(),
		ClientID:  TestClientID,
		Scope:     TestScope,
		UserID:    TestUserID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	refresh := &storage.RefreshToken{
		Token:     "mock_refresh_token_" + oauth2.GenerateVerifier(),
		ClientID:  TestClientID,
		Scope:     TestScope,
		UserID:    TestUserID,
		CreatedAt: now,
	}
	return access, refresh
}

// HTTPRequest is a helper for making test HTTP requests
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// NewHTTPRequest creates a new HTTP request helper
func NewHTTPRequest(method, url string) *HTTPRequest {
	return &HTTPRequest{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *HTTPRequest) WithHeader(key, value string) *HTTPRequest {
	r.Headers[key] = value
	return r
}

// WithBody sets the request body
func (r *HTTPRequest) WithBody(body string) *HTTPRequest {
	r.Body = body
	return r
}

// WithForm sets a form-encoded body and its content type.
func (r *HTTPRequest) WithForm(values url.Values) *HTTPRequest {
	r.Body = values.Encode()
	r.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	return r
}

// Do executes the HTTP request
func (r *HTTPRequest) Do(handler http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(r.Method, r.URL, strings.NewReader(r.Body))
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
