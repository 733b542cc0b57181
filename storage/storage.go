package storage

import (
	"context"
	"slices"
	"time"
)

// ClientStore resolves registered clients.
type ClientStore interface {
	// GetClient returns the client registered as clientID, or
	// ErrClientNotFound.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret checks secret against the client's stored hash.
	// It returns ErrClientNotFound or ErrInvalidClientSecret on failure.
	ValidateClientSecret(ctx context.Context, clientID, secret string) error
}

// AuthorizationCodeStore holds issued authorization codes.
type AuthorizationCodeStore interface {
	// SaveAuthorizationCode stores code under code.Code.
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeAuthorizationCode removes code and returns it. Of any number of
	// concurrent calls for the same code exactly one succeeds; the others get
	// ErrAuthorizationCodeNotFound. Expiry is not checked here.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// IssueFunc builds the replacement pair for a refresh token being rotated.
type IssueFunc func(prev *RefreshToken) (*AccessToken, *RefreshToken)

// TokenStore holds access and refresh tokens.
type TokenStore interface {
	// SaveTokenPair stores a freshly minted access and refresh token.
	SaveTokenPair(ctx context.Context, access *AccessToken, refresh *RefreshToken) error

	// GetAccessToken returns the access token record, or ErrTokenNotFound.
	// Expired tokens are returned as well; the caller decides.
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// DeleteAccessToken removes an access token. Deleting an unknown token
	// is not an error.
	DeleteAccessToken(ctx context.Context, token string) error

	// RotateRefreshToken replaces refresh token old, which must belong to
	// clientID, with the pair returned by issue, as one atomic step. The old
	// token is invalid once this returns successfully. It returns
	// ErrTokenNotFound or ErrClientMismatch without modifying the store.
	RotateRefreshToken(ctx context.Context, old, clientID string, issue IssueFunc) (*AccessToken, *RefreshToken, error)
}

// Client types.
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Client is a registered OAuth client. It is immutable after load.
type Client struct {
	ClientID         string
	ClientName       string
	ClientType       string // ClientTypePublic or ClientTypeConfidential
	ClientSecretHash string // bcrypt, confidential clients only
	RedirectURIs     []string
}

// IsPublic reports whether the client cannot hold a secret and must use PKCE.
func (c *Client) IsPublic() bool {
	return c.ClientType != ClientTypeConfidential
}

// HasRedirectURI reports whether uri is registered, by exact string match.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AuthorizationCode is an issued, not yet consumed, authorization code.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	UserID              string
	CodeChallenge       string // empty when PKCE was not used
	CodeChallengeMethod string // "plain" or "S256" when CodeChallenge is set
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// AccessToken is an issued bearer token.
type AccessToken struct {
	Token     string
	ClientID  string
	Scope     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RefreshToken is an issued refresh token. It has no expiry.
type RefreshToken struct {
	Token     string
	ClientID  string
	Scope     string
	UserID    string
	CreatedAt time.Time
}
