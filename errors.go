package oauth

import (
	"github.com/giantswarm/mock-oauth/server"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest          = server.ErrorCodeInvalidRequest
	ErrorCodeInvalidClient           = server.ErrorCodeInvalidClient
	ErrorCodeInvalidGrant            = server.ErrorCodeInvalidGrant
	ErrorCodeUnsupportedResponseType = server.ErrorCodeUnsupportedResponseType
	ErrorCodeUnsupportedGrantType    = server.ErrorCodeUnsupportedGrantType
	ErrorCodeInvalidToken            = server.ErrorCodeInvalidToken
	ErrorCodeServerError             = server.ErrorCodeServerError
	ErrorCodeAccessDenied            = server.ErrorCodeAccessDenied
	ErrorCodeRateLimitExceeded       = server.ErrorCodeRateLimitExceeded
)

// OAuthError represents an OAuth 2.0 error response
type OAuthError = server.Error

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return server.NewError(code, description, status)
}

// Common OAuth errors
var (
	ErrInvalidRequest          = server.ErrInvalidRequest
	ErrInvalidClient           = server.ErrInvalidClient
	ErrInvalidGrant            = server.ErrInvalidGrant
	ErrUnsupportedResponseType = server.ErrUnsupportedResponseType
	ErrUnsupportedGrantType    = server.ErrUnsupportedGrantType
	ErrInvalidToken            = server.ErrInvalidToken
	ErrServerError             = server.ErrServerError
	ErrAccessDenied            = server.ErrAccessDenied
	ErrRateLimitExceeded       = server.ErrRateLimitExceeded

	// errMalformedRequest is returned when a token request body cannot be read.
	errMalformedRequest = func() *OAuthError {
		return server.ErrInvalidRequest("Failed to parse request")
	}
)
