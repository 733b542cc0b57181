package storage

import "errors"

var (
	// ErrClientNotFound is returned for an unknown client_id.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientSecret is returned when a confidential client's
	// secret does not match.
	ErrInvalidClientSecret = errors.New("invalid client secret")

	// ErrAuthorizationCodeNotFound is returned for unknown or already
	// consumed authorization codes.
	ErrAuthorizationCodeNotFound = errors.New("authorization code not found")

	// ErrTokenNotFound is returned for unknown access or refresh tokens.
	ErrTokenNotFound = errors.New("token not found") //nolint:gosec // error text, not a credential

	// ErrClientMismatch is returned when a refresh token is presented by a
	// client other than its owner.
	ErrClientMismatch = errors.New("token belongs to another client")

	// ErrInvalidRecord is returned when a record is nil or has no key.
	ErrInvalidRecord = errors.New("invalid record")
)
