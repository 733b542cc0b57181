// Package storage defines the records and store interfaces of the mock
// authorization server.
//
// Three independent keyspaces exist, each keyed by an opaque random string:
//   - authorization codes (AuthorizationCodeStore), single use, 5 minute TTL
//   - access tokens (TokenStore), 1 hour TTL, bearer credentials
//   - refresh tokens (TokenStore), no expiry, rotated on every use
//
// Clients are served by a ClientStore, which is read-only at runtime.
//
// Implementations are provided in subpackages:
//   - storage/memory: mutex-guarded maps for a single process
//   - storage/mock: func-field mocks for failure-path tests
package storage
