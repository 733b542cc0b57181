package security

// Audit event types.
const (
	// Authorization endpoint
	EventAuthorizationCodeIssued = "authorization_code_issued"
	EventAuthorizationDenied     = "authorization_denied"
	EventInvalidRedirect         = "invalid_redirect"

	// Token endpoint
	EventTokenIssued    = "token_issued"
	EventTokenRefreshed = "token_refreshed"
	EventAuthFailure    = "auth_failure"

	// EventAuthorizationCodeRejected covers unknown, replayed, expired and
	// mismatched codes. The reason detail tells them apart in the audit log
	// only, never in the response.
	EventAuthorizationCodeRejected = "authorization_code_rejected"

	EventPKCERequiredForPublicClient = "pkce_required_for_public_client"
	EventPKCEValidationFailed        = "pkce_validation_failed"
	EventRefreshTokenRejected        = "refresh_token_rejected" //nolint:gosec // event name, not a credential

	// Userinfo endpoint
	EventAccessTokenRejected = "access_token_rejected" //nolint:gosec // event name, not a credential

	// Operational
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventFaultInjected     = "fault_injected"
)
