package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditRecorder counts audit events, typically as a metric.
type AuditRecorder interface {
	RecordAuditEvent(ctx context.Context, eventType string)
}

// Auditor writes security events to a structured logger. User identifiers
// are hashed before they are logged.
type Auditor struct {
	logger   *slog.Logger
	enabled  bool
	recorder AuditRecorder
	now      func() time.Time
}

// NewAuditor creates an auditor. A disabled auditor drops every event.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
		now:     time.Now,
	}
}

// SetRecorder attaches a recorder called once per logged event.
func (a *Auditor) SetRecorder(recorder AuditRecorder) {
	a.recorder = recorder
}

// Event is a single audit record.
type Event struct {
	ID        string
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	RequestID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent assigns an ID and timestamp to event and logs it.
func (a *Auditor) LogEvent(ctx context.Context, event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.ID = uuid.NewString()
	event.Timestamp = a.now()
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}

	a.logger.InfoContext(ctx, "security_audit",
		"event_id", event.ID,
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	if a.recorder != nil {
		a.recorder.RecordAuditEvent(ctx, event.Type)
	}
}

// LogAuthorizationCodeIssued records a successful authorization request.
func (a *Auditor) LogAuthorizationCodeIssued(ctx context.Context, clientID, ipAddress, scope string, pkce bool) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationCodeIssued,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
			"pkce":  pkce,
		},
	})
}

// LogTokenIssued records a token pair minted by the authorization_code grant.
func (a *Auditor) LogTokenIssued(ctx context.Context, userID, clientID, ipAddress, scope string) {
	a.LogEvent(ctx, Event{
		Type:      EventTokenIssued,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenRefreshed records a refresh token rotation.
func (a *Auditor) LogTokenRefreshed(ctx context.Context, userID, clientID, ipAddress string) {
	a.LogEvent(ctx, Event{
		Type:      EventTokenRefreshed,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"rotated": true,
		},
	})
}

// LogAuthFailure records a failed client authentication.
func (a *Auditor) LogAuthFailure(ctx context.Context, clientID, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthFailure,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRejected records a rejected code, token or PKCE proof with an internal reason.
func (a *Auditor) LogRejected(ctx context.Context, eventType, clientID, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Type:      eventType,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded records a rate limit violation.
func (a *Auditor) LogRateLimitExceeded(ctx context.Context, ipAddress, endpoint string) {
	a.LogEvent(ctx, Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// hashForLogging returns the first 16 hex characters of the SHA-256 of s.
func hashForLogging(s string) string {
	if s == "" {
		return "<empty>"
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
