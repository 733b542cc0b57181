package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestMetrics_RecordDoesNotPanic(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m := inst.Metrics()
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "POST", "/oauth/token", 200, 15*time.Millisecond)
	m.RecordAuthorizationCodeIssued(ctx, "mock-client-id", "S256")
	m.RecordAuthorizationDenied(ctx, "mock-client-id")
	m.RecordCodeExchange(ctx, "mock-client-id", "")
	m.RecordTokenRefresh(ctx, "mock-client-id")
	m.RecordUserInfoServed(ctx)
	m.RecordGrantRejected(ctx, "authorization_code", "invalid_grant")
	m.RecordPKCEValidationFailed(ctx, "plain")
	m.RecordFaultInjected(ctx, "/oauth/userinfo")
	m.RecordRateLimitExceeded(ctx, "/oauth/token")
	m.RecordAuditEvent(ctx, "token_issued")
	m.RecordStorageOperation(ctx, "consume_code", "success", time.Millisecond)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/oauth/userinfo", 401, time.Millisecond)
	m.RecordCodeExchange(ctx, "c", "plain")
	m.RecordAuditEvent(ctx, "auth_failure")
	m.RecordStorageOperation(ctx, "save_code", "error", time.Millisecond)
}
