package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans and metrics.
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrEndpoint       = "endpoint"

	AttrClientID   = "oauth.client_id"
	AttrGrantType  = "oauth.grant_type"
	AttrScope      = "oauth.scope"
	AttrPKCEMethod = "oauth.pkce_method"
	AttrErrorCode  = "oauth.error"
	AttrUserID     = "user.id"
	AttrClientIP   = "client.address"
	AttrRequestID  = "request.id"
	AttrEventType  = "audit.event_type"
	AttrFault      = "chaos.fault_injected"

	AttrOperation = "storage.operation"
	AttrResult    = "result"
)

// RecordError records err on span and marks it failed. Nil span or nil error is a no-op.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks span successful.
func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SetSpanError marks span failed with message without recording an error event.
func SetSpanError(span trace.Span, message string) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Error, message)
}

// SetSpanAttributes is a nil-safe span.SetAttributes.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// AddOAuthAttributes adds client, grant type and scope. Empty values are skipped.
func AddOAuthAttributes(span trace.Span, clientID, grantType, scope string) {
	if span == nil {
		return
	}
	var attrs []attribute.KeyValue
	if clientID != "" {
		attrs = append(attrs, attribute.String(AttrClientID, clientID))
	}
	if grantType != "" {
		attrs = append(attrs, attribute.String(AttrGrantType, grantType))
	}
	if scope != "" {
		attrs = append(attrs, attribute.String(AttrScope, scope))
	}
	span.SetAttributes(attrs...)
}

// AddOAuthErrorAttributes records the OAuth error code of a rejected request.
func AddOAuthErrorAttributes(span trace.Span, errorCode string) {
	if span == nil || errorCode == "" {
		return
	}
	span.SetAttributes(attribute.String(AttrErrorCode, errorCode))
	span.SetStatus(codes.Error, errorCode)
}

// AddStorageAttributes adds the storage operation name.
func AddStorageAttributes(span trace.Span, operation string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrOperation, operation))
}

// AddRequestAttributes adds the request id and, when allowed, the client IP.
func AddRequestAttributes(span trace.Span, requestID, clientIP string, logClientIPs bool) {
	if span == nil {
		return
	}
	var attrs []attribute.KeyValue
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	if logClientIPs && clientIP != "" {
		attrs = append(attrs, attribute.String(AttrClientIP, clientIP))
	}
	span.SetAttributes(attrs...)
}
