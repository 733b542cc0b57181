package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// startSpan returns a live span and a func that ends it and returns the
// recorded snapshot.
func startSpan(t *testing.T) (trace.Span, func() sdktrace.ReadOnlySpan) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	return span, func() sdktrace.ReadOnlySpan {
		span.End()
		ended := recorder.Ended()
		if len(ended) != 1 {
			t.Fatalf("ended spans = %d, want 1", len(ended))
		}
		return ended[0]
	}
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

func TestRecordError(t *testing.T) {
	span, end := startSpan(t)
	RecordError(span, errors.New("boom"))
	got := end()
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}
	if got.Status().Description != "boom" {
		t.Errorf("description = %q, want %q", got.Status().Description, "boom")
	}
	if len(got.Events()) != 1 {
		t.Errorf("events = %d, want 1", len(got.Events()))
	}
}

func TestHelpers_NilSpan(t *testing.T) {
	RecordError(nil, errors.New("x"))
	SetSpanSuccess(nil)
	SetSpanError(nil, "x")
	SetSpanAttributes(nil, attribute.String("k", "v"))
	AddOAuthAttributes(nil, "c", "g", "s")
	AddOAuthErrorAttributes(nil, "invalid_grant")
	AddStorageAttributes(nil, "op")
	AddRequestAttributes(nil, "id", "127.0.0.1", true)
}

func TestAddOAuthAttributes_SkipsEmpty(t *testing.T) {
	span, end := startSpan(t)
	AddOAuthAttributes(span, "mock-client-id", "", "profile email")
	got := end()

	if v, ok := attrValue(got, AttrClientID); !ok || v != "mock-client-id" {
		t.Errorf("%s = %q, want mock-client-id", AttrClientID, v)
	}
	if _, ok := attrValue(got, AttrGrantType); ok {
		t.Errorf("%s should be omitted when empty", AttrGrantType)
	}
	if v, _ := attrValue(got, AttrScope); v != "profile email" {
		t.Errorf("%s = %q, want %q", AttrScope, v, "profile email")
	}
}

func TestAddRequestAttributes_ClientIPGated(t *testing.T) {
	tests := []struct {
		name         string
		logClientIPs bool
		wantIP       bool
	}{
		{name: "ip logging enabled", logClientIPs: true, wantIP: true},
		{name: "ip logging disabled", logClientIPs: false, wantIP: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, end := startSpan(t)
			AddRequestAttributes(span, "req-1", "10.0.0.1", tt.logClientIPs)
			got := end()

			if _, ok := attrValue(got, AttrClientIP); ok != tt.wantIP {
				t.Errorf("client ip present = %v, want %v", ok, tt.wantIP)
			}
			if v, _ := attrValue(got, AttrRequestID); v != "req-1" {
				t.Errorf("%s = %q, want req-1", AttrRequestID, v)
			}
		})
	}
}

func TestAddOAuthErrorAttributes(t *testing.T) {
	span, end := startSpan(t)
	AddOAuthErrorAttributes(span, "invalid_grant")
	got := end()

	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}
	if v, _ := attrValue(got, AttrErrorCode); v != "invalid_grant" {
		t.Errorf("%s = %q, want invalid_grant", AttrErrorCode, v)
	}
}
