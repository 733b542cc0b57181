package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if id1 == id2 {
		t.Error("GenerateRequestID() should return unique IDs")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("GenerateRequestID() = %q is not a UUID: %v", id1, err)
	}
	if !isValidRequestID(id1) {
		t.Errorf("generated ID %q must pass validation", id1)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		wantKeep bool
	}{
		{name: "no upstream id", upstream: "", wantKeep: false},
		{name: "valid upstream id", upstream: "abc-123_DEF", wantKeep: true},
		{name: "header injection attempt", upstream: "abc\r\nX-Evil: 1", wantKeep: false},
		{name: "invalid characters", upstream: "abc def", wantKeep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
			if tt.upstream != "" {
				req.Header.Set(RequestIDHeader, tt.upstream)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("response is missing X-Request-ID")
			}
			if got != seen {
				t.Errorf("context request ID = %q, header = %q", seen, got)
			}
			if tt.wantKeep && got != tt.upstream {
				t.Errorf("X-Request-ID = %q, want upstream %q", got, tt.upstream)
			}
			if !tt.wantKeep && got == tt.upstream {
				t.Errorf("X-Request-ID = %q, upstream value should have been replaced", got)
			}
		})
	}
}
