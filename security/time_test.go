package security

import (
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "zero never expires", expiresAt: time.Time{}, want: false},
		{name: "future", expiresAt: now.Add(time.Minute), want: false},
		{name: "exact instant is still valid", expiresAt: now, want: false},
		{name: "one nanosecond past", expiresAt: now.Add(-time.Nanosecond), want: true},
		{name: "long past", expiresAt: now.Add(-time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(now, tt.expiresAt); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
