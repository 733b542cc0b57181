package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets the response headers applied to every OAuth
// endpoint response. HSTS is only sent when issuer is an https URL.
func SetSecurityHeaders(w http.ResponseWriter, issuer string) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(issuer); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// Token and profile responses must never be cached (RFC 6749 5.1)
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
}
