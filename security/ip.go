package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the caller's IP address.
//
// With trustProxy set, X-Forwarded-For is consulted first, skipping
// trustedProxyCount entries from the right (default 1), then X-Real-IP.
// Otherwise only RemoteAddr is used.
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := ipFromForwardedFor(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipFromForwardedFor picks the client entry from "client, proxy1, proxy2".
func ipFromForwardedFor(xff string, trustedProxyCount int) string {
	if xff == "" {
		return ""
	}

	if trustedProxyCount <= 0 {
		trustedProxyCount = 1
	}

	ips := strings.Split(xff, ",")
	idx := len(ips) - trustedProxyCount - 1
	if idx < 0 {
		idx = 0
	}

	ip := strings.TrimSpace(ips[idx])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}
