// Package request holds helpers shared by HTTP middleware.
package request

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP
// for a status endpoint published behind a reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
