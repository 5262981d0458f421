// Package helpers holds small request-shaped utilities shared across the
// HTTP and WebSocket surfaces.
package helpers

import (
	"net/http"
	"strings"
)

// RemoteFromRequest extracts the originating client address from r,
// preferring the standardized "Forwarded" header (RFC 7239), then
// "X-Forwarded-For", falling back to r.RemoteAddr — the same preference
// order the reference relay's GetRemoteFromReq uses.
func RemoteFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "for=") {
				forValue := strings.TrimPrefix(part, "for=")
				forValue = strings.Trim(forValue, "\"")
				forValue = strings.Trim(forValue, "[]")
				return forValue
			}
		}
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return r.RemoteAddr
	}
	parts := strings.Split(xff, " ")
	if len(parts) >= 2 {
		return parts[1]
	}
	return parts[0]
}
