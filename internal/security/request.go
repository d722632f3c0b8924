package security

import (
	"net"
	"net/http"
	"strings"
)

// BearerToken returns the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// ParseRequestIP reads RemoteAddr, which chi's RealIP has already rewritten
// from X-Forwarded-For / X-Real-IP when present.
func ParseRequestIP(r *http.Request) net.IP {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func ClientIP(r *http.Request) string {
	if ip := ParseRequestIP(r); ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}
