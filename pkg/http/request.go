package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig controls which upstream proxies are trusted to set
// forwarded-IP headers.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges
}

// ExtractClientIP returns the client IP for a request. Forwarded headers
// (X-Forwarded-For, then X-Real-IP) are honored only when the direct peer
// is inside a trusted proxy range; otherwise headers are attacker-supplied
// and RemoteAddr wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := remoteHost(r)

	if config == nil || !withinTrustedProxies(peer, config.TrustedProxies) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, hop := range strings.Split(xff, ",") {
			hop = strings.TrimSpace(hop)
			if net.ParseIP(hop) != nil {
				return hop
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return peer
}

// remoteHost strips the port from RemoteAddr when present.
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func withinTrustedProxies(ip string, ranges []string) bool {
	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, cidr := range ranges {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(peer) {
			return true
		}
	}
	return false
}
