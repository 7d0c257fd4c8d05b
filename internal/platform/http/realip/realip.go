// Package realip extracts the client address behind trusted reverse proxies.
// It is the single source of client identity for request logs and rate limit keys.
package realip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies holds the networks whose forwarding headers are honored.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies parses CIDRs or bare IPs. Invalid entries are skipped;
// the config loader validates them before this runs.
func NewTrustedProxies(cidrs []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			tp.prefixes = append(tp.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return tp
}

// Len returns the number of trusted networks.
func (tp *TrustedProxies) Len() int {
	return len(tp.prefixes)
}

// IsTrusted reports whether addr is inside a trusted network.
func (tp *TrustedProxies) IsTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientAddr returns the client address for r.
//
// Forwarding headers are only read when the direct peer is trusted.
// X-Forwarded-For is walked right to left and the first hop that is not
// itself a trusted proxy wins, so a client cannot spoof its address by
// prepending entries.
func (tp *TrustedProxies) ClientAddr(r *http.Request) (netip.Addr, bool) {
	direct, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok || !tp.IsTrusted(direct) {
		return direct, ok
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if !tp.IsTrusted(addr) {
				return addr, true
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap(), true
		}
	}

	return direct, true
}

// GetClientIPString returns the client IP for logging and rate limiting,
// or "unknown" when RemoteAddr cannot be parsed.
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	addr, ok := tp.ClientAddr(r)
	if !ok {
		return "unknown"
	}
	return addr.String()
}

// parseRemoteAddr accepts "ip:port", "[ip]:port" or a bare IP.
func parseRemoteAddr(remote string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
