// Package hostport normalizes URL authorities so that WebIDs and redirect
// targets compare equal regardless of case or an explicit default port.
package hostport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalize returns a lowercase, scheme-aware host[:port] with default ports
// stripped. Default ports: :443 for https, :80 for http.
//
// Rejects values containing "://" or "/" since all inputs are schemeless
// authorities. Preserves IPv6 bracket form (e.g. [::1], [::1]:9200).
func Normalize(authority string, scheme string) (string, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return "", errors.New("hostport: empty authority")
	}

	if strings.Contains(authority, "://") {
		return "", fmt.Errorf("hostport: authority %q must not contain a scheme", authority)
	}

	if strings.Contains(authority, "/") {
		return "", fmt.Errorf("hostport: authority %q must not contain a path", authority)
	}

	// Use a dummy scheme so url.Parse handles IPv6 brackets and port splitting.
	dummy := "dummy://" + authority
	u, err := url.Parse(dummy)
	if err != nil {
		return "", fmt.Errorf("hostport: invalid authority %q: %w", authority, err)
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("hostport: authority %q has no host", authority)
	}

	port := u.Port()
	scheme = strings.ToLower(scheme)

	if isDefaultPort(port, scheme) {
		port = ""
	}

	if port == "" {
		// IPv6 addresses need brackets when output as standalone authorities.
		if strings.Contains(hostname, ":") {
			return "[" + hostname + "]", nil
		}
		return hostname, nil
	}

	return net.JoinHostPort(hostname, port), nil
}

// Authority returns the normalized authority of an absolute URL.
// https://Pod.Example:443 and https://pod.example yield the same value.
func Authority(u *url.URL) (string, error) {
	if u == nil || u.Host == "" {
		return "", errors.New("hostport: URL has no host")
	}
	return Normalize(u.Host, u.Scheme)
}

func isDefaultPort(port, scheme string) bool {
	switch scheme {
	case "https":
		return port == "443"
	case "http":
		return port == "80"
	default:
		return false
	}
}
