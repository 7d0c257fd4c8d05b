package inboxes

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/hostport"
)

// NormalizeIdentity checks that webID is an absolute http(s) URL and returns it
// with an ASCII, lower-cased host and no default port. Path and fragment are
// kept as given.
func NormalizeIdentity(webID string) (string, error) {
	raw := strings.TrimSpace(webID)
	if raw == "" {
		return "", fmt.Errorf("%w: empty WebID", ErrInvalidIdentity)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidIdentity)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: userinfo is not allowed", ErrInvalidIdentity)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidIdentity)
	}

	if ip := net.ParseIP(host); ip == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("%w: host %q: %v", ErrInvalidIdentity, host, err)
		}
		host = ascii
	} else if ip.To4() == nil {
		host = "[" + host + "]"
	}

	authority := host
	if port := u.Port(); port != "" {
		authority = host + ":" + port
	}
	if u.Host, err = hostport.Normalize(authority, u.Scheme); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return u.String(), nil
}

// hostOf returns only the host of a locator, for logs that must not carry full URLs.
func hostOf(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}
