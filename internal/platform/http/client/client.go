// Package client provides a safe outbound HTTP client with SSRF protections.
// It is used to read WebID profiles and pod documents, which are user-supplied
// URLs and must never reach loopback or private networks in strict mode.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/hostport"
)

var (
	ErrSSRFBlocked         = errors.New("request blocked by SSRF protection")
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrResponseTooLarge    = errors.New("response body too large")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrRedirectBlocked     = errors.New("redirect blocked by policy")
	ErrRedirectNotSameHost = errors.New("redirect to different host blocked")
	ErrRedirectDowngrade   = errors.New("redirect from https to http blocked")
	ErrHostUnresolvable    = errors.New("host could not be resolved")
)

// userAgent identifies discovery traffic to pod servers.
const userAgent = "podinbox-go/1 (+inbox discovery)"

// Resolver abstracts DNS resolution for testing.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Client is a safe HTTP client with SSRF protections and bounded behavior.
type Client struct {
	cfg        *config.OutboundHTTPConfig
	httpClient *http.Client
	resolver   Resolver // nil uses net.DefaultResolver
}

// Response is a fully read, size-bounded response.
type Response struct {
	// URL is the final URL after redirects.
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Option customizes a Client at construction.
type Option func(*options)

type options struct {
	rootCAs *x509.CertPool
}

// WithRootCAs sets the root pool for verifying pod certificates.
// A nil pool keeps the system roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) { o.rootCAs = pool }
}

// New creates a new safe HTTP client.
// The client ignores proxy environment variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func New(cfg *config.OutboundHTTPConfig, opts ...Option) *Client {
	if cfg == nil {
		strict := config.OutboundHTTPConfigStrict()
		cfg = &strict
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{cfg: cfg}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			// Re-checked at dial time so DNS rebinding between preflight and connect is caught.
			if cfg.SSRFMode == "strict" {
				if err := c.checkSSRF(ctx, addr); err != nil {
					return nil, err
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			RootCAs:            o.rootCAs,
			MinVersion:         tls.VersionTLS12,
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
		// Redirects are followed manually under same-host constraints.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

// SetResolver sets a custom DNS resolver (for testing).
func (c *Client) SetResolver(r Resolver) {
	c.resolver = r
}

func (c *Client) getResolver() Resolver {
	if c.resolver != nil {
		return c.resolver
	}
	return net.DefaultResolver
}

// checkSSRF validates a host:port address from the dialer.
func (c *Client) checkSSRF(ctx context.Context, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return c.checkSSRFHost(ctx, host)
}

// checkSSRFHost validates that the host is not a private/loopback address.
// Handles IPv6 bracket notation (e.g., "[::1]").
func (c *Client) checkSSRFHost(ctx context.Context, host string) error {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	lowerHost := strings.ToLower(host)
	if lowerHost == "localhost" || lowerHost == "localhost.localdomain" || strings.HasSuffix(lowerHost, ".localhost") {
		return fmt.Errorf("%w: localhost is blocked", ErrSSRFBlocked)
	}

	if ip := net.ParseIP(host); ip != nil {
		if !isAllowedIP(ip) {
			return fmt.Errorf("%w: IP %s is blocked", ErrSSRFBlocked, ip)
		}
		return nil
	}

	ipAddrs, err := c.getResolver().LookupIPAddr(ctx, host)
	if err != nil {
		// fail closed
		return fmt.Errorf("%w: %s: %v", ErrHostUnresolvable, host, err)
	}

	for _, ipAddr := range ipAddrs {
		if !isAllowedIP(ipAddr.IP) {
			return fmt.Errorf("%w: %s resolves to blocked IP %s", ErrSSRFBlocked, host, ipAddr.IP)
		}
	}

	return nil
}

// isAllowedIP reports whether ip is a public unicast address.
func isAllowedIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(), ip.IsMulticast():
		return false
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return false
	}
	return true
}

// Get performs a GET request with safety protections.
// Redirects are followed under strict constraints.
func (c *Client) Get(ctx context.Context, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return c.Do(req)
}

// Do performs an HTTP request with safety protections.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.URL == nil || (req.URL.Scheme != "http" && req.URL.Scheme != "https") {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	if c.cfg.SSRFMode == "strict" {
		if err := c.checkSSRFHost(ctx, req.URL.Hostname()); err != nil {
			return nil, err
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if isRedirect(resp.StatusCode) {
		return c.followRedirect(req, resp, 0)
	}

	return resp, nil
}

// Fetch performs a GET with the given Accept header and reads the body with a size limit.
// Non-2xx responses are returned, not converted to errors; callers decide what a 404 means.
func (c *Client) Fetch(ctx context.Context, urlStr, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// followRedirect follows a redirect with strict constraints.
func (c *Client) followRedirect(origReq *http.Request, resp *http.Response, depth int) (*http.Response, error) {
	defer resp.Body.Close()
	ctx := origReq.Context()

	maxRedirects := c.cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 1
	}
	if depth >= maxRedirects {
		return nil, fmt.Errorf("%w: exceeded limit of %d", ErrTooManyRedirects, maxRedirects)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: no Location header", ErrRedirectBlocked)
	}

	redirectURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid Location: %v", ErrRedirectBlocked, err)
	}
	redirectURL = origReq.URL.ResolveReference(redirectURL)

	// https -> http is a downgrade; http -> https is allowed
	if origReq.URL.Scheme == "https" && redirectURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectDowngrade, origReq.URL.Scheme, redirectURL.Scheme)
	}

	if !isSameHost(origReq.URL, redirectURL) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectNotSameHost, origReq.URL.Host, redirectURL.Host)
	}

	if c.cfg.SSRFMode == "strict" {
		if err := c.checkSSRFHost(ctx, redirectURL.Hostname()); err != nil {
			return nil, err
		}
	}

	newReq, err := http.NewRequestWithContext(ctx, origReq.Method, redirectURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
	}
	copyRedirectHeaders(origReq, newReq)

	newResp, err := c.httpClient.Do(newReq)
	if err != nil {
		return nil, err
	}

	if isRedirect(newResp.StatusCode) {
		return c.followRedirect(newReq, newResp, depth+1)
	}

	return newResp, nil
}

// isSameHost compares normalized authorities, so an explicit default port
// matches its absence and an http -> https upgrade on the same host passes.
func isSameHost(a, b *url.URL) bool {
	aa, err := hostport.Authority(a)
	if err != nil {
		return false
	}
	bb, err := hostport.Authority(b)
	if err != nil {
		return false
	}
	return aa == bb
}

// copyRedirectHeaders copies content negotiation headers, never credentials.
func copyRedirectHeaders(src, dst *http.Request) {
	for _, h := range []string{"User-Agent", "Accept", "Accept-Language"} {
		if v := src.Header.Get(h); v != "" {
			dst.Header.Set(h, v)
		}
	}
}

func isRedirect(code int) bool {
	return code == http.StatusMovedPermanently ||
		code == http.StatusFound ||
		code == http.StatusSeeOther ||
		code == http.StatusTemporaryRedirect ||
		code == http.StatusPermanentRedirect
}

// IsSSRFError returns true if the error is an SSRF blocking error.
func IsSSRFError(err error) bool {
	return errors.Is(err, ErrSSRFBlocked) || errors.Is(err, ErrHostUnresolvable)
}

// IsRedirectError returns true if the error is a redirect-related error.
func IsRedirectError(err error) bool {
	return errors.Is(err, ErrRedirectBlocked) ||
		errors.Is(err, ErrRedirectNotSameHost) ||
		errors.Is(err, ErrRedirectDowngrade) ||
		errors.Is(err, ErrTooManyRedirects)
}
