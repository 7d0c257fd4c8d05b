package server

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	tlspkg "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/tls"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func acmeConfig(t *testing.T) *config.Config {
	cfg := config.DevConfig()
	cfg.TLS.Mode = "acme"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.PublicOrigin = "https://inbox.pod.example"
	cfg.TLS.HTTPPort = freePort(t)
	cfg.TLS.HTTPSPort = 443
	cfg.TLS.ACME.StorageDir = t.TempDir()
	return cfg
}

func TestStartACME_PublicOriginPortMismatch(t *testing.T) {
	defer setupTestSharedDeps(t)()

	cfg := acmeConfig(t)
	cfg.PublicOrigin = "https://inbox.pod.example:8443"
	cfg.TLS.HTTPSPort = 9443

	srv, err := New(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = srv.Start()
	if err == nil || !strings.Contains(err.Error(), "does not match tls.https_port") {
		t.Fatalf("Start() = %v, want port mismatch", err)
	}
}

func TestStartACME_InitFailureReleasesChallengeListener(t *testing.T) {
	defer setupTestSharedDeps(t)()

	cfg := acmeConfig(t)
	cfg.TLS.ACME.Email = ""

	srv, err := New(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Start(); !errors.Is(err, tlspkg.ErrMissingACMEEmail) {
		t.Fatalf("Start() = %v, want ErrMissingACMEEmail", err)
	}

	// The challenge port must be free again.
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.TLS.HTTPPort)))
	if err != nil {
		t.Fatalf("challenge port still bound: %v", err)
	}
	l.Close()
}

func TestHTTPSRedirectHandler(t *testing.T) {
	tests := []struct {
		name      string
		httpsPort int
		host      string
		target    string
		want      string
	}{
		{"default port", 443, "inbox.pod.example", "/inboxes/discover?webid=x", "https://inbox.pod.example/inboxes/discover?webid=x"},
		{"host with port", 443, "inbox.pod.example:80", "/", "https://inbox.pod.example/"},
		{"custom port", 8443, "inbox.pod.example:8080", "/metrics", "https://inbox.pod.example:8443/metrics"},
		{"ipv6", 443, "[::1]:80", "/", "https://[::1]/"},
		{"ipv6 custom port", 8443, "[::1]", "/", "https://[::1]:8443/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			newHTTPSRedirectHandler(tt.httpsPort).ServeHTTP(rec, req)

			if rec.Code != http.StatusPermanentRedirect {
				t.Fatalf("status = %d, want 308", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.want {
				t.Errorf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOriginPort(t *testing.T) {
	if got := originPort("https://inbox.pod.example:8443"); got != 8443 {
		t.Errorf("originPort = %d, want 8443", got)
	}
	if got := originPort("https://inbox.pod.example"); got != 0 {
		t.Errorf("originPort = %d, want 0", got)
	}
}
