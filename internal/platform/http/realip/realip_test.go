package realip

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestTrustedProxies_IsTrusted(t *testing.T) {
	tp := NewTrustedProxies([]string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "192.0.2.7", "not-a-cidr"})

	if tp.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (invalid entry skipped)", tp.Len())
	}

	tests := []struct {
		ip      string
		trusted bool
	}{
		{"127.0.0.1", true},
		{"10.255.255.255", true},
		{"192.0.2.7", true},
		{"192.0.2.8", false},
		{"8.8.8.8", false},
		{"::1", true},
		{"::2", false},
		{"::ffff:10.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := tp.IsTrusted(netip.MustParseAddr(tt.ip)); got != tt.trusted {
				t.Errorf("IsTrusted(%s) = %v, want %v", tt.ip, got, tt.trusted)
			}
		})
	}
}

func TestGetClientIPString(t *testing.T) {
	tp := NewTrustedProxies([]string{"127.0.0.0/8", "10.0.0.0/8"})

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct untrusted ignores headers", "192.168.1.100:12345", "8.8.8.8", "1.2.3.4", "192.168.1.100"},
		{"trusted peer uses forwarded", "127.0.0.1:12345", "8.8.8.8", "", "8.8.8.8"},
		{"rightmost untrusted hop wins", "127.0.0.1:12345", "6.6.6.6, 8.8.8.8, 10.0.0.1", "", "8.8.8.8"},
		{"all hops trusted falls back to peer", "127.0.0.1:1", "10.0.0.2, 10.0.0.1", "", "127.0.0.1"},
		{"x-real-ip when no forwarded", "127.0.0.1:12345", "", "1.2.3.4", "1.2.3.4"},
		{"garbage hop stops walk", "127.0.0.1:12345", "nonsense", "", "127.0.0.1"},
		{"ipv6 peer", "[2001:db8::1]:443", "", "", "2001:db8::1"},
		{"bare ip remote", "203.0.113.9", "", "", "203.0.113.9"},
		{"unparseable remote", "pipe", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := tp.GetClientIPString(req); got != tt.want {
				t.Errorf("GetClientIPString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNoTrustedProxies(t *testing.T) {
	tp := NewTrustedProxies(nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "8.8.8.8")

	if got := tp.GetClientIPString(req); got != "127.0.0.1" {
		t.Errorf("got %q, want 127.0.0.1", got)
	}
}
