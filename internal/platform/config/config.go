// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// PublicOrigin is the public origin (scheme + host + port) for this instance.
	// Example: "https://inbox.example.org"
	PublicOrigin string `toml:"public_origin"`

	// ExternalBasePath is the optional path prefix for all service endpoints.
	// Example: "/podinbox" or empty string
	ExternalBasePath string `toml:"external_base_path"`

	// ListenAddr is the address to listen on.
	// Example: ":9300"
	ListenAddr string `toml:"listen_addr"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	// TLS configuration
	TLS TLSConfig `toml:"tls"`

	// OutboundHTTP configuration for fetching profiles and pod documents
	OutboundHTTP OutboundHTTPConfig `toml:"outbound_http"`

	// Discovery configuration
	Discovery DiscoveryConfig `toml:"discovery"`

	// Cache configuration (rate limit counters)
	Cache CacheConfig `toml:"cache"`

	// Store configuration (discovery run records)
	Store StoreConfig `toml:"store"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// Tracing configuration
	Tracing TracingConfig `toml:"tracing"`

	// Metrics configuration
	Metrics MetricsConfig `toml:"metrics"`

	// HTTP holds per-service HTTP configuration.
	HTTP HTTPConfig `toml:"http"`
}

// HTTPConfig holds per-service HTTP configuration.
// Services are configured under [http.services.<svcname>].
// Interceptors are configured under [http.interceptors.<name>].
type HTTPConfig struct {
	// Services maps service names to their raw config maps.
	// Each service decodes its own config via cfg.Decode() with Setter interface.
	Services map[string]map[string]any `toml:"services"`

	// Interceptors maps interceptor names to their raw config maps.
	// Ratelimit profiles live at [http.interceptors.ratelimit.profiles.<name>].
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is a list of CIDR ranges for trusted reverse proxies.
	// X-Forwarded-* headers are only honored from these addresses.
	// Default: ["127.0.0.0/8", "::1/128"]
	TrustedProxies []string `toml:"trusted_proxies"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// SelfSignedDir holds the generated certificate in selfsigned mode.
	// Default: ".podinbox/certs"
	SelfSignedDir string `toml:"self_signed_dir"`

	// HTTPPort serves ACME HTTP-01 challenges and redirects to HTTPS (acme mode only).
	HTTPPort int `toml:"http_port"`

	// HTTPSPort serves the application in acme mode.
	HTTPSPort int `toml:"https_port"`

	ACME ACMEConfig `toml:"acme"`
}

// ACMEConfig holds ACME certificate settings.
type ACMEConfig struct {
	// Email registers the ACME account.
	Email string `toml:"email"`

	// Domain defaults to the public_origin host.
	Domain string `toml:"domain"`

	// Directory is the ACME directory URL. Empty picks Let's Encrypt
	// production, or staging when UseStaging is set.
	Directory string `toml:"directory"`

	// StorageDir keeps the account key and issued certificate across restarts.
	// Default: ".podinbox/acme"
	StorageDir string `toml:"storage_dir"`

	UseStaging bool `toml:"use_staging"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// SSRFMode is one of: strict, off
	SSRFMode string `toml:"ssrf_mode"`

	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `toml:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`

	// MaxRedirects is the maximum number of redirects to follow
	MaxRedirects int `toml:"max_redirects"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `toml:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`

	// CAFile and CADir add PEM roots for pods served under a private CA.
	// They are merged with the system pool.
	CAFile string `toml:"ca_file"`
	CADir  string `toml:"ca_dir"`
}

// DiscoveryConfig holds inbox discovery settings.
type DiscoveryConfig struct {
	// DefaultLanguage is the locale used for inbox labels when the caller
	// does not ask for one. Default: "en-US"
	DefaultLanguage string `toml:"default_language"`

	// RecordRuns stores a record of every discovery run in the run store.
	// Pointer for presence detection; nil = use preset default (true).
	RecordRuns *bool `toml:"record_runs"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: "memory" (default) or "redis".
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration.
	// Example: [cache.drivers.redis] addr = "localhost:6379"
	Drivers map[string]any `toml:"drivers"`
}

// StoreConfig holds run store settings.
type StoreConfig struct {
	// Driver is the store driver name: "memory" (default) or "sqlite".
	Driver string `toml:"driver"`

	// DataDir is the directory for the sqlite database file.
	DataDir string `toml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`

	// AllowSensitive permits logging of full WebIDs and pod URLs.
	// Default: false, which logs only the host part.
	AllowSensitive bool `toml:"allow_sensitive"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns on span export. Default: false.
	Enabled bool `toml:"enabled"`

	// Endpoint is the OTLP/HTTP collector URL, e.g. "http://localhost:4318".
	Endpoint string `toml:"endpoint"`

	// ServiceName is reported as service.name. Default: "podinbox-go".
	ServiceName string `toml:"service_name"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled mounts the /metrics service. Default: true.
	Enabled bool `toml:"enabled"`
}

// OutboundHTTPConfigStrict returns strict outbound HTTP config for production.
func OutboundHTTPConfigStrict() OutboundHTTPConfig {
	return OutboundHTTPConfig{
		SSRFMode:           "strict",
		TimeoutMS:          10000,
		ConnectTimeoutMS:   2000,
		MaxRedirects:       1,
		MaxResponseBytes:   1048576,
		InsecureSkipVerify: false,
	}
}

// BuildServiceConfig returns the raw service config map for a given service name.
// Returns nil if the service is not configured in [http.services.<name>].
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	if c.HTTP.Services == nil {
		return nil
	}
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	// Return a copy to prevent mutation
	result := make(map[string]any)
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// RecordRunsEnabled returns whether discovery runs are recorded.
// Safe for nil pointer on the *bool field.
func (c *Config) RecordRunsEnabled() bool {
	return c.Discovery.RecordRuns != nil && *c.Discovery.RecordRuns
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  PublicOrigin: %q,\n", c.PublicOrigin))
	sb.WriteString(fmt.Sprintf("  ExternalBasePath: %q,\n", c.ExternalBasePath))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString(fmt.Sprintf("  Server: {TrustedProxies: %v},\n", c.Server.TrustedProxies))
	sb.WriteString("  TLS: {\n")
	sb.WriteString(fmt.Sprintf("    Mode: %q,\n", c.TLS.Mode))
	sb.WriteString(fmt.Sprintf("    CertFile: %q,\n", c.TLS.CertFile))
	sb.WriteString(fmt.Sprintf("    KeyFile: %q,\n", c.TLS.KeyFile))
	sb.WriteString(fmt.Sprintf("    SelfSignedDir: %q,\n", c.TLS.SelfSignedDir))
	sb.WriteString(fmt.Sprintf("    HTTPPort: %d, HTTPSPort: %d,\n", c.TLS.HTTPPort, c.TLS.HTTPSPort))
	sb.WriteString(fmt.Sprintf("    ACME: {Email: %q, Domain: %q, Directory: %q, StorageDir: %q, UseStaging: %v},\n",
		c.TLS.ACME.Email, c.TLS.ACME.Domain, c.TLS.ACME.Directory, c.TLS.ACME.StorageDir, c.TLS.ACME.UseStaging))
	sb.WriteString("  },\n")
	sb.WriteString("  OutboundHTTP: {\n")
	sb.WriteString(fmt.Sprintf("    SSRFMode: %q,\n", c.OutboundHTTP.SSRFMode))
	sb.WriteString(fmt.Sprintf("    TimeoutMS: %d,\n", c.OutboundHTTP.TimeoutMS))
	sb.WriteString(fmt.Sprintf("    MaxRedirects: %d,\n", c.OutboundHTTP.MaxRedirects))
	sb.WriteString(fmt.Sprintf("    MaxResponseBytes: %d,\n", c.OutboundHTTP.MaxResponseBytes))
	sb.WriteString(fmt.Sprintf("    InsecureSkipVerify: %v,\n", c.OutboundHTTP.InsecureSkipVerify))
	sb.WriteString(fmt.Sprintf("    CAFile: %q,\n", c.OutboundHTTP.CAFile))
	sb.WriteString(fmt.Sprintf("    CADir: %q,\n", c.OutboundHTTP.CADir))
	sb.WriteString("  },\n")
	sb.WriteString("  Discovery: {\n")
	sb.WriteString(fmt.Sprintf("    DefaultLanguage: %q,\n", c.Discovery.DefaultLanguage))
	sb.WriteString(fmt.Sprintf("    RecordRuns: %v,\n", c.RecordRunsEnabled()))
	sb.WriteString("  },\n")
	sb.WriteString(fmt.Sprintf("  Cache: {Driver: %q, DriversCount: %d},\n", c.Cache.Driver, len(c.Cache.Drivers)))
	sb.WriteString(fmt.Sprintf("  Store: {Driver: %q, DataDir: %q},\n", c.Store.Driver, c.Store.DataDir))
	sb.WriteString(fmt.Sprintf("  Logging: {Level: %q, AllowSensitive: %v},\n", c.Logging.Level, c.Logging.AllowSensitive))
	sb.WriteString(fmt.Sprintf("  Tracing: {Enabled: %v, Endpoint: %q, ServiceName: %q},\n", c.Tracing.Enabled, redactURL(c.Tracing.Endpoint), c.Tracing.ServiceName))
	sb.WriteString(fmt.Sprintf("  Metrics: {Enabled: %v},\n", c.Metrics.Enabled))
	sb.WriteString(fmt.Sprintf("  HTTP: {ServicesCount: %d, InterceptorsCount: %d},\n", len(c.HTTP.Services), len(c.HTTP.Interceptors)))
	sb.WriteString("}")
	return sb.String()
}

// redactURL strips userinfo from collector URLs, which may carry credentials.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("REDACTED")
	return u.String()
}
