package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr            *string
	PublicOrigin          *string
	ExternalBasePath      *string
	SSRFMode              *string
	TLSMode               *string
	CacheDriver           *string
	StoreDriver           *string
	StoreDataDir          *string
	LoggingLevel          *string
	LoggingAllowSensitive *string // "true", "false", or "" (unset)
	TracingEndpoint       *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode   string        `toml:"mode"`
	Server *serverConfig `toml:"server"`

	PublicOrigin     string `toml:"public_origin"`
	ExternalBasePath string `toml:"external_base_path"`
	ListenAddr       string `toml:"listen_addr"`

	TLS          *TLSConfig          `toml:"tls"`
	OutboundHTTP *OutboundHTTPConfig `toml:"outbound_http"`
	Discovery    *discoveryConfig    `toml:"discovery"`
	Cache        *cacheConfig        `toml:"cache"`
	Store        *storeConfig        `toml:"store"`
	Logging      *loggingConfig      `toml:"logging"`
	Tracing      *tracingConfig      `toml:"tracing"`
	Metrics      *metricsConfig      `toml:"metrics"`
	HTTP         *httpFileConfig     `toml:"http"`
}

// httpFileConfig holds per-service HTTP configuration from TOML.
type httpFileConfig struct {
	Services     map[string]map[string]any `toml:"services"`
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

type serverConfig struct {
	TrustedProxies []string `toml:"trusted_proxies"`
}

type discoveryConfig struct {
	DefaultLanguage string `toml:"default_language"`
	RecordRuns      *bool  `toml:"record_runs"`
}

type cacheConfig struct {
	Driver  string         `toml:"driver"`
	Drivers map[string]any `toml:"drivers"`
}

type storeConfig struct {
	Driver  string `toml:"driver"`
	DataDir string `toml:"data_dir"`
}

type loggingConfig struct {
	Level          string `toml:"level"`
	AllowSensitive bool   `toml:"allow_sensitive"`
}

type tracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

type metricsConfig struct {
	Enabled *bool `toml:"enabled"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keyStr := k.String()
				if keyStr == "discovery.settings_document" {
					return nil, fmt.Errorf("config key 'discovery.settings_document' is not supported: the app settings document is always <storage>settings.ttl")
				}
				keys = append(keys, keyStr)
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	if err := validatePublicOrigin(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ptrBool returns a pointer to the given bool value.
func ptrBool(b bool) *bool { return &b }

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production-safe strict defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:             string(ModeStrict),
		PublicOrigin:     "http://localhost:9300",
		ExternalBasePath: "",
		ListenAddr:       ":9300",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		TLS: TLSConfig{
			Mode:          "off",
			SelfSignedDir: ".podinbox/certs",
			HTTPPort:      80,
			HTTPSPort:     443,
			ACME: ACMEConfig{
				StorageDir: ".podinbox/acme",
			},
		},
		OutboundHTTP: OutboundHTTPConfigStrict(),
		Discovery: DiscoveryConfig{
			DefaultLanguage: "en-US",
			RecordRuns:      ptrBool(true),
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Store: StoreConfig{
			Driver:  "memory",
			DataDir: ".podinbox/data",
		},
		Logging: LoggingConfig{
			Level:          "info",
			AllowSensitive: false,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "podinbox-go",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DevConfig returns development mode defaults.
// SSRF protection is off so local pods (localhost, docker networks) can be discovered.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.OutboundHTTP.SSRFMode = "off"
	cfg.OutboundHTTP.MaxRedirects = 3
	cfg.OutboundHTTP.InsecureSkipVerify = true
	cfg.Logging.Level = "debug"
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.PublicOrigin != "" {
		cfg.PublicOrigin = fc.PublicOrigin
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil && len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
		if fc.TLS.HTTPPort != 0 {
			cfg.TLS.HTTPPort = fc.TLS.HTTPPort
		}
		if fc.TLS.HTTPSPort != 0 {
			cfg.TLS.HTTPSPort = fc.TLS.HTTPSPort
		}
		if fc.TLS.ACME.Email != "" {
			cfg.TLS.ACME.Email = fc.TLS.ACME.Email
		}
		if fc.TLS.ACME.Domain != "" {
			cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
		}
		if fc.TLS.ACME.Directory != "" {
			cfg.TLS.ACME.Directory = fc.TLS.ACME.Directory
		}
		if fc.TLS.ACME.StorageDir != "" {
			cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
		}
		if fc.TLS.ACME.UseStaging {
			cfg.TLS.ACME.UseStaging = true
		}
	}

	if fc.OutboundHTTP != nil {
		if fc.OutboundHTTP.SSRFMode != "" {
			cfg.OutboundHTTP.SSRFMode = fc.OutboundHTTP.SSRFMode
		}
		if fc.OutboundHTTP.TimeoutMS != 0 {
			cfg.OutboundHTTP.TimeoutMS = fc.OutboundHTTP.TimeoutMS
		}
		if fc.OutboundHTTP.ConnectTimeoutMS != 0 {
			cfg.OutboundHTTP.ConnectTimeoutMS = fc.OutboundHTTP.ConnectTimeoutMS
		}
		if fc.OutboundHTTP.MaxRedirects != 0 {
			cfg.OutboundHTTP.MaxRedirects = fc.OutboundHTTP.MaxRedirects
		}
		if fc.OutboundHTTP.CAFile != "" {
			cfg.OutboundHTTP.CAFile = fc.OutboundHTTP.CAFile
		}
		if fc.OutboundHTTP.CADir != "" {
			cfg.OutboundHTTP.CADir = fc.OutboundHTTP.CADir
		}
		if fc.OutboundHTTP.MaxResponseBytes != 0 {
			cfg.OutboundHTTP.MaxResponseBytes = fc.OutboundHTTP.MaxResponseBytes
		}
		// InsecureSkipVerify is a bool, overlay always when section present
		cfg.OutboundHTTP.InsecureSkipVerify = fc.OutboundHTTP.InsecureSkipVerify
	}

	if fc.Discovery != nil {
		if fc.Discovery.DefaultLanguage != "" {
			cfg.Discovery.DefaultLanguage = fc.Discovery.DefaultLanguage
		}
		if fc.Discovery.RecordRuns != nil {
			cfg.Discovery.RecordRuns = fc.Discovery.RecordRuns
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Drivers) > 0 {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		cfg.Logging.AllowSensitive = fc.Logging.AllowSensitive
	}

	if fc.Tracing != nil {
		cfg.Tracing.Enabled = fc.Tracing.Enabled
		if fc.Tracing.Endpoint != "" {
			cfg.Tracing.Endpoint = fc.Tracing.Endpoint
		}
		if fc.Tracing.ServiceName != "" {
			cfg.Tracing.ServiceName = fc.Tracing.ServiceName
		}
	}

	if fc.Metrics != nil && fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}

	if fc.HTTP != nil {
		if len(fc.HTTP.Services) > 0 {
			if cfg.HTTP.Services == nil {
				cfg.HTTP.Services = make(map[string]map[string]any)
			}
			for name, svcCfg := range fc.HTTP.Services {
				cfg.HTTP.Services[name] = svcCfg
			}
		}
		if len(fc.HTTP.Interceptors) > 0 {
			if cfg.HTTP.Interceptors == nil {
				cfg.HTTP.Interceptors = make(map[string]map[string]any)
			}
			for name, intCfg := range fc.HTTP.Interceptors {
				cfg.HTTP.Interceptors[name] = intCfg
			}
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.PublicOrigin != nil && *f.PublicOrigin != "" {
		cfg.PublicOrigin = *f.PublicOrigin
	}
	if f.ExternalBasePath != nil && *f.ExternalBasePath != "" {
		cfg.ExternalBasePath = *f.ExternalBasePath
	}
	if f.SSRFMode != nil && *f.SSRFMode != "" {
		cfg.OutboundHTTP.SSRFMode = *f.SSRFMode
	}
	if f.TLSMode != nil && *f.TLSMode != "" {
		cfg.TLS.Mode = *f.TLSMode
	}
	if f.CacheDriver != nil && *f.CacheDriver != "" {
		cfg.Cache.Driver = *f.CacheDriver
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.StoreDataDir != nil && *f.StoreDataDir != "" {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.LoggingAllowSensitive != nil && *f.LoggingAllowSensitive != "" {
		// Parse "true" or "false" string (only apply when explicitly set)
		cfg.Logging.AllowSensitive = *f.LoggingAllowSensitive == "true"
	}
	if f.TracingEndpoint != nil && *f.TracingEndpoint != "" {
		cfg.Tracing.Endpoint = *f.TracingEndpoint
		cfg.Tracing.Enabled = true
	}
}

// validateEnums validates enum-like config fields and returns an error for invalid values.
func validateEnums(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "selfsigned":
	case "static":
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when tls.mode is static")
		}
	case "acme":
		if cfg.TLS.ACME.Email == "" {
			return fmt.Errorf("tls.acme.email is required when tls.mode is acme")
		}
		if cfg.TLS.HTTPPort <= 0 || cfg.TLS.HTTPSPort <= 0 {
			return fmt.Errorf("tls.http_port and tls.https_port must be set when tls.mode is acme")
		}
		if cfg.TLS.HTTPPort == cfg.TLS.HTTPSPort {
			return fmt.Errorf("tls.http_port and tls.https_port must differ")
		}
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.OutboundHTTP.SSRFMode {
	case "strict", "off":
	default:
		return fmt.Errorf("invalid outbound_http.ssrf_mode %q: must be one of strict, off", cfg.OutboundHTTP.SSRFMode)
	}

	if cfg.OutboundHTTP.TimeoutMS <= 0 {
		return fmt.Errorf("invalid outbound_http.timeout_ms %d: must be positive", cfg.OutboundHTTP.TimeoutMS)
	}
	if cfg.OutboundHTTP.MaxResponseBytes <= 0 {
		return fmt.Errorf("invalid outbound_http.max_response_bytes %d: must be positive", cfg.OutboundHTTP.MaxResponseBytes)
	}

	// cache.driver (empty defaults to memory)
	switch cfg.Cache.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory or redis", cfg.Cache.Driver)
	}

	switch cfg.Store.Driver {
	case "", "memory":
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required when store.driver is sqlite")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory or sqlite", cfg.Store.Driver)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}

	if strings.TrimSpace(cfg.Discovery.DefaultLanguage) == "" {
		return fmt.Errorf("discovery.default_language must not be empty")
	}

	if err := validateRatelimitConfig(cfg); err != nil {
		return err
	}

	return nil
}

// validateRatelimitConfig validates ratelimit interceptor configuration.
// Profiles are defined at [http.interceptors.ratelimit.profiles.<name>].
// Services opt-in via [http.services.<svc>.ratelimit] with profile = "<name>".
// If a service references a profile, that profile must exist.
func validateRatelimitConfig(cfg *Config) error {
	profiles := make(map[string]bool)
	if cfg.HTTP.Interceptors != nil {
		if rlCfg, ok := cfg.HTTP.Interceptors["ratelimit"]; ok {
			if profilesRaw, ok := rlCfg["profiles"]; ok {
				profilesMap, ok := profilesRaw.(map[string]any)
				if !ok {
					return fmt.Errorf("http.interceptors.ratelimit.profiles must be a map")
				}
				for name, profile := range profilesMap {
					if _, ok := profile.(map[string]any); !ok {
						return fmt.Errorf("http.interceptors.ratelimit.profiles.%s must be a map", name)
					}
					profiles[name] = true
				}
			}
		}
	}

	for svcName, svcCfg := range cfg.HTTP.Services {
		rlCfg, ok := svcCfg["ratelimit"]
		if !ok {
			continue
		}
		rlMap, ok := rlCfg.(map[string]any)
		if !ok {
			continue
		}
		if profileStr, ok := rlMap["profile"].(string); ok && !profiles[profileStr] {
			return fmt.Errorf("http.services.%s.ratelimit references undefined profile %q", svcName, profileStr)
		}
	}

	return nil
}

// validatePublicOrigin checks the public_origin config value when set.
// Must be an absolute URL with http/https scheme, a host, no userinfo,
// query, fragment, or base path. Whitespace is rejected, not trimmed.
func validatePublicOrigin(cfg *Config) error {
	if cfg.PublicOrigin == "" {
		return nil
	}

	origin := cfg.PublicOrigin

	if origin != strings.TrimSpace(origin) {
		return fmt.Errorf("invalid public_origin %q: must not contain leading or trailing whitespace", origin)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid public_origin %q: %w", origin, err)
	}

	if !u.IsAbs() {
		return fmt.Errorf("invalid public_origin %q: must be an absolute URL with http or https scheme", origin)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("invalid public_origin %q: scheme must be http or https, got %q", origin, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("invalid public_origin %q: must include a host", origin)
	}

	if u.User != nil {
		return fmt.Errorf("invalid public_origin %q: must not include userinfo", origin)
	}

	if u.RawQuery != "" {
		return fmt.Errorf("invalid public_origin %q: must not include a query string", origin)
	}

	if u.Fragment != "" {
		return fmt.Errorf("invalid public_origin %q: must not include a fragment", origin)
	}

	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("invalid public_origin %q: must not include a path (use external_base_path for base path)", origin)
	}

	return nil
}
