// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config holds the service configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ListenAddr is the address the HTTP server listens on.
	// Example: ":9300"
	ListenAddr string `toml:"listen_addr"`

	// Server holds HTTP surface settings.
	Server ServerConfig `toml:"server"`

	// Registry configures the conference registry endpoint.
	Registry RegistryConfig `toml:"registry"`

	// OutboundHTTP configuration
	OutboundHTTP OutboundHTTPConfig `toml:"outbound_http"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	// Template describes the document template new papers are cloned from.
	Template TemplateConfig `toml:"template"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP surface settings.
type ServerConfig struct {
	// SessionTTLSeconds is how long a login session stays valid.
	SessionTTLSeconds int `toml:"session_ttl_seconds"`

	// AdminTokenHash is the bcrypt hash of the admin bearer token.
	// Empty disables the admin endpoints.
	AdminTokenHash string `toml:"admin_token_hash"`

	// LoginRatePerMinute limits login attempts per client IP.
	LoginRatePerMinute int `toml:"login_rate_per_minute"`

	// RefreshRatePerMinute limits refresh requests per user.
	RefreshRatePerMinute int `toml:"refresh_rate_per_minute"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `toml:"tls_cert_file"`
	TLSKeyFile  string `toml:"tls_key_file"`
}

// RegistryConfig configures the registry protocol client.
type RegistryConfig struct {
	// BaseURL is the registry REST endpoint, e.g. "https://www.conftool.pro/dhd2025/rest.php".
	BaseURL string `toml:"base_url"`

	// Secret is the shared REST secret used to compute passhash.
	Secret string `toml:"secret"`

	// UserAgent is sent with every request.
	UserAgent string `toml:"user_agent"`

	// NonceKey names the cache sequence backing the nonce. Replicas sharing
	// one secret must share the key (and a shared cache driver).
	NonceKey string `toml:"nonce_key"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// SSRFMode: "strict" blocks private/loopback targets, "off" allows them.
	SSRFMode string `toml:"ssrf_mode"`

	// TimeoutMS bounds whole-document requests. Export streams are bounded
	// by the caller's context only.
	TimeoutMS int `toml:"timeout_ms"`

	// ConnectTimeoutMS bounds dialing.
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`

	// MaxRedirects for unsigned requests.
	MaxRedirects int `toml:"max_redirects"`

	// MaxResponseBytes caps buffered (non-streamed) responses.
	MaxResponseBytes int64 `toml:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev only).
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver"`

	// DataDir holds the sqlite database file.
	DataDir string `toml:"data_dir"`

	// DSN is the postgres connection string.
	DSN string `toml:"dsn"`

	// MaxOpenConns bounds the connection pool (postgres).
	MaxOpenConns int `toml:"max_open_conns"`
}

// CacheConfig holds cache driver settings.
type CacheConfig struct {
	// Driver is "memory" or "redis". Empty means memory.
	Driver string `toml:"driver"`

	// Drivers holds per-driver settings: [cache.drivers.<name>].
	Drivers map[string]any `toml:"drivers"`
}

// TemplateConfig is the static shape of the article template.
type TemplateConfig struct {
	ImportID         string         `toml:"import_id"`
	Title            string         `toml:"title"`
	Attrs            map[string]any `toml:"attrs"`
	AbstractElements []string       `toml:"abstract_elements"`
	AbstractMarks    []string       `toml:"abstract_marks"`
	BodyElements     []string       `toml:"body_elements"`
	BodyMarks        []string       `toml:"body_marks"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error.
	Level string `toml:"level"`

	// AllowSensitive permits usernames and email addresses in debug output.
	AllowSensitive bool `toml:"allow_sensitive"`
}

// Redacted returns a printable form of the config with secrets masked.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString("  Server: {\n")
	sb.WriteString(fmt.Sprintf("    SessionTTLSeconds: %d,\n", c.Server.SessionTTLSeconds))
	sb.WriteString(fmt.Sprintf("    AdminTokenHash: %s,\n", redact(c.Server.AdminTokenHash)))
	sb.WriteString(fmt.Sprintf("    LoginRatePerMinute: %d,\n", c.Server.LoginRatePerMinute))
	sb.WriteString(fmt.Sprintf("    RefreshRatePerMinute: %d,\n", c.Server.RefreshRatePerMinute))
	sb.WriteString(fmt.Sprintf("    TLSCertFile: %q,\n", c.Server.TLSCertFile))
	sb.WriteString("  },\n")
	sb.WriteString("  Registry: {\n")
	sb.WriteString(fmt.Sprintf("    BaseURL: %q,\n", c.Registry.BaseURL))
	sb.WriteString(fmt.Sprintf("    Secret: %s,\n", redact(c.Registry.Secret)))
	sb.WriteString(fmt.Sprintf("    UserAgent: %q,\n", c.Registry.UserAgent))
	sb.WriteString(fmt.Sprintf("    NonceKey: %q,\n", c.Registry.NonceKey))
	sb.WriteString("  },\n")
	sb.WriteString("  OutboundHTTP: {\n")
	sb.WriteString(fmt.Sprintf("    SSRFMode: %q,\n", c.OutboundHTTP.SSRFMode))
	sb.WriteString(fmt.Sprintf("    TimeoutMS: %d,\n", c.OutboundHTTP.TimeoutMS))
	sb.WriteString(fmt.Sprintf("    ConnectTimeoutMS: %d,\n", c.OutboundHTTP.ConnectTimeoutMS))
	sb.WriteString(fmt.Sprintf("    MaxRedirects: %d,\n", c.OutboundHTTP.MaxRedirects))
	sb.WriteString(fmt.Sprintf("    MaxResponseBytes: %d,\n", c.OutboundHTTP.MaxResponseBytes))
	sb.WriteString(fmt.Sprintf("    InsecureSkipVerify: %v,\n", c.OutboundHTTP.InsecureSkipVerify))
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString(fmt.Sprintf("    DSN: %s,\n", redact(c.Store.DSN)))
	sb.WriteString(fmt.Sprintf("    MaxOpenConns: %d,\n", c.Store.MaxOpenConns))
	sb.WriteString("  },\n")
	sb.WriteString("  Cache: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Cache.Driver))
	sb.WriteString(fmt.Sprintf("    Drivers: %v,\n", sortedKeys(c.Cache.Drivers)))
	sb.WriteString("  },\n")
	sb.WriteString("  Template: {\n")
	sb.WriteString(fmt.Sprintf("    ImportID: %q,\n", c.Template.ImportID))
	sb.WriteString(fmt.Sprintf("    Title: %q,\n", c.Template.Title))
	sb.WriteString(fmt.Sprintf("    AttrsCount: %d,\n", len(c.Template.Attrs)))
	sb.WriteString("  },\n")
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString(fmt.Sprintf("    AllowSensitive: %v,\n", c.Logging.AllowSensitive))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return "[REDACTED]"
}

// sortedKeys lists driver names only; driver tables may hold passwords.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
