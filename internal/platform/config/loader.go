package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// SecretEnvVar overrides registry.secret when set, so the secret can stay
// out of the config file.
const SecretEnvVar = "CONFSYNC_REGISTRY_SECRET"

// Mode represents the service operating mode.
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

	// Getenv looks up environment variables; nil uses os.Getenv.
	Getenv func(string) string

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr            *string
	RegistryBaseURL       *string
	StoreDriver           *string
	StoreDataDir          *string
	StoreDSN              *string
	CacheDriver           *string
	SSRFMode              *string
	LoggingLevel          *string
	LoggingAllowSensitive *string // "true", "false", or "" (unset)
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode       string `toml:"mode"`
	ListenAddr string `toml:"listen_addr"`

	Server       *ServerConfig       `toml:"server"`
	Registry     *RegistryConfig     `toml:"registry"`
	OutboundHTTP *OutboundHTTPConfig `toml:"outbound_http"`
	Store        *StoreConfig        `toml:"store"`
	Cache        *CacheConfig        `toml:"cache"`
	Template     *TemplateConfig     `toml:"template"`
	Logging      *loggingConfig      `toml:"logging"`
}

type loggingConfig struct {
	Level          string `toml:"level"`
	AllowSensitive *bool  `toml:"allow_sensitive"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay environment (registry secret) and CLI flags
//  5. Validate
//
// A configured but unreadable or invalid file fails the load. Unknown keys
// only produce a warning.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
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
				// driver and template attr tables are free-form
				if strings.HasPrefix(k.String(), "cache.drivers.") || strings.HasPrefix(k.String(), "template.attrs.") {
					continue
				}
				keys = append(keys, k.String())
			}
			if len(keys) > 0 {
				logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
			}
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
	if secret := getenv(SecretEnvVar); secret != "" {
		cfg.Registry.Secret = secret
	}
	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:       string(ModeStrict),
		ListenAddr: ":9300",
		Server: ServerConfig{
			SessionTTLSeconds:    8 * 3600,
			LoginRatePerMinute:   10,
			RefreshRatePerMinute: 6,
		},
		Registry: RegistryConfig{
			UserAgent: "confsync-go RegistryClient 0.1",
			NonceKey:  "registry:nonce",
		},
		OutboundHTTP: OutboundHTTPConfig{
			SSRFMode:           "strict",
			TimeoutMS:          30000,
			ConnectTimeoutMS:   5000,
			MaxRedirects:       1,
			MaxResponseBytes:   1048576,
			InsecureSkipVerify: false,
		},
		Store: StoreConfig{
			Driver:       "sqlite",
			DataDir:      ".confsync/data",
			MaxOpenConns: 10,
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Template: DefaultTemplateConfig(),
		Logging: LoggingConfig{
			Level:          "info",
			AllowSensitive: false,
		},
	}
}

// DevConfig returns development defaults: registry fakes on localhost are
// reachable and logging is verbose.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.OutboundHTTP.SSRFMode = "off"
	cfg.OutboundHTTP.MaxRedirects = 3
	cfg.Logging.Level = "debug"
	cfg.Logging.AllowSensitive = true
	return cfg
}

// DefaultTemplateConfig returns the article template shape.
func DefaultTemplateConfig() TemplateConfig {
	return TemplateConfig{
		ImportID: "standard-article",
		Title:    "DHd Article",
		Attrs: map[string]any{
			"footnote_elements": []any{"paragraph", "equation", "citation", "cross_reference"},
			"footnote_marks":    []any{"strong", "em", "link"},
			"papersize":         "A4",
			"papersizes":        []any{"A4"},
			"citationstyle":     "chicago-author-date-de",
			"citationstyles":    []any{"chicago-author-date-16th-edition", "chicago-author-date-de"},
			"language":          "de-DE",
			"languages":         []any{"en-AU", "en-CA", "en-NZ", "en-ZA", "en-GB", "en-US", "de-DE", "de-AU", "de-CH"},
			"bibliography_header": map[string]any{
				"de-DE": "Bibliographie",
				"de-AU": "Bibliographie",
				"de-CH": "Bibliographie",
			},
		},
		AbstractElements: []string{"paragraph"},
		AbstractMarks:    []string{},
		BodyElements: []string{
			"paragraph", "heading1", "heading2", "heading3", "figure",
			"ordered_list", "bullet_list", "equation", "citation",
			"cross_reference", "footnote", "table", "code_block",
		},
		BodyMarks: []string{"strong", "em", "link"},
	}
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil {
		if fc.Server.SessionTTLSeconds > 0 {
			cfg.Server.SessionTTLSeconds = fc.Server.SessionTTLSeconds
		}
		if fc.Server.AdminTokenHash != "" {
			cfg.Server.AdminTokenHash = fc.Server.AdminTokenHash
		}
		if fc.Server.LoginRatePerMinute > 0 {
			cfg.Server.LoginRatePerMinute = fc.Server.LoginRatePerMinute
		}
		if fc.Server.RefreshRatePerMinute > 0 {
			cfg.Server.RefreshRatePerMinute = fc.Server.RefreshRatePerMinute
		}
		if fc.Server.TLSCertFile != "" {
			cfg.Server.TLSCertFile = fc.Server.TLSCertFile
		}
		if fc.Server.TLSKeyFile != "" {
			cfg.Server.TLSKeyFile = fc.Server.TLSKeyFile
		}
	}

	if fc.Registry != nil {
		if fc.Registry.BaseURL != "" {
			cfg.Registry.BaseURL = fc.Registry.BaseURL
		}
		if fc.Registry.Secret != "" {
			cfg.Registry.Secret = fc.Registry.Secret
		}
		if fc.Registry.UserAgent != "" {
			cfg.Registry.UserAgent = fc.Registry.UserAgent
		}
		if fc.Registry.NonceKey != "" {
			cfg.Registry.NonceKey = fc.Registry.NonceKey
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
		if fc.OutboundHTTP.MaxResponseBytes != 0 {
			cfg.OutboundHTTP.MaxResponseBytes = fc.OutboundHTTP.MaxResponseBytes
		}
		// InsecureSkipVerify is a bool, overlay always when section present
		cfg.OutboundHTTP.InsecureSkipVerify = fc.OutboundHTTP.InsecureSkipVerify
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if fc.Store.DSN != "" {
			cfg.Store.DSN = fc.Store.DSN
		}
		if fc.Store.MaxOpenConns > 0 {
			cfg.Store.MaxOpenConns = fc.Store.MaxOpenConns
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

	if fc.Template != nil {
		if fc.Template.ImportID != "" {
			cfg.Template.ImportID = fc.Template.ImportID
		}
		if fc.Template.Title != "" {
			cfg.Template.Title = fc.Template.Title
		}
		// attrs merge over the defaults, like the template itself merges them
		for k, v := range fc.Template.Attrs {
			cfg.Template.Attrs[k] = v
		}
		if fc.Template.AbstractElements != nil {
			cfg.Template.AbstractElements = fc.Template.AbstractElements
		}
		if fc.Template.AbstractMarks != nil {
			cfg.Template.AbstractMarks = fc.Template.AbstractMarks
		}
		if fc.Template.BodyElements != nil {
			cfg.Template.BodyElements = fc.Template.BodyElements
		}
		if fc.Template.BodyMarks != nil {
			cfg.Template.BodyMarks = fc.Template.BodyMarks
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.AllowSensitive != nil {
			cfg.Logging.AllowSensitive = *fc.Logging.AllowSensitive
		}
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.RegistryBaseURL != nil && *f.RegistryBaseURL != "" {
		cfg.Registry.BaseURL = *f.RegistryBaseURL
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.StoreDataDir != nil && *f.StoreDataDir != "" {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if f.StoreDSN != nil && *f.StoreDSN != "" {
		cfg.Store.DSN = *f.StoreDSN
	}
	if f.CacheDriver != nil && *f.CacheDriver != "" {
		cfg.Cache.Driver = *f.CacheDriver
	}
	if f.SSRFMode != nil && *f.SSRFMode != "" {
		cfg.OutboundHTTP.SSRFMode = *f.SSRFMode
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.LoggingAllowSensitive != nil && *f.LoggingAllowSensitive != "" {
		cfg.Logging.AllowSensitive = *f.LoggingAllowSensitive == "true"
	}
}

func validate(cfg *Config) error {
	switch cfg.OutboundHTTP.SSRFMode {
	case "strict", "off":
	default:
		return fmt.Errorf("invalid outbound_http.ssrf_mode %q: must be one of strict, off", cfg.OutboundHTTP.SSRFMode)
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of sqlite, postgres", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, redis", cfg.Cache.Driver)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	if (cfg.Server.TLSCertFile == "") != (cfg.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}

	if cfg.Registry.BaseURL != "" {
		u, err := url.Parse(cfg.Registry.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid registry.base_url %q: %w", cfg.Registry.BaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid registry.base_url %q: scheme must be http or https", cfg.Registry.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid registry.base_url %q: missing host", cfg.Registry.BaseURL)
		}
		if cfg.Mode == string(ModeStrict) && u.Scheme != "https" {
			return fmt.Errorf("invalid registry.base_url %q: strict mode requires https", cfg.Registry.BaseURL)
		}
	}

	return nil
}

// RequireRegistry reports whether the registry section is complete enough
// to talk to the registry. Commands that never contact it skip this check.
func (c *Config) RequireRegistry() error {
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required")
	}
	if c.Registry.Secret == "" {
		return fmt.Errorf("registry.secret is required (or set %s)", SecretEnvVar)
	}
	return nil
}
