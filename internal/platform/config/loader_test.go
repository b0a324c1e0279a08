package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"strict", "strict", ModeStrict, false},
		{"dev", "dev", ModeDev, false},
		{"empty defaults to strict", "", ModeStrict, false},
		{"uppercase", "STRICT", ModeStrict, false},
		{"whitespace", "  dev  ", ModeDev, false},
		{"invalid", "interop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(LoaderOptions{Getenv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "strict" {
		t.Errorf("expected mode strict, got %s", cfg.Mode)
	}
	if cfg.OutboundHTTP.SSRFMode != "strict" {
		t.Errorf("expected SSRF mode strict, got %s", cfg.OutboundHTTP.SSRFMode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite store, got %s", cfg.Store.Driver)
	}
	if cfg.Template.ImportID != "standard-article" {
		t.Errorf("expected template import id standard-article, got %s", cfg.Template.ImportID)
	}
	if cfg.Registry.UserAgent == "" {
		t.Error("expected a default user agent")
	}
}

func TestLoad_ModeFlag(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "dev", Getenv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.OutboundHTTP.SSRFMode != "off" {
		t.Errorf("expected SSRF mode off in dev, got %s", cfg.OutboundHTTP.SSRFMode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging in dev, got %s", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":8443"

[registry]
base_url = "https://registry.example.org/rest.php"
secret = "s3cret"

[store]
driver = "postgres"
dsn = "postgres://confsync@db/confsync"

[cache]
driver = "redis"

[cache.drivers.redis]
addr = "redis:6379"
db = 1

[template.attrs]
language = "en-US"

[logging]
allow_sensitive = true
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path, Getenv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":8443" {
		t.Errorf("expected listen :8443, got %s", cfg.ListenAddr)
	}
	if cfg.Registry.BaseURL != "https://registry.example.org/rest.php" {
		t.Errorf("unexpected base url %s", cfg.Registry.BaseURL)
	}
	if cfg.Registry.Secret != "s3cret" {
		t.Errorf("expected secret from file, got %q", cfg.Registry.Secret)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	redis, ok := cfg.Cache.Drivers["redis"].(map[string]any)
	if !ok {
		t.Fatalf("expected redis driver table, got %T", cfg.Cache.Drivers["redis"])
	}
	if redis["addr"] != "redis:6379" {
		t.Errorf("unexpected redis addr %v", redis["addr"])
	}
	if cfg.Template.Attrs["language"] != "en-US" {
		t.Errorf("expected language override, got %v", cfg.Template.Attrs["language"])
	}
	if cfg.Template.Attrs["papersize"] != "A4" {
		t.Errorf("expected default attrs to survive the merge, got %v", cfg.Template.Attrs["papersize"])
	}
	if !cfg.Logging.AllowSensitive {
		t.Error("expected allow_sensitive from file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9000"

[registry]
base_url = "https://from-toml.example.org/rest.php"
secret = "from-file"
`)

	baseURL := "https://from-flag.example.org/rest.php"
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		FlagOverrides: FlagOverrides{
			RegistryBaseURL: &baseURL,
		},
		Getenv: func(key string) string {
			if key == SecretEnvVar {
				return "from-env"
			}
			return ""
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Registry.BaseURL != baseURL {
		t.Errorf("expected base url from flag, got %s", cfg.Registry.BaseURL)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected listen from TOML :9000, got %s", cfg.ListenAddr)
	}
	if cfg.Registry.Secret != "from-env" {
		t.Errorf("expected secret from environment, got %q", cfg.Registry.Secret)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"store driver", "[store]\ndriver = \"mysql\"\n", "invalid store.driver"},
		{"postgres without dsn", "[store]\ndriver = \"postgres\"\n", "store.dsn is required"},
		{"cache driver", "[cache]\ndriver = \"memcached\"\n", "invalid cache.driver"},
		{"logging level", "[logging]\nlevel = \"verbose\"\n", "invalid logging.level"},
		{"ssrf mode", "[outbound_http]\nssrf_mode = \"lenient\"\n", "invalid outbound_http.ssrf_mode"},
		{"http in strict mode", "[registry]\nbase_url = \"http://registry.example.org\"\n", "strict mode requires https"},
		{"half tls", "[server]\ntls_cert_file = \"cert.pem\"\n", "must be set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoaderOptions{ConfigPath: writeConfig(t, tt.content), Getenv: noEnv})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.toml"), Getenv: noEnv})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRequireRegistry(t *testing.T) {
	cfg := StrictConfig()
	if err := cfg.RequireRegistry(); err == nil {
		t.Error("expected error without base url")
	}
	cfg.Registry.BaseURL = "https://registry.example.org"
	if err := cfg.RequireRegistry(); err == nil {
		t.Error("expected error without secret")
	}
	cfg.Registry.Secret = "x"
	if err := cfg.RequireRegistry(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRedacted_HidesSecrets(t *testing.T) {
	cfg := StrictConfig()
	cfg.Registry.Secret = "top-secret"
	cfg.Store.DSN = "postgres://user:pw@db/confsync"
	cfg.Server.AdminTokenHash = "$2a$10$abcdef"

	out := cfg.Redacted()
	for _, secret := range []string{"top-secret", "user:pw", "$2a$10$abcdef"} {
		if strings.Contains(out, secret) {
			t.Errorf("redacted config leaks %q", secret)
		}
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redaction marker")
	}
}
