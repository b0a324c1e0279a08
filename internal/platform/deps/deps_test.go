package deps_test

import (
	"context"
	"testing"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/config"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/deps"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DevConfig()
	cfg.Store.DataDir = t.TempDir()
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	d, err := deps.Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer d.Close()

	if d.Store.Name() != "sqlite" {
		t.Errorf("expected sqlite store, got %q", d.Store.Name())
	}
	tpl, err := d.Templates.Default(context.Background())
	if err != nil {
		t.Fatalf("Default template: %v", err)
	}
	if tpl.ImportID != cfg.Template.ImportID {
		t.Errorf("expected template %q, got %q", cfg.Template.ImportID, tpl.ImportID)
	}
	if d.Refresh != nil {
		t.Error("refresh service must only exist after WithRegistry")
	}
}

func TestWithRegistry(t *testing.T) {
	cfg := testConfig(t)
	d, err := deps.Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer d.Close()

	if err := d.WithRegistry(); err == nil {
		t.Fatal("expected an error without registry settings")
	}

	cfg.Registry.BaseURL = "https://registry.example/rest.php"
	cfg.Registry.Secret = "s"
	if err := d.WithRegistry(); err != nil {
		t.Fatalf("WithRegistry: %v", err)
	}
	if d.Registry == nil || d.Refresh == nil {
		t.Error("expected registry client and refresh service")
	}
}

func TestBuild_UnknownCacheDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "memcached"
	if _, err := deps.Build(context.Background(), cfg, nil); err == nil {
		t.Error("expected an error for an unknown cache driver")
	}
}

func TestTemplateSpec(t *testing.T) {
	spec := deps.TemplateSpec(config.DefaultTemplateConfig())
	if spec.ImportID != "standard-article" || len(spec.BodyElements) == 0 || spec.Attrs["papersize"] != "A4" {
		t.Errorf("unexpected spec %+v", spec)
	}
}
