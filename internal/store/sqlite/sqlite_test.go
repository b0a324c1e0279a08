package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MahdiBaghbani/confsync-go/internal/store"
	"github.com/MahdiBaghbani/confsync-go/internal/store/sqlite"
	"github.com/MahdiBaghbani/confsync-go/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(context.Background(), &store.DriverConfig{Driver: "sqlite", DataDir: dir}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Name() != "sqlite" {
		t.Errorf("expected driver name sqlite, got %q", s.Name())
	}

	testutil.RunStoreTests(t, s)

	if _, err := os.Stat(filepath.Join(dir, sqlite.FileName)); os.IsNotExist(err) {
		t.Errorf("%s not created", sqlite.FileName)
	}
}

func TestSQLiteDriverSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := &store.DriverConfig{Driver: "sqlite", DataDir: dir}

	s, err := store.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	testutil.MustCreateUser(t, s, 7, "restart")
	s.Close()

	s, err = store.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.GetUserByRegistryID(ctx, 7); err != nil {
		t.Errorf("expected user to survive restart: %v", err)
	}
}

func TestSQLiteDriverRequiresDataDir(t *testing.T) {
	if _, err := store.Open(context.Background(), &store.DriverConfig{Driver: "sqlite"}, nil); err == nil {
		t.Error("expected error without data_dir")
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := store.Open(context.Background(), &store.DriverConfig{Driver: "mongo"}, nil); err == nil {
		t.Error("expected error for unknown driver")
	}
}
