package database

import (
	"context"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	cfg := Config{
		Path:        filepath.Join(t.TempDir(), "nested", "dir", "test.db"),
		WALMode:     false,
		BusyTimeout: 1,
	}

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() with nested directory error = %v", err)
	}
	defer db.Close()
}

func TestCloseIdempotent(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCloseNilDB(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on zero-value DB error = %v, want nil", err)
	}
}

func TestPath(t *testing.T) {
	cfg := testConfig(t)
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if got := db.Path(); got != cfg.Path {
		t.Errorf("Path() = %q, want %q", got, cfg.Path)
	}
}

func TestHealthCheckCancelledContext(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context: expected error, got nil")
	}
}

func TestMigrateNoEmbeddedFiles(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	// With no registered MigrationsFS this is a no-op, not an error.
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260815_120000_device_state.up.sql", "20260815_120000", true, true},
		{"20260815_120000_device_state.down.sql", "20260815_120000", false, true},
		{"README.md", "", false, false},
		{"noversion.sql", "", false, false},
		{"20260815_120000_device_state.sql", "", false, false},
	}

	for _, tt := range tests {
		version, isUp, ok := parseMigrationFilename(tt.name)
		if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
		}
	}
}

func TestExtractMigrationName(t *testing.T) {
	got := extractMigrationName("20260815_120000_device_state.up.sql")
	if got != "device_state" {
		t.Errorf("extractMigrationName() = %q, want %q", got, "device_state")
	}
}
