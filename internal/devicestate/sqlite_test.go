package devicestate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skybridge/skybridge-core/internal/infrastructure/database"
)

func testSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "state.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE dashboard_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}

	return NewSQLiteStore(db)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testSQLiteStore(t)

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Get(missing) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	if err := store.Set(ctx, "device_state_SN-A_card", `{"x":5}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok, err := store.Get(ctx, "device_state_SN-A_card")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v", ok, err)
	}
	if v != `{"x":5}` {
		t.Errorf("Get() = %q, want {\"x\":5}", v)
	}

	// Upsert replaces.
	if err := store.Set(ctx, "device_state_SN-A_card", `{"x":6}`); err != nil {
		t.Fatalf("Set(upsert) error = %v", err)
	}
	v, _, _ = store.Get(ctx, "device_state_SN-A_card")
	if v != `{"x":6}` {
		t.Errorf("Get() after upsert = %q, want {\"x\":6}", v)
	}
}

func TestSQLiteStoreKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	store := testSQLiteStore(t)

	_ = store.Set(ctx, "device_state_SN-A_card1", "{}")
	_ = store.Set(ctx, "device_state_SN-A_card2", "{}")
	_ = store.Set(ctx, "device_state_SN-B_card1", "{}")
	_ = store.Set(ctx, "current_device_sn", `"SN-A"`)

	keys, err := store.Keys(ctx, "device_state_SN-A_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 SN-A keys", keys)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := testSQLiteStore(t)

	_ = store.Set(ctx, "k", "v")
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("key survived Delete")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}
