package kvstore

import (
	"context"
	"testing"
)

// newTestDB returns a *DB backed by an in-memory SQLite database.
// The database vanishes when the connection closes — no cleanup needed
// beyond t.Cleanup closing the pool.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "involvex_user_account", `{"id":"abc"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, ok, err := db.Get(ctx, "involvex_user_account")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if value != `{"id":"abc"}` {
		t.Errorf("Get() value = %q, want %q", value, `{"id":"abc"}`)
	}
}

func TestGet_MissingKey(t *testing.T) {
	db := newTestDB(t)

	value, ok, err := db.Get(context.Background(), "no_such_key")
	if err != nil {
		t.Fatalf("Get() on missing key should not error, got %v", err)
	}
	if ok {
		t.Error("Get() ok = true for missing key, want false")
	}
	if value != "" {
		t.Errorf("Get() value = %q for missing key, want empty", value)
	}
}

func TestSet_Overwrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "k", "first"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := db.Set(ctx, "k", "second"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	value, ok, err := db.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = (%q, %v, %v)", value, ok, err)
	}
	if value != "second" {
		t.Errorf("value after overwrite = %q, want %q", value, "second")
	}
}

func TestRemove(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := db.Set(ctx, k, k); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	if err := db.Remove(ctx, "a", "b"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if _, ok, _ := db.Get(ctx, k); ok {
			t.Errorf("key %q still present after Remove", k)
		}
	}
	if _, ok, _ := db.Get(ctx, "c"); !ok {
		t.Error("key \"c\" should have survived Remove")
	}
}

func TestRemove_MissingKeysIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Removing keys that never existed is not an error.
	if err := db.Remove(ctx, "ghost1", "ghost2"); err != nil {
		t.Errorf("Remove() of missing keys error = %v, want nil", err)
	}
	// And neither is removing nothing.
	if err := db.Remove(ctx); err != nil {
		t.Errorf("Remove() with no keys error = %v, want nil", err)
	}
}
