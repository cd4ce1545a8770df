package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "examforge.db"))
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected missing key to report ok=false")
	}

	if err := s.Set(ctx, "k", `{"a":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != `{"a":1}` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	// Upsert overwrites.
	if err := s.Set(ctx, "k", "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _, _ = s.Get(ctx, "k")
	if v != "second" {
		t.Errorf("expected overwritten value, got %q", v)
	}

	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key still present after Remove")
	}

	// Removing an absent key is fine.
	if err := s.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove absent key: %v", err)
	}
}

func TestSQLStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Set(ctx, KeyCompletedExamID, `"exam-1"`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(ctx, KeyCompletedExamID)
	if err != nil || !ok || v != `"exam-1"` {
		t.Errorf("after reopen Get = %q, %v, %v", v, ok, err)
	}
}

func TestNewSQLUnsupportedDriver(t *testing.T) {
	if _, err := NewSQL("oracle", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := m.Get(ctx, "a"); !ok || v != "1" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	m.Remove(ctx, "a")
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Error("expected key removed")
	}
}
