package recent

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSQLiteStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Get(ctx, Key); err != nil || ok {
		t.Fatalf("Get() on empty = ok %v, err %v; want miss", ok, err)
	}

	if err := s.Set(ctx, Key, []string{"Paris"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, Key, []string{"Tokyo", "Paris"}); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, ok, err := s.Get(ctx, Key)
	if err != nil || !ok {
		t.Fatalf("Get() ok = %v, err = %v", ok, err)
	}
	if !reflect.DeepEqual(got, []string{"Tokyo", "Paris"}) {
		t.Errorf("Get() = %v, want [Tokyo Paris]", got)
	}
}

// TestSQLiteStore_PersistsAcrossReopen verifies the list survives closing
// and reopening the same database file.
func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dashboard.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := Save(ctx, s, []string{"Paris", "Tokyo"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	got, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Paris", "Tokyo"}) {
		t.Errorf("Load() after reopen = %v, want [Paris Tokyo]", got)
	}
}

func TestSQLiteStore_EmptyListRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, Key, nil); err != nil {
		t.Fatalf("Set(nil) error = %v", err)
	}
	got, ok, err := s.Get(ctx, Key)
	if err != nil || !ok {
		t.Fatalf("Get() ok = %v, err = %v", ok, err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Get() = %#v, want empty slice", got)
	}
}
