package attachment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLocalStore_PutAndGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "2024/01/report.zip", []byte("zip-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "2024/01/report.zip")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "zip-bytes" {
		t.Errorf("Get = %q, want %q", got, "zip-bytes")
	}
}

func TestLocalStore_GetNotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	_, err = store.Get(context.Background(), "missing.zip")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "base"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.zip"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../secret.zip", "", "a/../../secret.zip"} {
		if _, err := store.Get(context.Background(), key); err == nil {
			t.Errorf("Get(%q) err = nil, want rejection", key)
		}
	}
}

func TestLocalStore_PutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if err := store.Put(context.Background(), "a.zip", []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.zip" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want [a.zip]", names)
	}
}

func TestNew_DefaultsToLocal(t *testing.T) {
	store, err := New(context.Background(), Config{Type: "", Path: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("New with empty type = %T, want *LocalStore", store)
	}
}
