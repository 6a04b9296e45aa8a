package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestStoreSaveLoadClear(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := now
	path := filepath.Join(t.TempDir(), "nested", "token.toml")

	store := New(path, func() time.Time { return clock })
	if err := store.Load(); err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if _, err := store.Require(); !errors.Is(err, ErrLoggedOut) {
		t.Fatalf("expected ErrLoggedOut, got %v", err)
	}

	if err := store.Save(" tok-1 ", now); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := store.AccessToken(); got != "tok-1" {
		t.Fatalf("AccessToken() = %q", got)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Fatalf("token file mode = %v, want 0600", info.Mode().Perm())
		}
	}

	reloaded := New(path, func() time.Time { return clock })
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, err := reloaded.Require(); err != nil || got != "tok-1" {
		t.Fatalf("Require() = %q, %v", got, err)
	}

	if err := reloaded.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if reloaded.AccessToken() != "" {
		t.Fatal("expected token cleared")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected token file removed, stat err %v", err)
	}
	if err := reloaded.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
}

func TestStoreExpiresAfterMaxAge(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := now
	path := filepath.Join(t.TempDir(), "token.toml")
	store := New(path, func() time.Time { return clock })
	if err := store.Save("tok", now); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	clock = now.Add(MaxAge - time.Minute)
	if store.AccessToken() != "tok" {
		t.Fatal("token should be valid before max age")
	}
	clock = now.Add(MaxAge)
	if store.AccessToken() != "" {
		t.Fatal("token should expire at max age")
	}

	expired := New(path, func() time.Time { return clock })
	if err := expired.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if expired.AccessToken() != "" {
		t.Fatal("expired file must load as logged out")
	}
}

func TestStoreIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.toml")
	if err := os.WriteFile(path, []byte("access_token = ["), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	store := New(path, nil)
	if err := store.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.AccessToken() != "" {
		t.Fatal("corrupt file must load as logged out")
	}
}

func TestStoreInMemory(t *testing.T) {
	store := New("", nil)
	if err := store.Save("tok", time.Now()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if store.AccessToken() != "tok" {
		t.Fatal("expected in-memory token")
	}
	if err := store.Save(" ", time.Now()); err == nil {
		t.Fatal("expected empty token error")
	}
}
