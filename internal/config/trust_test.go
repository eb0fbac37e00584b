package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTrustStoreAddAndIsTrusted(t *testing.T) {
	store := &TrustStore{}
	if store.IsTrusted("/some/path", "abc") {
		t.Fatal("expected not trusted before AddTrust")
	}
	store.AddTrust("/some/path", "abc")
	if !store.IsTrusted("/some/path", "abc") {
		t.Fatal("expected trusted after AddTrust")
	}
	if store.IsTrusted("/some/path", "different-hash") {
		t.Fatal("a different hash for the same path should not be trusted")
	}
}

func TestTrustStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trusted.toml")
	store := &TrustStore{path: path}
	store.AddTrust("/project/.bwconfig.toml", "deadbeef")

	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadTrustStore(path)
	if err != nil {
		t.Fatalf("LoadTrustStore: %v", err)
	}
	if !loaded.IsTrusted("/project/.bwconfig.toml", "deadbeef") {
		t.Fatal("expected round-tripped trust to survive")
	}
}

func TestTrustStoreRemoveTrust(t *testing.T) {
	store := &TrustStore{}
	store.AddTrust("/p", "h")
	if !store.RemoveTrust("/p") {
		t.Fatal("expected RemoveTrust to report a removal")
	}
	if store.IsTrusted("/p", "h") {
		t.Fatal("expected trust to be gone after removal")
	}
	if store.RemoveTrust("/p") {
		t.Fatal("expected second RemoveTrust to report no removal")
	}
}

func TestHashFileIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.toml")
	content := []byte("[common]\nconfig_version = 1\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("expected stable hash, got %q then %q", h1, h2)
	}
}
