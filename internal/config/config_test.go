package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigParsesAndValidates(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("built-in defaults failed validation: %v", err)
	}
	if _, ok := cfg.Policy.Policies["open"]; !ok {
		t.Error("expected built-in 'open' policy")
	}
	if _, ok := cfg.Policy.Policies["lockdown"]; !ok {
		t.Error("expected built-in 'lockdown' policy")
	}
}

func TestLoadFromRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("unknown_top_level = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadConfigMergesProjectConfigWhenTrusted(t *testing.T) {
	projectDir := t.TempDir()
	projectCfgPath := filepath.Join(projectDir, ProjectConfigFileName)
	content := `
[policy.policies.custom]
description = "project-defined"
[policy.policies.custom.network]
network = "disabled"
`
	if err := os.WriteFile(projectCfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	trustStorePath := filepath.Join(t.TempDir(), "trusted.toml")
	store, err := LoadTrustStore(trustStorePath)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("BW_CLAUDE_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.toml"))

	cfg, err := LoadConfig(LoadOptions{
		ProjectDir: projectDir,
		TrustStore: store,
		OnUntrustedProjectConfig: func(content string, changed bool) (bool, error) {
			return true, nil
		},
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, ok := cfg.Policy.Policies["custom"]; !ok {
		t.Fatal("expected project policy 'custom' to be merged in")
	}
}

func TestLoadConfigSkipsUntrustedProjectConfig(t *testing.T) {
	projectDir := t.TempDir()
	projectCfgPath := filepath.Join(projectDir, ProjectConfigFileName)
	content := "[policy.policies.custom]\n[policy.policies.custom.network]\nnetwork = \"open\"\n"
	if err := os.WriteFile(projectCfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BW_CLAUDE_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.toml"))

	cfg, err := LoadConfig(LoadOptions{
		ProjectDir: projectDir,
		TrustStore: &TrustStore{},
		OnUntrustedProjectConfig: func(content string, changed bool) (bool, error) {
			return false, nil
		},
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, ok := cfg.Policy.Policies["custom"]; ok {
		t.Fatal("did not expect untrusted project policy to be merged in")
	}
}

func TestFindProjectConfigWalksUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(root, "a", ProjectConfigFileName)
	if err := os.WriteFile(cfgPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	found, ok := findProjectConfig(nested)
	if !ok {
		t.Fatal("expected to find project config walking upward")
	}
	if found != cfgPath {
		t.Errorf("found %q, want %q", found, cfgPath)
	}
}
