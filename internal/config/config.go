// Package config (config.go) implements file discovery and the final
// loaded-config assembly: built-in defaults, the user config, an
// upward-discovered project config, and an optional explicit path,
// folded left-to-right with Merge and validated once at the end.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProjectConfigFileName is the name searched for walking up from the
// current working directory.
const ProjectConfigFileName = ".bwconfig.toml"

// configDirName is the directory name under $XDG_CONFIG_HOME /
// $HOME/.config holding this tool's own configuration (distinct from
// per-project .bwconfig.toml files), per spec.md's $HOME/.config/
// bw-claude/config.toml.
const configDirName = "bw-claude"

// configDir returns the directory holding this tool's own
// configuration: $XDG_CONFIG_HOME/bw-claude, or $HOME/.config/bw-claude.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", configDirName)
	}
	return filepath.Join(home, ".config", configDirName)
}

// UserConfigPath resolves the user config file location, honoring
// $BW_CLAUDE_CONFIG first.
func UserConfigPath() string {
	if p := os.Getenv("BW_CLAUDE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "config.toml")
}

// LoadOptions customizes how project-local config is handled.
type LoadOptions struct {
	// ProjectDir is the directory to search upward from for
	// .bwconfig.toml. Defaults to the current working directory.
	ProjectDir string
	// ExplicitPath, if set, is loaded with the highest precedence and
	// bypasses the trust store entirely.
	ExplicitPath string
	// SkipProjectConfig disables the upward .bwconfig.toml search.
	SkipProjectConfig bool
	// TrustStore is used to gate an untrusted project config. If nil,
	// a fresh store is loaded from TrustStorePath().
	TrustStore *TrustStore
	// OnUntrustedProjectConfig is invoked when a project config is
	// found but not yet trusted (or its hash changed). It should
	// return true to trust and proceed, false to skip it for this
	// run. Defaults to PromptTrustStdio when nil.
	OnUntrustedProjectConfig func(content string, changed bool) (bool, error)
}

// LoadFrom decodes a single TOML file, rejecting unknown fields. It
// does not run Validate: cross-references are checked once, by
// LoadConfig, after every layer is merged. Used directly by tests and
// by the --proxy-config path; LoadConfig is the full layered entry
// point most callers want.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config %s: unknown field %q", path, undecoded[0].String())
	}
	return &cfg, nil
}

// LoadConfig performs the full search-and-merge described by the
// configuration subsystem: built-in defaults, then the user config (if
// present), then a trusted project config (if present and not
// skipped), then an explicit path (if given) — each folded on top of
// the last with Merge, then validated once as a whole.
func LoadConfig(opts LoadOptions) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("builtin defaults: %w", err)
	}

	if userPath := UserConfigPath(); userPath != "" {
		if _, statErr := os.Stat(userPath); statErr == nil {
			userCfg, err := LoadFrom(userPath)
			if err != nil {
				return nil, err
			}
			cfg = Merge(cfg, userCfg)
		}
	}

	if !opts.SkipProjectConfig {
		projectDir := opts.ProjectDir
		if projectDir == "" {
			projectDir, err = os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("determine project dir: %w", err)
			}
		}
		projectCfg, err := loadTrustedProjectConfig(projectDir, opts)
		if err != nil {
			return nil, err
		}
		if projectCfg != nil {
			cfg = Merge(cfg, projectCfg)
		}
	}

	if opts.ExplicitPath != "" {
		explicitCfg, err := LoadFrom(opts.ExplicitPath)
		if err != nil {
			return nil, err
		}
		cfg = Merge(cfg, explicitCfg)
	}

	if cfg.Common.ConfigVersion > CurrentConfigVersion {
		fmt.Fprintf(os.Stderr, "warning: config schema version %d is newer than this build supports (%d)\n",
			cfg.Common.ConfigVersion, CurrentConfigVersion)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findProjectConfig walks upward from dir looking for
// ProjectConfigFileName, stopping at the filesystem root.
func findProjectConfig(dir string) (string, bool) {
	for {
		candidate := filepath.Join(dir, ProjectConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// loadTrustedProjectConfig implements §4.3.1: find, hash, gate on the
// trust store (or a re-prompt on hash change), and only then parse.
func loadTrustedProjectConfig(projectDir string, opts LoadOptions) (*Config, error) {
	path, found := findProjectConfig(projectDir)
	if !found {
		return nil, nil
	}

	store := opts.TrustStore
	if store == nil {
		var err error
		store, err = LoadTrustStore(TrustStorePath())
		if err != nil {
			return nil, err
		}
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash project config %s: %w", path, err)
	}

	if !store.IsTrusted(path, hash) {
		existing := store.GetTrusted(path)
		changed := existing != nil

		onUntrusted := opts.OnUntrustedProjectConfig
		if onUntrusted == nil {
			onUntrusted = PromptTrustStdio
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read project config %s: %w", path, err)
		}

		trusted, err := onUntrusted(string(data), changed)
		if err != nil {
			return nil, err
		}
		if !trusted {
			return nil, nil
		}

		store.AddTrust(path, hash)
		if store.Path() != "" {
			if err := store.Save(); err != nil {
				return nil, fmt.Errorf("save trust store: %w", err)
			}
		}
	}

	return LoadFrom(path)
}
