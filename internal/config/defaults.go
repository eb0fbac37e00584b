package config

import (
	_ "embed"

	"github.com/BurntSushi/toml"
)

// builtinDefaultsTOML is the base layer of every configuration: a
// minimal set of host-groups, filesystem-specs, and policies that make
// the tool usable with no user configuration at all. User and project
// configs are folded on top of this with Merge.
//
//go:embed default.toml
var builtinDefaultsTOML string

// DefaultConfig parses and returns the embedded built-in configuration.
// It is a programming error for this to fail to parse; a failure here
// means the embedded default.toml itself is malformed.
func DefaultConfig() (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(builtinDefaultsTOML, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
