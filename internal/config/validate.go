package config

import (
	"fmt"

	"bwsandbox/internal/hostmatch"
)

// Validate runs the full cross-reference and syntax validation pass
// described by the configuration schema: host-group cycles and
// references, wildcard safety, filesystem-spec references from
// policies, and default-policy references from tools.
func Validate(cfg *Config) error {
	if err := ValidateHostGroupGraph(cfg.Network.Groups); err != nil {
		return err
	}
	for name, g := range cfg.Network.Groups {
		if err := validateWildcards(name, g.Hosts); err != nil {
			return err
		}
		if err := validateWildcards(name, g.HostsDeny); err != nil {
			return err
		}
	}
	for name, spec := range cfg.Filesystem.Configs {
		if _, err := ResolveFilesystemSpec(cfg.Filesystem.Configs, name); err != nil {
			return fmt.Errorf("filesystem.configs.%s: %w", name, err)
		}
		_ = spec
	}
	for name, p := range cfg.Policy.Policies {
		if p.Filesystem != "" {
			if _, ok := cfg.Filesystem.Configs[p.Filesystem]; !ok {
				return fmt.Errorf("policy.policies.%s: %w", name, &NotFoundError{Kind: "filesystem-spec", Name: p.Filesystem})
			}
		}
		for _, g := range p.Network.ResolvedAllowGroups() {
			if _, ok := cfg.Network.Groups[g]; !ok {
				return fmt.Errorf("policy.policies.%s.network.allow_groups: %w", name, &NotFoundError{Kind: "host-group", Name: g})
			}
		}
		for _, g := range p.Network.DenyGroups {
			if _, ok := cfg.Network.Groups[g]; !ok {
				return fmt.Errorf("policy.policies.%s.network.deny_groups: %w", name, &NotFoundError{Kind: "host-group", Name: g})
			}
		}
	}
	for name, t := range cfg.Tools {
		if t.DefaultPolicy != "" {
			if _, ok := cfg.Policy.Policies[t.DefaultPolicy]; !ok {
				return fmt.Errorf("tools.%s.default_policy: %w", name, &NotFoundError{Kind: "policy", Name: t.DefaultPolicy})
			}
		}
	}
	return nil
}

func validateWildcards(groupName string, patterns []string) error {
	for _, p := range patterns {
		if err := hostmatch.ValidatePattern(p); err != nil {
			return fmt.Errorf("network.groups.%s: %w", groupName, err)
		}
	}
	return nil
}
