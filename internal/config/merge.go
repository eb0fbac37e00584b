package config

// Merge folds override on top of base and returns a new Config.
// Unlike a deep-merge, every map-shaped section (network.groups,
// filesystem.configs, policy.policies, tools) replaces the base's
// entry for a given key wholesale when the override defines that key:
// a user overriding policy.policies.lockdown gets exactly the override's
// Policy, never a field-by-field blend with the built-in lockdown. The
// common section, similarly, is replaced in its entirety when the
// override sets any part of it. This keeps override semantics legible —
// "what did I write" is "what you get" — at the cost of requiring a
// full redefinition when a user wants to tweak one field of a built-in
// entry.
func Merge(base, override *Config) *Config {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &Config{
		Common:     mergeCommon(base.Common, override.Common),
		Network:    NetworkSection{Groups: mergeHostGroups(base.Network.Groups, override.Network.Groups)},
		Filesystem: FilesystemSection{Configs: mergeFilesystemSpecs(base.Filesystem.Configs, override.Filesystem.Configs)},
		Policy:     PolicySection{Policies: mergePolicies(base.Policy.Policies, override.Policy.Policies)},
		Tools:      mergeTools(base.Tools, override.Tools),
		Logging:    mergeLogging(base.Logging, override.Logging),
	}
	return merged
}

// isZeroCommon reports whether an override common section was left
// entirely unset, in which case the base is kept rather than replaced.
func isZeroCommon(c CommonConfig) bool {
	return c.ConfigVersion == 0 && !c.Verbose && c.Proxy == (ProxyCommon{})
}

func mergeCommon(base, override CommonConfig) CommonConfig {
	if isZeroCommon(override) {
		return base
	}
	return override
}

func mergeHostGroups(base, override map[string]HostGroup) map[string]HostGroup {
	out := make(map[string]HostGroup, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeFilesystemSpecs(base, override map[string]FilesystemSpec) map[string]FilesystemSpec {
	out := make(map[string]FilesystemSpec, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergePolicies(base, override map[string]Policy) map[string]Policy {
	out := make(map[string]Policy, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeTools(base, override map[string]ToolConfig) map[string]ToolConfig {
	out := make(map[string]ToolConfig, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeLogging(base, override LoggingConfig) LoggingConfig {
	if override.Receivers == nil && override.Attributes == nil {
		return base
	}
	return override
}
