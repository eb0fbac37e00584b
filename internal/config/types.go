// Package config implements the TOML configuration schema, layered
// loading, merge, and resolution for bwsandbox: host-groups, filesystem
// specs, and named policies composed into a single Config document.
package config

// HostGroup is a named, reusable set of wildcard host patterns, with
// optional deny patterns and references to other groups.
type HostGroup struct {
	Description string   `toml:"description"`
	Hosts       []string `toml:"hosts"`
	HostsDeny   []string `toml:"hosts_deny"`
	Groups      []string `toml:"groups"`
}

// FilesystemSpec is a named recipe of mount points, optionally composed
// from other specs via Extends.
type FilesystemSpec struct {
	Description       string   `toml:"description"`
	Extends           []string `toml:"extends"`
	ROHomeDirs        []string `toml:"ro_home_dirs"`
	RWHomeDirs        []string `toml:"rw_home_dirs"`
	ROHomeFiles       []string `toml:"ro_home_files"`
	RWHomeFiles       []string `toml:"rw_home_files"`
	EssentialEtcFiles []string `toml:"essential_etc_files"`
	EssentialEtcDirs  []string `toml:"essential_etc_dirs"`
	SystemPaths       []string `toml:"system_paths"`
	ROPaths           []string `toml:"ro_paths"`
	RWPaths           []string `toml:"rw_paths"`
}

// NetworkMode selects how a Policy treats the sandbox's network
// namespace.
type NetworkMode string

const (
	NetworkOpen     NetworkMode = "open"
	NetworkDisabled NetworkMode = "disabled"
	NetworkProxy    NetworkMode = "proxy"
)

// DefaultAction is the fallback decision when no host-group rule
// matches, used only under NetworkProxy.
type DefaultAction string

const (
	DefaultAllow DefaultAction = "allow"
	DefaultDeny  DefaultAction = "deny"
)

// NetworkPolicy describes the network treatment of a Policy.
type NetworkPolicy struct {
	Network     NetworkMode   `toml:"network"`
	Default     DefaultAction `toml:"default"`
	AllowGroups []string      `toml:"allow_groups"`
	DenyGroups  []string      `toml:"deny_groups"`
	// Groups is a legacy alias for AllowGroups, honored only when
	// AllowGroups is empty.
	Groups []string `toml:"groups"`
}

// ResolvedAllowGroups returns AllowGroups, falling back to the legacy
// Groups alias when AllowGroups is empty.
func (n NetworkPolicy) ResolvedAllowGroups() []string {
	if len(n.AllowGroups) > 0 {
		return n.AllowGroups
	}
	return n.Groups
}

// Policy names a network treatment plus an optional filesystem spec.
type Policy struct {
	Description string        `toml:"description"`
	Network     NetworkPolicy `toml:"network"`
	Filesystem  string        `toml:"filesystem"`
}

// ToolConfig is the per-tool-frontend section of [tools.<name>].
type ToolConfig struct {
	Enabled       bool   `toml:"enabled"`
	ProxyMode     string `toml:"proxy_mode"`
	DefaultPolicy string `toml:"default_policy"`
}

// ProxyCommon holds shared proxy defaults.
type ProxyCommon struct {
	DefaultMode    string `toml:"default_mode"`
	SocketDir      string `toml:"socket_dir"`
	LearningOutput string `toml:"learning_output"`
}

// CommonConfig is the [common] section.
type CommonConfig struct {
	ConfigVersion int         `toml:"config_version"`
	Verbose       bool        `toml:"verbose"`
	Proxy         ProxyCommon `toml:"proxy"`
}

// ReceiverConfig describes one remote logging sink, shared by the
// logging dispatcher regardless of which component is emitting.
type ReceiverConfig struct {
	Type          string            `toml:"type"`
	Address       string            `toml:"address"`
	Endpoint      string            `toml:"endpoint"`
	Protocol      string            `toml:"protocol"`
	Facility      string            `toml:"facility"`
	Tag           string            `toml:"tag"`
	Headers       map[string]string `toml:"headers"`
	BatchSize     int               `toml:"batch_size"`
	FlushInterval string            `toml:"flush_interval"`
	Insecure      bool              `toml:"insecure"`
}

// LoggingConfig is the [logging] section.
type LoggingConfig struct {
	Receivers  []ReceiverConfig  `toml:"receivers"`
	Attributes map[string]string `toml:"attributes"`
}

// NetworkSection is the top-level [network] table.
type NetworkSection struct {
	Groups map[string]HostGroup `toml:"groups"`
}

// FilesystemSection is the top-level [filesystem] table.
type FilesystemSection struct {
	Configs map[string]FilesystemSpec `toml:"configs"`
}

// PolicySection is the top-level [policy] table.
type PolicySection struct {
	Policies map[string]Policy `toml:"policies"`
}

// Config is the fully merged, top-level document.
type Config struct {
	Common     CommonConfig             `toml:"common"`
	Network    NetworkSection           `toml:"network"`
	Filesystem FilesystemSection        `toml:"filesystem"`
	Policy     PolicySection            `toml:"policy"`
	Tools      map[string]ToolConfig    `toml:"tools"`
	Logging    LoggingConfig            `toml:"logging"`
}

// CurrentConfigVersion is the schema version written by this build.
const CurrentConfigVersion = 1
