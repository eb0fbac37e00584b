package sandbox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"bwsandbox/internal/config"
)

// SandboxBaseDir is the directory under ~/.local/share used to stage
// per-project sandbox state (the filter-daemon socket dir). The per-run
// /tmp export dir lives under os.TempDir() instead.
const SandboxBaseDir = "bw-sandbox"

// Shell represents a supported interactive shell.
type Shell string

const (
	ShellFish Shell = "fish"
	ShellBash Shell = "bash"
	ShellZsh  Shell = "zsh"
)

// Config carries everything the Builder needs to assemble one bwrap
// invocation: the resolved policy, filesystem spec, and host paths.
type Config struct {
	HomeDir     string
	ProjectDir  string
	ProjectName string
	SandboxBase string // ~/.local/share/bw-sandbox
	SandboxRoot string // ~/.local/share/bw-sandbox/<project>
	XDGRuntime  string
	Shell       Shell
	ShellPath   string

	// TmpExportDir is a freshly created host-side directory
	// (/tmp/bw-<tool>-<8-hex>) bound read-write as the guest's /tmp, so
	// anything the sandboxed tool writes there survives after the
	// sandbox exits instead of vanishing with an ephemeral tmpfs.
	// Removed unconditionally by the launcher on exit.
	TmpExportDir string

	// FullHomeAccess bypasses the resolved filesystem spec's home
	// dir/file allowlist and binds $HOME in its entirety, read-write.
	FullHomeAccess bool

	// ExtraROPaths/ExtraRWPaths come from --allow-ro/--allow-rw flags,
	// appended after the resolved filesystem spec's own paths.
	ExtraROPaths []string
	ExtraRWPaths []string

	// Filesystem is the fully resolved (extends-chain flattened)
	// filesystem spec backing this sandbox.
	Filesystem config.FilesystemSpec

	// Filtered is true when network mode is "proxy": the relay and
	// filter-daemon socket are bind-mounted into the sandbox and the
	// target command is wrapped to run through the relay.
	Filtered bool

	// RelayPath is the host path of the bw-relay binary, bind-mounted
	// into the sandbox at /bw-relay when Filtered is true.
	RelayPath string

	// SocketPath is the host path of the filter daemon's Unix socket,
	// bind-mounted into the sandbox at /proxy.sock when Filtered is
	// true.
	SocketPath string

	// ShareNetwork controls --share-net vs --unshare-net. Proxy mode
	// always isolates the network namespace (the relay is reached over
	// a bind-mounted socket, not TCP to the host), so ShareNetwork is
	// only meaningful when Filtered is false.
	ShareNetwork bool

	PassEnv []string
}

// Options customizes sandbox configuration construction.
type Options struct {
	BasePath string
}

func NewConfig(toolName string, opts *Options) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	projectDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(homeDir, ".local", "share", SandboxBaseDir)
	if opts != nil && opts.BasePath != "" {
		baseDir = opts.BasePath
	}

	projectName := GenerateSandboxName(projectDir)
	sandboxRoot := filepath.Join(baseDir, projectName)

	xdgRuntime := os.Getenv("XDG_RUNTIME_DIR")
	if xdgRuntime == "" {
		xdgRuntime = fmt.Sprintf("/run/user/%d", os.Getuid())
	}

	shell, shellPath := DetectShell()

	token, err := randomHex(4)
	if err != nil {
		return nil, fmt.Errorf("generate tmp export dir name: %w", err)
	}
	tmpExportDir := filepath.Join(os.TempDir(), fmt.Sprintf("bw-%s-%s", toolName, token))

	return &Config{
		HomeDir:      homeDir,
		ProjectDir:   projectDir,
		ProjectName:  projectName,
		SandboxBase:  baseDir,
		SandboxRoot:  sandboxRoot,
		XDGRuntime:   xdgRuntime,
		Shell:        shell,
		ShellPath:    shellPath,
		TmpExportDir: tmpExportDir,
	}, nil
}

// randomHex returns a random hex string of 2*n characters.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func DetectShell() (Shell, string) {
	shellEnv := os.Getenv("SHELL")
	if shellEnv == "" {
		shellEnv = "/bin/bash"
	}

	shellName := filepath.Base(shellEnv)

	switch {
	case strings.Contains(shellName, "fish"):
		return ShellFish, shellEnv
	case strings.Contains(shellName, "zsh"):
		return ShellZsh, shellEnv
	default:
		if !strings.Contains(shellName, "bash") {
			return ShellBash, "/bin/bash"
		}
		return ShellBash, shellEnv
	}
}

var nonAlphanumericRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func SanitizeProjectName(name string) string {
	return nonAlphanumericRe.ReplaceAllString(name, "_")
}

// GenerateSandboxName derives a stable, collision-resistant name for a
// project directory: <basename>-<short-hash>.
func GenerateSandboxName(projectDir string) string {
	basename := SanitizeProjectName(filepath.Base(projectDir))
	hash := sha256.Sum256([]byte(projectDir))
	shortHash := hex.EncodeToString(hash[:])[:8]
	return basename + "-" + shortHash
}

// EnsureSandboxDirs creates the host-side scratch directories this
// sandbox invocation needs before bwrap starts: the socket dir
// (SandboxRoot) and the per-run /tmp export directory. bwrap itself
// provides the in-sandbox home dirs via --dir, so nothing under the
// guest's $HOME is created here.
func (c *Config) EnsureSandboxDirs() error {
	if err := os.MkdirAll(c.SandboxRoot, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.TmpExportDir, 0o700)
}

// RemoveTmpExportDir removes the host-side /tmp export directory
// created for this run. The launcher calls this unconditionally after
// the sandboxed command exits (success or failure), since nothing
// else on the host will ever clean it up.
func (c *Config) RemoveTmpExportDir() error {
	if c.TmpExportDir == "" {
		return nil
	}
	return os.RemoveAll(c.TmpExportDir)
}

// SandboxBasePath returns the base path for all sandboxes given a host
// home directory, without constructing a full Config.
func SandboxBasePath(homeDir string) string {
	return filepath.Join(homeDir, ".local", "share", SandboxBaseDir)
}
