// Package sandbox assembles the bwrap(1) argument vector for one
// sandboxed invocation (C8): namespaces, filesystem bindings drawn
// from a resolved config.FilesystemSpec, and — in filtered network
// mode — the relay binary and filter-daemon socket bindings that let
// the guest reach the network only through the policy engine.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// MountConflictError reports an attempt to bind two sources onto the
// same sandbox destination, or to bind a destination that would
// shadow one already mounted beneath it. It is recovered out of a
// panic at the top of Build rather than propagated as a raw panic,
// since mount ordering bugs are a builder programming error the
// launcher should report and exit on, not crash on.
type MountConflictError struct {
	Message string
}

func (e *MountConflictError) Error() string { return e.Message }

// getCaller returns "Func" for the function skip frames above this
// call, stripped of its package prefix, for use in mount-conflict
// diagnostics.
func getCaller(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return name
}

type mountInfo struct {
	dest     string
	source   string
	readOnly bool
	caller   string
}

// Builder assembles bwrap arguments fluently, tracking every bind
// destination so that conflicting or shadowing mounts are caught
// before bwrap ever runs.
type Builder struct {
	cfg    *Config
	args   []string
	mounts []mountInfo
	err    error
}

func NewBuilder(cfg *Config) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) trackMount(dest, source string, readOnly bool, caller string) {
	dest = filepath.Clean(dest)
	for _, existing := range b.mounts {
		existingDest := filepath.Clean(existing.dest)
		if dest == existingDest {
			panic(fmt.Sprintf(
				"builder: ambiguous mount - %s already mounted by %s, cannot mount again by %s",
				dest, existing.caller, caller))
		}
		if isParentPath(dest, existingDest) {
			panic(fmt.Sprintf(
				"builder: mount ordering error - mounting parent %s (by %s) after child %s (by %s) would shadow it",
				dest, caller, existingDest, existing.caller))
		}
	}
	b.mounts = append(b.mounts, mountInfo{dest: dest, source: source, readOnly: readOnly, caller: caller})
}

// MountRecord is the public view of one tracked bind, for diagnostics
// (--verbose, --info) that want to show the resolved mount table
// without reaching into builder internals.
type MountRecord struct {
	Destination string
	Source      string
	ReadOnly    bool
	AddedBy     string
}

// Mounts returns every bind tracked so far, in the order Build
// assembled them.
func (b *Builder) Mounts() []MountRecord {
	records := make([]MountRecord, len(b.mounts))
	for i, m := range b.mounts {
		records[i] = MountRecord{Destination: m.dest, Source: m.source, ReadOnly: m.readOnly, AddedBy: m.caller}
	}
	return records
}

func isParentPath(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if parent == child {
		return false
	}
	if parent == "/" {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

func (b *Builder) add(args ...string) {
	b.args = append(b.args, args...)
}

func (b *Builder) ClearEnv() *Builder    { b.add("--clearenv"); return b }
func (b *Builder) UnshareUser() *Builder { b.add("--unshare-user"); return b }
func (b *Builder) UnsharePID() *Builder  { b.add("--unshare-pid"); return b }
func (b *Builder) UnshareIPC() *Builder  { b.add("--unshare-ipc"); return b }
func (b *Builder) DieWithParent() *Builder {
	b.add("--die-with-parent")
	return b
}
func (b *Builder) ShareNet() *Builder   { b.add("--share-net"); return b }
func (b *Builder) UnshareNet() *Builder { b.add("--unshare-net"); return b }

func (b *Builder) Proc(dest string) *Builder   { b.add("--proc", dest); return b }
func (b *Builder) Tmpfs(dest string) *Builder  { b.add("--tmpfs", dest); return b }
func (b *Builder) Dir(path string) *Builder    { b.add("--dir", path); return b }
func (b *Builder) Chdir(path string) *Builder  { b.add("--chdir", path); return b }

// DevBind binds the host's device nodes at dest instead of mounting a
// fresh, minimal devtmpfs, so host device passthrough (GPU, TTY, etc.)
// stays available inside the sandbox.
func (b *Builder) DevBind(src, dest string) *Builder {
	b.trackMount(dest, src, false, getCaller(2))
	b.add("--dev-bind", src, dest)
	return b
}

func (b *Builder) ROBind(src, dest string) *Builder {
	b.trackMount(dest, src, true, getCaller(2))
	b.add("--ro-bind", src, dest)
	return b
}

func (b *Builder) ROBindIfExists(src, dest string) *Builder {
	if pathExists(src) {
		b.trackMount(dest, src, true, getCaller(2))
		b.add("--ro-bind", src, dest)
	}
	return b
}

func (b *Builder) Bind(src, dest string) *Builder {
	b.trackMount(dest, src, false, getCaller(2))
	b.add("--bind", src, dest)
	return b
}

func (b *Builder) BindIfExists(src, dest string) *Builder {
	if pathExists(src) {
		b.trackMount(dest, src, false, getCaller(2))
		b.add("--bind", src, dest)
	}
	return b
}

func (b *Builder) Symlink(target, linkPath string) *Builder {
	b.add("--symlink", target, linkPath)
	return b
}

// RemountRO remounts an already-bound destination read-only. Used
// after /etc is assembled from individually writable tmpfs + binds, so
// the final view is read-only even though each bind step needs the
// tmpfs underneath to still be writable while it's being populated.
func (b *Builder) RemountRO(dest string) *Builder {
	b.add("--remount-ro", dest)
	return b
}

func (b *Builder) SetEnv(name, value string) *Builder {
	b.add("--setenv", name, value)
	return b
}

func (b *Builder) SetEnvIfSet(name string) *Builder {
	if value := os.Getenv(name); value != "" {
		b.SetEnv(name, value)
	}
	return b
}

// AddBaseArgs adds the namespace flags common to every sandbox, plus
// the uid/gid mapping that keeps the guest from running as root.
func (b *Builder) AddBaseArgs() *Builder {
	b.ClearEnv().
		UnshareUser().
		UnsharePID().
		UnshareIPC().
		DieWithParent()

	if b.cfg.Filtered || !b.cfg.ShareNetwork {
		b.UnshareNet()
	} else {
		b.ShareNet()
	}

	uid := os.Getuid()
	gid := os.Getgid()
	b.add("--uid", fmt.Sprintf("%d", uid))
	b.add("--gid", fmt.Sprintf("%d", gid))

	return b
}

// AddTmp binds the host-side per-run export directory read-write at
// /tmp, so files the guest writes there survive after the sandbox
// exits instead of vanishing with an ephemeral tmpfs.
func (b *Builder) AddTmp() *Builder {
	b.Bind(b.cfg.TmpExportDir, "/tmp")
	return b
}

// AddEtc assembles /etc from the resolved filesystem spec's essential
// files and directories over a fresh tmpfs, so guests see only the
// subset of host configuration the spec names. Each entry is
// canonicalized with filepath.EvalSymlinks before binding: many
// distros make /etc/resolv.conf (and friends) a symlink into /run or
// /usr, and binding the symlink path itself rather than its target
// would either dangle or resolve against the guest's own (empty)
// /run. The whole assembly is remounted read-only at the end, since
// every bind above needs the tmpfs underneath still writable while
// it's being populated.
func (b *Builder) AddEtc() *Builder {
	b.Tmpfs("/etc")
	for _, f := range b.cfg.Filesystem.EssentialEtcFiles {
		b.bindEtcEntry("/etc/" + f)
	}
	for _, d := range b.cfg.Filesystem.EssentialEtcDirs {
		b.bindEtcEntry("/etc/" + d)
	}
	b.RemountRO("/etc")
	return b
}

// bindEtcEntry resolves symlinks in p before binding, so the guest
// sees real file content rather than a dangling or misdirected link.
// Entries that don't exist on the host are skipped, matching the
// ro-bind-try semantics the rest of the builder uses.
func (b *Builder) bindEtcEntry(p string) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return
	}
	b.ROBindIfExists(resolved, p)
}

// AddSystemPaths binds /usr wholesale read-only. Each classic
// top-level path (/lib, /lib64, /bin, /sbin) is recreated as a symlink
// into /usr when it is a symlink on the host, and bound read-only as a
// directory otherwise. The spec's system_paths are then bound
// read-only; entries naming one of these five paths are skipped, since
// they are already handled.
func (b *Builder) AddSystemPaths() *Builder {
	b.ROBindIfExists("/usr", "/usr")
	b.addLibBinding("/lib", "usr/lib")
	b.addLibBinding("/lib64", "usr/lib64")
	b.addLibBinding("/bin", "usr/bin")
	b.addLibBinding("/sbin", "usr/sbin")

	for _, p := range b.cfg.Filesystem.SystemPaths {
		switch filepath.Clean(p) {
		case "/usr", "/lib", "/lib64", "/bin", "/sbin":
			continue
		}
		b.ROBindIfExists(p, p)
	}

	return b
}

func (b *Builder) addLibBinding(path, symlinkTarget string) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		b.Symlink(symlinkTarget, path)
	} else if info.IsDir() {
		b.ROBindIfExists(path, path)
	}
}

// AddHome binds $HOME into the sandbox. With FullHomeAccess the
// entire host home directory is bound read-write, bypassing the
// filesystem spec's per-entry allowlist. Otherwise only the spec's
// named home dirs/files are bound, each at its own read-only or
// read-write destination, and missing entries are silently skipped
// (a freshly cloned environment won't have every dotfile).
func (b *Builder) AddHome() *Builder {
	home := b.cfg.HomeDir

	if b.cfg.FullHomeAccess {
		b.Bind(home, home)
		return b
	}

	b.Dir(home)
	for _, d := range b.cfg.Filesystem.ROHomeDirs {
		b.ROBindIfExists(filepath.Join(home, d), filepath.Join(home, d))
	}
	for _, d := range b.cfg.Filesystem.RWHomeDirs {
		b.BindIfExists(filepath.Join(home, d), filepath.Join(home, d))
	}
	for _, f := range b.cfg.Filesystem.ROHomeFiles {
		b.ROBindIfExists(filepath.Join(home, f), filepath.Join(home, f))
	}
	for _, f := range b.cfg.Filesystem.RWHomeFiles {
		b.BindIfExists(filepath.Join(home, f), filepath.Join(home, f))
	}

	return b
}

// AddAllowedPaths binds the filesystem spec's ro_paths/rw_paths, plus
// any --allow-ro/--allow-rw paths the caller added on top.
func (b *Builder) AddAllowedPaths() *Builder {
	for _, p := range b.cfg.Filesystem.ROPaths {
		b.ROBindIfExists(p, p)
	}
	for _, p := range b.cfg.Filesystem.RWPaths {
		b.BindIfExists(p, p)
	}
	for _, p := range b.cfg.ExtraROPaths {
		b.ROBindIfExists(p, p)
	}
	for _, p := range b.cfg.ExtraRWPaths {
		b.BindIfExists(p, p)
	}
	return b
}

// AddProject binds the project directory read-write at its own host
// path and chdirs into it.
func (b *Builder) AddProject() *Builder {
	b.Bind(b.cfg.ProjectDir, b.cfg.ProjectDir)
	b.Chdir(b.cfg.ProjectDir)
	return b
}

// AddProcDev mounts a fresh /proc and binds the host's /dev.
func (b *Builder) AddProcDev() *Builder {
	b.Proc("/proc")
	b.DevBind("/dev", "/dev")
	return b
}

// AddFilterBindings binds the relay binary and the filter daemon's
// Unix socket into the sandbox when running in filtered network
// mode. Called after the network namespace has already been
// unshared, so the only path to the outside world is through these
// two bindings.
func (b *Builder) AddFilterBindings() *Builder {
	if !b.cfg.Filtered {
		return b
	}
	b.ROBind(b.cfg.RelayPath, "/bw-relay")
	b.Bind(b.cfg.SocketPath, "/proxy.sock")
	return b
}

// AddEnvironment sets the guest's environment: core identity
// variables, XDG directories, and any host variables named via
// --pass-env.
func (b *Builder) AddEnvironment() *Builder {
	home := b.cfg.HomeDir

	b.SetEnv("HOME", home)
	b.SetEnv("USER", os.Getenv("USER"))
	b.SetEnv("LOGNAME", os.Getenv("LOGNAME"))
	b.SetEnv("SHELL", b.cfg.ShellPath)
	b.SetEnv("TERM", os.Getenv("TERM"))
	b.SetEnv("LANG", os.Getenv("LANG"))
	b.SetEnv("PATH", fmt.Sprintf("%s/.local/bin:/usr/local/bin:/usr/bin:/bin", home))
	b.SetEnv("PWD", b.cfg.ProjectDir)

	b.SetEnv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	b.SetEnv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	b.SetEnv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	b.SetEnv("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	b.SetEnv("XDG_RUNTIME_DIR", b.cfg.XDGRuntime)

	b.SetEnvIfSet("COLORTERM")
	b.SetEnvIfSet("COLUMNS")
	b.SetEnvIfSet("LINES")

	b.SetEnv("BWSANDBOX", "1")
	b.SetEnv("BWSANDBOX_PROJECT", b.cfg.ProjectName)

	for _, name := range b.cfg.PassEnv {
		b.SetEnvIfSet(name)
	}

	return b
}

// Build runs the full assembly pipeline in the fixed order mandated
// for every sandbox — namespaces, /tmp, /etc, home, system paths,
// allowed paths, project dir, /proc+/dev, filter bindings, then
// environment — and appends command as the final "--  <argv>" bwrap
// accepts. Mount-conflict panics raised by any step are recovered
// here and turned into a *MountConflictError, so a malformed
// filesystem spec produces a reportable error instead of crashing
// the launcher.
func (b *Builder) Build(command []string) (args []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(string); ok && strings.HasPrefix(msg, "builder:") {
				err = &MountConflictError{Message: msg}
				args = nil
				return
			}
			panic(r)
		}
	}()

	b.AddBaseArgs().
		AddTmp().
		AddEtc().
		AddHome().
		AddSystemPaths().
		AddAllowedPaths().
		AddProject().
		AddProcDev().
		AddFilterBindings().
		AddEnvironment()

	if b.err != nil {
		return nil, b.err
	}

	b.add("--")
	b.add(command...)
	return b.args, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
