package sandbox

import (
	"strings"
	"testing"

	"bwsandbox/internal/config"
)

func baseTestConfig(t *testing.T) *Config {
	t.Helper()
	home := t.TempDir()
	project := t.TempDir()
	tmpExport := t.TempDir()
	return &Config{
		HomeDir:      home,
		ProjectDir:   project,
		ProjectName:  "proj-1234",
		XDGRuntime:   "/run/user/1000",
		Shell:        ShellBash,
		ShellPath:    "/bin/bash",
		TmpExportDir: tmpExport,
		Filesystem: config.FilesystemSpec{
			ROHomeDirs: []string{".config/git"},
		},
	}
}

func TestBuildAssemblesArgsInOrder(t *testing.T) {
	cfg := baseTestConfig(t)
	args, err := NewBuilder(cfg).Build([]string{"echo", "hi"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{"--clearenv", "--unshare-pid", "--unshare-net", "--bind " + cfg.TmpExportDir + " /tmp", "--tmpfs /etc", "--remount-ro /etc", "--proc /proc", "--dev-bind /dev /dev"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in assembled args: %s", want, joined)
		}
	}

	idxProject := indexOf(args, cfg.ProjectDir)
	idxProc := indexOf(args, "--proc")
	if idxProject == -1 || idxProc == -1 || idxProject > idxProc {
		t.Errorf("expected project binding before /proc, got order: %v", args)
	}

	if args[len(args)-3] != "--" || args[len(args)-2] != "echo" || args[len(args)-1] != "hi" {
		t.Errorf("expected trailing command, got tail: %v", args[len(args)-3:])
	}
}

func TestBuilderMountsTracksEveryBind(t *testing.T) {
	cfg := baseTestConfig(t)
	b := NewBuilder(cfg)
	if _, err := b.Build(nil); err != nil {
		t.Fatalf("Build: %v", err)
	}

	mounts := b.Mounts()
	if len(mounts) == 0 {
		t.Fatal("expected tracked mounts, got none")
	}

	var foundProject bool
	for _, m := range mounts {
		if m.Destination == cfg.ProjectDir {
			foundProject = true
			if m.ReadOnly {
				t.Errorf("project dir should be mounted read-write, got read-only")
			}
			if m.AddedBy == "" {
				t.Errorf("expected AddedBy to be populated")
			}
		}
	}
	if !foundProject {
		t.Errorf("expected project dir %q among tracked mounts: %+v", cfg.ProjectDir, mounts)
	}
}

func TestBuildDetectsAmbiguousMount(t *testing.T) {
	cfg := baseTestConfig(t)
	cfg.Filesystem.RWPaths = append(cfg.Filesystem.RWPaths, cfg.ProjectDir)

	_, err := NewBuilder(cfg).Build(nil)
	if err == nil {
		t.Fatal("expected mount conflict error")
	}
	if _, ok := err.(*MountConflictError); !ok {
		t.Errorf("expected *MountConflictError, got %T: %v", err, err)
	}
}

func TestBuildSharesNetWhenNotFiltered(t *testing.T) {
	cfg := baseTestConfig(t)
	cfg.ShareNetwork = true
	args, err := NewBuilder(cfg).Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(args, "--share-net") {
		t.Errorf("expected --share-net, got %v", args)
	}
}

func TestBuildFiltersAddsRelayAndSocketBindings(t *testing.T) {
	cfg := baseTestConfig(t)
	cfg.Filtered = true
	cfg.RelayPath = "/usr/local/bin/bw-relay"
	cfg.SocketPath = "/tmp/proxy.sock"

	args, err := NewBuilder(cfg).Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "/bw-relay") || !strings.Contains(joined, "/proxy.sock") {
		t.Errorf("expected relay and socket bindings, got %v", args)
	}
	if contains(args, "--share-net") {
		t.Errorf("filtered mode must not share the host network namespace")
	}
}

func TestFinalCommandOpenModeExplicitCommand(t *testing.T) {
	cfg := baseTestConfig(t)
	got := FinalCommand(cfg, []string{"ls", "-la"})
	want := []string{"ls", "-la"}
	if !equalSlices(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestFinalCommandOpenModeInteractiveShell(t *testing.T) {
	cfg := baseTestConfig(t)
	got := FinalCommand(cfg, nil)
	want := []string{"/bin/sh", "-i"}
	if !equalSlices(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestFinalCommandFilteredWrapsInRelay(t *testing.T) {
	cfg := baseTestConfig(t)
	cfg.Filtered = true
	got := FinalCommand(cfg, []string{"curl", "example.com"})
	want := []string{"/bw-relay", "--socket", "/proxy.sock", "--", "curl", "example.com"}
	if !equalSlices(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func contains(s []string, v string) bool {
	return indexOf(s, v) != -1
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
