package sandbox

import "testing"

func TestGenerateSandboxNameStable(t *testing.T) {
	a := GenerateSandboxName("/home/user/project")
	b := GenerateSandboxName("/home/user/project")
	if a != b {
		t.Errorf("expected stable name, got %q and %q", a, b)
	}
	if GenerateSandboxName("/home/user/other") == a {
		t.Errorf("expected distinct names for distinct paths")
	}
}

func TestSanitizeProjectName(t *testing.T) {
	if got := SanitizeProjectName("my project!@#"); got != "my_project___" {
		t.Errorf("unexpected sanitized name: %q", got)
	}
}

func TestDetectShellFallsBackToBash(t *testing.T) {
	t.Setenv("SHELL", "")
	shell, path := DetectShell()
	if shell != ShellBash || path != "/bin/bash" {
		t.Errorf("expected bash fallback, got %q %q", shell, path)
	}
}

func TestDetectShellRecognizesFish(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/fish")
	shell, _ := DetectShell()
	if shell != ShellFish {
		t.Errorf("expected fish, got %q", shell)
	}
}
