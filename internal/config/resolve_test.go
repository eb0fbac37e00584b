package config

import "testing"

func TestValidateHostGroupGraphDetectsCycle(t *testing.T) {
	groups := map[string]HostGroup{
		"a": {Groups: []string{"b"}},
		"b": {Groups: []string{"a"}},
	}
	err := ValidateHostGroupGraph(groups)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("expected *CycleError, got %T", err)
	}
}

func TestValidateHostGroupGraphMissingReference(t *testing.T) {
	groups := map[string]HostGroup{
		"a": {Groups: []string{"missing"}},
	}
	err := ValidateHostGroupGraph(groups)
	if err == nil {
		t.Fatal("expected not-found error")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T", err)
	}
}

func TestExpandHostGroupUnionsReferences(t *testing.T) {
	groups := map[string]HostGroup{
		"vcs":       {Hosts: []string{"github.com"}},
		"registry":  {Hosts: []string{"npmjs.org"}},
		"dev-union": {Groups: []string{"vcs", "registry"}},
	}
	allow, deny, err := ExpandHostGroup(groups, "dev-union")
	if err != nil {
		t.Fatal(err)
	}
	if len(allow) != 2 || len(deny) != 0 {
		t.Fatalf("expected 2 allow hosts, got %v", allow)
	}
}

func TestResolveFilesystemSpecExtendsConcatenates(t *testing.T) {
	specs := map[string]FilesystemSpec{
		"base": {SystemPaths: []string{"/usr"}},
		"dev":  {Extends: []string{"base"}, ROHomeDirs: []string{".ssh"}},
	}
	resolved, err := ResolveFilesystemSpec(specs, "dev")
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved.SystemPaths) != 1 || resolved.SystemPaths[0] != "/usr" {
		t.Errorf("expected inherited system path, got %v", resolved.SystemPaths)
	}
	if len(resolved.ROHomeDirs) != 1 || resolved.ROHomeDirs[0] != ".ssh" {
		t.Errorf("expected own ro_home_dirs, got %v", resolved.ROHomeDirs)
	}
}

func TestResolveFilesystemSpecDetectsCycle(t *testing.T) {
	specs := map[string]FilesystemSpec{
		"a": {Extends: []string{"b"}},
		"b": {Extends: []string{"a"}},
	}
	_, err := ResolveFilesystemSpec(specs, "a")
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("expected *CycleError, got %T", err)
	}
}

func TestResolvePolicyNotFound(t *testing.T) {
	cfg := &Config{Policy: PolicySection{Policies: map[string]Policy{}}}
	_, err := ResolvePolicy(cfg, "missing")
	if err == nil {
		t.Fatal("expected not-found error")
	}
}
