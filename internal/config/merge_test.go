package config

import "testing"

func TestMergeWholesaleReplacesMapEntry(t *testing.T) {
	base := &Config{
		Network: NetworkSection{Groups: map[string]HostGroup{
			"vcs": {Description: "base", Hosts: []string{"github.com", "gitlab.com"}},
		}},
	}
	override := &Config{
		Network: NetworkSection{Groups: map[string]HostGroup{
			"vcs": {Description: "override", Hosts: []string{"github.com"}},
		}},
	}

	merged := Merge(base, override)
	got := merged.Network.Groups["vcs"]
	if got.Description != "override" {
		t.Errorf("expected override description, got %q", got.Description)
	}
	if len(got.Hosts) != 1 {
		t.Errorf("expected wholesale replace (1 host), got %v", got.Hosts)
	}
}

func TestMergeKeepsUnrelatedBaseKeys(t *testing.T) {
	base := &Config{
		Policy: PolicySection{Policies: map[string]Policy{
			"open":     {Description: "base open"},
			"lockdown": {Description: "base lockdown"},
		}},
	}
	override := &Config{
		Policy: PolicySection{Policies: map[string]Policy{
			"lockdown": {Description: "custom lockdown"},
		}},
	}

	merged := Merge(base, override)
	if merged.Policy.Policies["open"].Description != "base open" {
		t.Error("expected untouched base key to survive merge")
	}
	if merged.Policy.Policies["lockdown"].Description != "custom lockdown" {
		t.Error("expected override to replace lockdown")
	}
}

func TestMergeIdempotent(t *testing.T) {
	base, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	once := Merge(base, base)
	twice := Merge(once, base)

	if len(once.Network.Groups) != len(twice.Network.Groups) {
		t.Fatalf("merge not idempotent: %d vs %d groups", len(once.Network.Groups), len(twice.Network.Groups))
	}
	for name, g := range once.Network.Groups {
		g2, ok := twice.Network.Groups[name]
		if !ok || len(g.Hosts) != len(g2.Hosts) {
			t.Errorf("group %q changed across repeated merge", name)
		}
	}
}

func TestMergeNilBaseOrOverride(t *testing.T) {
	cfg := &Config{Network: NetworkSection{Groups: map[string]HostGroup{"a": {}}}}
	if Merge(nil, cfg) != cfg {
		t.Error("Merge(nil, cfg) should return cfg")
	}
	if Merge(cfg, nil) != cfg {
		t.Error("Merge(cfg, nil) should return cfg")
	}
}
