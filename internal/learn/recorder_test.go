package learn

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/BurntSushi/toml"

	"bwsandbox/internal/config"
)

func TestRecorderFlushWritesSortedHosts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "learned.toml")
	r := New("session", out, false)
	r.Record("z.example.com", nil)
	r.Record("a.example.com", nil)
	r.Record("a.example.com", nil) // duplicate

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var cfg config.Config
	if _, err := toml.DecodeFile(out, &cfg); err != nil {
		t.Fatalf("decode flushed output: %v", err)
	}
	group, ok := cfg.Network.Groups["session"]
	if !ok {
		t.Fatal("expected 'session' group in flushed output")
	}
	if len(group.Hosts) != 2 {
		t.Fatalf("expected 2 deduplicated hosts, got %v", group.Hosts)
	}
	if group.Hosts[0] != "a.example.com" || group.Hosts[1] != "z.example.com" {
		t.Errorf("expected sorted hosts, got %v", group.Hosts)
	}
}

func TestRecorderDenyModeWritesHostsDeny(t *testing.T) {
	out := filepath.Join(t.TempDir(), "learned.toml")
	r := New("session", out, true)
	r.Record("blocked.example.com", nil)
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	var cfg config.Config
	if _, err := toml.DecodeFile(out, &cfg); err != nil {
		t.Fatal(err)
	}
	group := cfg.Network.Groups["session"]
	if len(group.HostsDeny) != 1 || len(group.Hosts) != 0 {
		t.Errorf("expected HostsDeny populated and Hosts empty, got %+v", group)
	}
}

func TestRecorderConcurrentRecordIsSafe(t *testing.T) {
	r := New("session", "", false)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Record("host.example.com", nil)
		}(i)
	}
	wg.Wait()
	if len(r.Hosts()) != 1 {
		t.Errorf("expected deduplication under concurrent writes, got %v", r.Hosts())
	}
}

func TestRecorderFlushNoopWithoutOutputPath(t *testing.T) {
	r := New("session", "", false)
	r.Record("a.example.com", nil)
	if err := r.Flush(); err != nil {
		t.Fatalf("expected no-op flush to succeed, got %v", err)
	}
}
