// Package learn implements the learning recorder (C5): thread-safe
// accumulation of hostnames observed by the filter daemon (allowed or
// denied), serialized into the same TOML host-group schema the policy
// engine consumes, and flushed atomically to disk.
package learn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"bwsandbox/internal/config"
)

// Recorder accumulates hostnames into a single named HostGroup,
// guarded by a mutex so record and flush events are atomic from any
// observer.
type Recorder struct {
	mu         sync.Mutex
	groupName  string
	deny       bool // when true, records into HostsDeny instead of Hosts
	seen       map[string]struct{}
	outputPath string
}

// New creates a Recorder that will accumulate into a host-group named
// groupName, writing to outputPath on Flush. When deny is true, hosts
// are recorded as denials (--learn-deny) rather than allowed accesses
// (--learn).
func New(groupName, outputPath string, deny bool) *Recorder {
	return &Recorder{
		groupName:  groupName,
		deny:       deny,
		seen:       make(map[string]struct{}),
		outputPath: outputPath,
	}
}

// Record adds host to the in-memory set. ip is accepted for forward
// compatibility with a possible future IP-range recorder and is
// currently ignored.
func (r *Recorder) Record(host string, ip *string) {
	_ = ip
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[host] = struct{}{}
}

// snapshot returns a deep copy of the accumulated Config subtree for
// flushing or display, without holding the lock while doing file I/O.
func (r *Recorder) snapshot() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	hosts := make([]string, 0, len(r.seen))
	for h := range r.seen {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	group := config.HostGroup{
		Description: "Recorded by a learning-mode run",
	}
	if r.deny {
		group.HostsDeny = hosts
	} else {
		group.Hosts = hosts
	}

	return &config.Config{
		Network: config.NetworkSection{
			Groups: map[string]config.HostGroup{r.groupName: group},
		},
	}
}

// Flush serializes the full accumulated set and atomically replaces
// the output file: write to a temp file in the same directory, then
// rename over the target. A reader of the output file never observes a
// partially written document, regardless of when Flush is called
// relative to concurrent Record calls.
func (r *Recorder) Flush() error {
	if r.outputPath == "" {
		return nil
	}

	cfg := r.snapshot()

	dir := filepath.Dir(r.outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create learning output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".learning-*.toml")
	if err != nil {
		return fmt.Errorf("create learning output temp file: %w", err)
	}
	tmpPath := tmp.Name()

	encodeErr := toml.NewEncoder(tmp).Encode(cfg)
	closeErr := tmp.Close()
	if encodeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write learning output: %w", encodeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close learning output: %w", closeErr)
	}

	if err := os.Rename(tmpPath, r.outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace learning output: %w", err)
	}
	return nil
}

// Hosts returns a sorted snapshot of the hosts recorded so far, for
// diagnostics.
func (r *Recorder) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hosts := make([]string, 0, len(r.seen))
	for h := range r.seen {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
