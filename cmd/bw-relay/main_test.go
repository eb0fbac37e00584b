package main

import "testing"

func TestParseArgsSplitsSocketAndCommand(t *testing.T) {
	socket, cmd, err := parseArgs([]string{"--socket", "/tmp/proxy.sock", "--", "curl", "example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if socket != "/tmp/proxy.sock" {
		t.Errorf("unexpected socket: %q", socket)
	}
	if len(cmd) != 2 || cmd[0] != "curl" || cmd[1] != "example.com" {
		t.Errorf("unexpected command: %v", cmd)
	}
}

func TestParseArgsRequiresSocket(t *testing.T) {
	_, _, err := parseArgs([]string{"--", "curl"})
	if err == nil {
		t.Fatal("expected error for missing --socket")
	}
}

func TestParseArgsRejectsUnknownFlag(t *testing.T) {
	_, _, err := parseArgs([]string{"--bogus", "--", "curl"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
