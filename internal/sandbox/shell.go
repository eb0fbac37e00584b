package sandbox

// defaultInteractiveShell is the literal argv0 execed for an
// interactive session with no explicit command. This is fixed
// regardless of the host's $SHELL: the guest rootfs only guarantees
// /bin/sh, and the host's shell binary (and its dynamic linker) is
// not bind-mounted into the sandbox.
const defaultInteractiveShell = "/bin/sh"

// FinalCommand selects the argv bwrap execs as PID 1 inside the
// sandbox, covering the four combinations of filtered networking and
// interactive-shell mode:
//
//   - filtered + explicit command:  /bw-relay --socket /proxy.sock -- <args>
//   - filtered + interactive shell: /bw-relay --socket /proxy.sock -- /bin/sh -i
//   - open + explicit command:      <args>
//   - open + interactive shell:     /bin/sh -i
//
// In filtered mode the relay binary becomes PID 1: it starts its own
// loopback HTTP(S) listener, points HTTP_PROXY/HTTPS_PROXY at itself,
// and execs the real command as its child.
func FinalCommand(cfg *Config, args []string) []string {
	inner := args
	if len(inner) == 0 {
		inner = []string{defaultInteractiveShell, "-i"}
	}

	if !cfg.Filtered {
		return inner
	}

	relayArgs := []string{"/bw-relay", "--socket", "/proxy.sock", "--"}
	return append(relayArgs, inner...)
}
