package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// isInteractive returns true if stdin is a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptTrust prompts the user to trust a project-local config file.
// Returns true if the user accepts, false otherwise. changed indicates
// this is a re-prompt for a hash change rather than a brand-new file.
func promptTrust(input io.Reader, output io.Writer, configContent string, changed bool) (bool, error) {
	if changed {
		_, _ = fmt.Fprintf(output, "Project config changed: .bwconfig.toml\n\n")
	} else {
		_, _ = fmt.Fprintf(output, "Project config found: .bwconfig.toml\n\n")
	}

	for _, line := range strings.Split(strings.TrimSpace(configContent), "\n") {
		_, _ = fmt.Fprintf(output, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(output)

	if changed {
		_, _ = fmt.Fprintf(output, "Trust updated configuration? [y/N]: ")
	} else {
		_, _ = fmt.Fprintf(output, "Trust this configuration? [y/N]: ")
	}

	reader := bufio.NewReader(input)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// PromptTrustStdio is a convenience wrapper that uses os.Stdin/os.Stderr.
// In a non-interactive session it refuses and tells the caller how to
// approve the file out of band.
func PromptTrustStdio(configContent string, changed bool) (bool, error) {
	if !isInteractive() {
		_, _ = fmt.Fprintf(os.Stderr, "warning: skipping .bwconfig.toml (non-interactive; approve it with --proxy-config to use explicitly)\n")
		return false, nil
	}
	return promptTrust(os.Stdin, os.Stderr, configContent, changed)
}
