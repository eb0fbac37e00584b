// Command bw-claude runs claude inside a bubblewrap sandbox.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"bwsandbox/internal/launcher"
)

func main() {
	cmd := launcher.NewRootCommand("claude")
	if err := cmd.Execute(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "bw-claude: %v\n", err)
		os.Exit(1)
	}
}
