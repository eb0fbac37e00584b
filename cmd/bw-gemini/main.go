// Command bw-gemini runs gemini inside a bubblewrap sandbox.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"bwsandbox/internal/launcher"
)

func main() {
	cmd := launcher.NewRootCommand("gemini")
	if err := cmd.Execute(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "bw-gemini: %v\n", err)
		os.Exit(1)
	}
}
