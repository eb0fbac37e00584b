// Package launcher implements the shared CLI (C9) used by every
// tool-specific front-end (bw-claude, bw-gemini, ...): it parses
// flags, loads and resolves configuration, optionally stands up the
// filter daemon (C6), builds the bwrap invocation (C8), and execs it.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"bwsandbox/internal/bwrap"
	"bwsandbox/internal/config"
	"bwsandbox/internal/filterd"
	"bwsandbox/internal/learn"
	"bwsandbox/internal/logging"
	"bwsandbox/internal/policy"
	"bwsandbox/internal/sandbox"
	"bwsandbox/internal/version"
)

// NewRootCommand builds the cobra command for one tool front-end.
// toolName (e.g. "claude") selects the [tools.<toolName>] config
// section and becomes argv[0] of the sandboxed program unless the
// caller overrides it via --shell.
func NewRootCommand(toolName string) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   toolName + " [args...]",
		Short:                 "Run " + toolName + " inside a bubblewrap sandbox",
		Version:               version.Version,
		Args:                  cobra.ArbitraryArgs,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, toolName, args)
		},
	}

	cmd.Flags().SetInterspersed(false)

	cmd.Flags().Bool("no-network", false, "Disable network access entirely")
	cmd.Flags().Bool("full-home-access", false, "Bind $HOME read-write in full (unsafe)")
	cmd.Flags().BoolP("verbose", "v", false, "Print resolved mounts, command, and policy to stderr")
	cmd.Flags().Bool("shell", false, "Run an interactive shell instead of the tool")
	cmd.Flags().StringSlice("allow-ro", nil, "Extra read-only mount (repeatable)")
	cmd.Flags().StringSlice("allow-rw", nil, "Extra read-write mount (repeatable)")
	cmd.Flags().String("dir", "", "Working directory inside the sandbox")
	cmd.Flags().StringSlice("pass-env", nil, "Copy this environment variable from the parent (repeatable)")
	cmd.Flags().String("proxy-config", "", "Explicit config file path (highest precedence)")
	cmd.Flags().String("bw-relay-path", "", "Override the bw-relay binary location")
	cmd.Flags().String("policy", "", "Enable filtered mode with the named policy")
	cmd.Flags().String("learn", "", "Filtered mode, open policy; record every host accessed to this file")
	cmd.Flags().String("learn-deny", "", "Filtered mode, enforcement policy; record every host denied to this file")
	cmd.Flags().Bool("list-policies", false, "List configured policy names and exit")
	cmd.Flags().Bool("list-groups", false, "List configured host-group names and exit")
	cmd.Flags().String("log-level", "", "Override $BW_LOG: debug, info, warn, or error")
	cmd.Flags().Bool("info", false, "Print the resolved policy and filesystem spec, then exit")

	return cmd
}

func run(cmd *cobra.Command, toolName string, args []string) error {
	flags := cmd.Flags()

	learnFile, _ := flags.GetString("learn")
	learnDenyFile, _ := flags.GetString("learn-deny")
	if learnFile != "" && learnDenyFile != "" {
		return fmt.Errorf("--learn and --learn-deny are mutually exclusive")
	}

	explicitConfig, _ := flags.GetString("proxy-config")
	cfg, err := config.LoadConfig(config.LoadOptions{ExplicitPath: explicitConfig})
	if err != nil {
		return err
	}

	if listPolicies, _ := flags.GetBool("list-policies"); listPolicies {
		return printNamed(cmd, namesAndDescriptions(cfg.Policy.Policies, func(p config.Policy) string { return p.Description }))
	}
	if listGroups, _ := flags.GetBool("list-groups"); listGroups {
		return printNamed(cmd, namesAndDescriptions(cfg.Network.Groups, func(g config.HostGroup) string { return g.Description }))
	}

	if logLevel, _ := flags.GetString("log-level"); logLevel != "" {
		_ = os.Setenv("BW_LOG", logLevel)
	}

	policyName, _ := flags.GetString("policy")
	if policyName == "" {
		if tc, ok := cfg.Tools[toolName]; ok && tc.DefaultPolicy != "" {
			policyName = tc.DefaultPolicy
		} else {
			policyName = "open"
		}
	}

	resolvedPolicy, err := config.ResolvePolicy(cfg, policyName)
	if err != nil {
		return err
	}

	fsSpec, err := config.ResolveFilesystemSpec(cfg.Filesystem.Configs, resolvedPolicy.Filesystem)
	if err != nil {
		return err
	}

	netMode := resolvedPolicy.Network.Network
	if noNetwork, _ := flags.GetBool("no-network"); noNetwork {
		netMode = config.NetworkDisabled
	}

	sandboxCfg, err := sandbox.NewConfig(toolName, nil)
	if err != nil {
		return err
	}
	sandboxCfg.Filesystem = fsSpec
	sandboxCfg.FullHomeAccess, _ = flags.GetBool("full-home-access")
	sandboxCfg.ExtraROPaths, _ = flags.GetStringSlice("allow-ro")
	sandboxCfg.ExtraRWPaths, _ = flags.GetStringSlice("allow-rw")
	sandboxCfg.PassEnv, _ = flags.GetStringSlice("pass-env")
	if dir, _ := flags.GetString("dir"); dir != "" {
		sandboxCfg.ProjectDir = dir
	}

	if err := sandboxCfg.EnsureSandboxDirs(); err != nil {
		return err
	}
	defer func() { _ = sandboxCfg.RemoveTmpExportDir() }()

	showInfo, _ := flags.GetBool("info")

	var engine *policy.Engine
	var recorder *learn.Recorder

	switch netMode {
	case config.NetworkDisabled:
		sandboxCfg.ShareNetwork = false
		sandboxCfg.Filtered = false
	case config.NetworkOpen:
		sandboxCfg.ShareNetwork = true
		sandboxCfg.Filtered = false
	case config.NetworkProxy:
		sandboxCfg.Filtered = true
		engine, err = policy.New(cfg.Network.Groups, resolvedPolicy.Network)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown network mode %q", netMode)
	}

	if learnFile != "" {
		sandboxCfg.Filtered = true
		engine = nil
		recorder = learn.New(sandboxCfg.ProjectName, learnFile, false)
	}
	if learnDenyFile != "" {
		recorder = learn.New(sandboxCfg.ProjectName, learnDenyFile, true)
	}

	if showInfo {
		printPolicyInfo(cmd, policyName, resolvedPolicy, fsSpec)
		return nil
	}

	if err := bwrap.CheckInstalled(); err != nil {
		return err
	}

	var logDispatcher *logging.Dispatcher
	if receivers := cfg.Logging.Receivers; len(receivers) > 0 {
		logDispatcher, err = logging.NewDispatcherFromConfig(receivers, cfg.Logging.Attributes, sandboxCfg.SandboxRoot)
		if err != nil {
			return err
		}
		defer logDispatcher.Close()
	}
	daemonLogger := logging.NewComponentLogger("filterd", nil, logDispatcher).
		WithFields(map[string]any{"tool": toolName, "policy": policyName})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var daemon *filterd.Daemon
	if sandboxCfg.Filtered {
		socketPath := filepath.Join(sandboxCfg.SandboxRoot, "proxy.sock")
		sandboxCfg.SocketPath = socketPath

		relayPath, _ := flags.GetString("bw-relay-path")
		if relayPath == "" {
			relayPath, err = findRelayBinary()
			if err != nil {
				return err
			}
		}
		sandboxCfg.RelayPath = relayPath

		daemon = &filterd.Daemon{SocketPath: socketPath, Engine: engine, Recorder: recorder, Logger: daemonLogger}
		if err := daemon.Listen(); err != nil {
			return err
		}

		go func() { _ = daemon.Serve(ctx) }()
		if err := waitForSocket(socketPath, 5*time.Second); err != nil {
			return err
		}
	}

	command := sandbox.FinalCommand(sandboxCfg, append([]string{toolName}, args...))
	if shellOnly, _ := flags.GetBool("shell"); shellOnly {
		command = sandbox.FinalCommand(sandboxCfg, nil)
	}

	builder := sandbox.NewBuilder(sandboxCfg)
	bwrapArgs, err := builder.Build(command)
	if err != nil {
		return err
	}

	verbose, _ := flags.GetBool("verbose")
	if verbose || cfg.Common.Verbose {
		printVerboseDiagnostics(cmd, builder.Mounts(), bwrapArgs, policyName, resolvedPolicy, engine)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if sandboxCfg.Filtered {
		err = bwrap.ExecRun(bwrapArgs)
		cancel()
		if daemon != nil {
			<-waitDaemonDone(ctx)
		}
		return err
	}

	return bwrap.Exec(bwrapArgs)
}

// waitDaemonDone returns a channel closed once ctx is done; Serve's
// own goroutine already exits and flushes on cancellation, this just
// gives the launcher a bounded point to hand control back.
func waitDaemonDone(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		close(done)
	}()
	return done
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("filter daemon socket %s did not appear within %s", path, timeout)
}

func findRelayBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "bw-relay")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if p, err := exec.LookPath("bw-relay"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("bw-relay binary not found; pass --bw-relay-path")
}

func namesAndDescriptions[T any](m map[string]T, desc func(T) string) map[string]string {
	out := make(map[string]string, len(m))
	for name, v := range m {
		out[name] = desc(v)
	}
	return out
}

func printNamed(cmd *cobra.Command, named map[string]string) error {
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, n := range names {
		if _, err := fmt.Fprintf(out, "  %s - %s\n", n, named[n]); err != nil {
			return err
		}
	}
	return nil
}

func printPolicyInfo(cmd *cobra.Command, name string, p config.Policy, fs config.FilesystemSpec) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("FIELD", "VALUE")
	_ = table.Append("policy", name)
	_ = table.Append("network", string(p.Network.Network))
	_ = table.Append("filesystem", fmt.Sprintf("%s (%s)", p.Filesystem, fs.Description))
	_ = table.Render()
}

// bwrapFlagsWithoutValue lists every bwrap flag Builder emits that
// takes no argument, so printVerboseDiagnostics can pair the
// value-taking ones correctly instead of guessing from "--" prefixes
// alone (a bare flag immediately followed by another flag would
// otherwise swallow it as a fake value).
var bwrapFlagsWithoutValue = map[string]bool{
	"--clearenv":        true,
	"--unshare-user":    true,
	"--unshare-pid":     true,
	"--unshare-ipc":     true,
	"--unshare-net":     true,
	"--share-net":       true,
	"--die-with-parent": true,
}

func printVerboseDiagnostics(cmd *cobra.Command, mounts []sandbox.MountRecord, bwrapArgs []string, policyName string, p config.Policy, engine *policy.Engine) {
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "=== policy ===\n%s (network=%s)\n", policyName, p.Network.Network)
	if engine != nil {
		fmt.Fprintf(errOut, "  filter engine active\n")
	}

	fmt.Fprintf(errOut, "=== mounts ===\n")
	for _, m := range mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(errOut, "  %s <- %s [%s] (%s)\n", m.Destination, m.Source, mode, m.AddedBy)
	}

	fmt.Fprintf(errOut, "=== bwrap argv ===\n")
	for i := 0; i < len(bwrapArgs); i++ {
		arg := bwrapArgs[i]
		if i+1 < len(bwrapArgs) && strings.HasPrefix(arg, "--") && !bwrapFlagsWithoutValue[arg] && !strings.HasPrefix(bwrapArgs[i+1], "--") {
			fmt.Fprintf(errOut, "  %s %s\n", arg, bwrapArgs[i+1])
			i++
		} else {
			fmt.Fprintf(errOut, "  %s\n", arg)
		}
	}
}
