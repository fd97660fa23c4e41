// Command mcpprobe drives an MCP server through a diagnostic session and
// prints a per-step report.
//
// The server command follows the flags, separated by "--":
//
//	mcpprobe --env LOKI_URL=http://localhost:3100 -- ./server
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpprobe/mcpprobe"
)

const resultPreviewLimit = 500

var (
	flagEnv             []string
	flagCwd             string
	flagCalls           []string
	flagNoDefaultCalls  bool
	flagGracePeriod     time.Duration
	flagStartupDelay    time.Duration
	flagProtocolVersion string
	flagVerbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "mcpprobe [flags] -- command [args...]",
	Short: "Diagnostic client for MCP servers over stdio",
	Long: `mcpprobe spawns an MCP server, performs the capability handshake,
enumerates its tools, invokes a configurable series of tool calls, and
reports whether each exchange produced a well-formed result or an error.

Transport failures (server crashed, sent garbage, closed the stream) abort
the session; errors the server itself reports are recorded per step and
the probe continues.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runProbe,
}

func init() {
	rootCmd.Flags().StringArrayVar(&flagEnv, "env", nil, "environment override KEY=VALUE for the server (repeatable)")
	rootCmd.Flags().StringVar(&flagCwd, "cwd", "", "working directory for the server process")
	rootCmd.Flags().StringArrayVar(&flagCalls, "call", nil, "tool invocation NAME=JSON_ARGS (repeatable, replaces the default audit calls)")
	rootCmd.Flags().BoolVar(&flagNoDefaultCalls, "no-default-calls", false, "skip the built-in audit tool invocations")
	rootCmd.Flags().DurationVar(&flagGracePeriod, "grace", 2*time.Second, "grace period before the server is force-killed on shutdown")
	rootCmd.Flags().DurationVar(&flagStartupDelay, "startup-delay", 0, "settle time between spawning the server and the handshake")
	rootCmd.Flags().StringVar(&flagProtocolVersion, "protocol-version", "", "protocol version to send in the handshake")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging to stderr")
}

func runProbe(cmd *cobra.Command, args []string) error {
	opts := []mcpprobe.Option{
		mcpprobe.WithGracePeriod(flagGracePeriod),
		mcpprobe.WithStartupDelay(flagStartupDelay),
		mcpprobe.WithObserver(func(env *mcpprobe.Envelope) {
			fmt.Printf("    [notification: %s]\n", env.Method)
		}),
	}

	if flagVerbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		opts = append(opts, mcpprobe.WithLogger(logger))
	}

	if flagCwd != "" {
		opts = append(opts, mcpprobe.WithCwd(flagCwd))
	}

	if flagProtocolVersion != "" {
		opts = append(opts, mcpprobe.WithProtocolVersion(flagProtocolVersion))
	}

	if flagNoDefaultCalls {
		opts = append(opts, mcpprobe.WithoutDefaultInvocations())
	}

	env, err := parseEnv(flagEnv)
	if err != nil {
		return err
	}

	if len(env) > 0 {
		opts = append(opts, mcpprobe.WithEnv(env))
	}

	for _, call := range flagCalls {
		name, arguments, err := parseCall(call)
		if err != nil {
			return err
		}

		opts = append(opts, mcpprobe.WithInvocation(name, arguments))
	}

	fmt.Printf("Probing MCP server: %s\n", strings.Join(args, " "))

	report, err := mcpprobe.Run(cmd.Context(), args, opts...)
	if report != nil {
		render(report)
	}

	if err != nil {
		if report == nil {
			return fmt.Errorf("probe failed: %w", err)
		}

		return fmt.Errorf("probe failed in %s: %w", report.State, err)
	}

	return nil
}

// render prints the report the way a human inspects a diagnostic run:
// server identity, tool inventory with schema findings, then one line per
// step with a truncated result preview.
func render(report *mcpprobe.Report) {
	fmt.Printf("\nRun %s\n", report.RunID)

	if report.Server.Name != "" {
		fmt.Printf("Server: %s v%s\n", report.Server.Name, report.Server.Version)
	}

	if len(report.Tools) > 0 {
		fmt.Printf("\nTools (%d):\n", len(report.Tools))

		for _, tool := range report.Tools {
			fmt.Printf("  • %s\n", tool.Name)

			if tool.Description != "" {
				fmt.Printf("    %s\n", tool.Description)
			}
		}
	}

	for _, finding := range report.SchemaFindings {
		if !finding.OK() {
			fmt.Printf("  ! schema: %v\n", finding.Err)
		}
	}

	fmt.Println("\nSteps:")

	for _, step := range report.Steps {
		fmt.Printf("  [%d] %-28s %s\n", step.ID, step.Name, step.Status)

		switch step.Status {
		case mcpprobe.StatusOK:
			if preview := previewResult(step.Result); preview != "" {
				fmt.Printf("      %s\n", preview)
			}
		case mcpprobe.StatusRemoteError:
			fmt.Printf("      server error %d: %s\n", step.RemoteErr.Code, step.RemoteErr.Message)
		case mcpprobe.StatusFailed:
			fmt.Printf("      %v\n", step.Err)
		}
	}

	fmt.Printf("\nSession: %s (%d steps, %d remote errors)\n",
		report.State, len(report.Steps), report.RemoteErrors())
}

// previewResult renders a result payload, re-indented and truncated.
func previewResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}

	pretty, err := json.Marshal(value)
	if err != nil {
		return string(raw)
	}

	s := string(pretty)
	if len(s) > resultPreviewLimit {
		return fmt.Sprintf("%s... (%d bytes)", s[:resultPreviewLimit], len(s))
	}

	return s
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q, want KEY=VALUE", pair)
		}

		env[key] = value
	}

	return env, nil
}

func parseCall(call string) (string, map[string]any, error) {
	name, rawArgs, ok := strings.Cut(call, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid --call %q, want NAME=JSON_ARGS", call)
	}

	var arguments map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &arguments); err != nil {
		return "", nil, fmt.Errorf("invalid --call arguments for %s: %w", name, err)
	}

	return name, arguments, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}
