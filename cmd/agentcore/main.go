// Package main is the CLI entry point for agentcore, the tool-and-agent
// runtime that backs a local coding assistant: a tool registry and
// dynamic loader, a remote MCP tool server manager, a process-based
// sub-agent dispatcher, an append-only context log, and a web terminal
// bridge for mirroring the host session to a browser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/mcp"
	"github.com/haasonsaas/nexus/internal/process"
	"github.com/haasonsaas/nexus/internal/subagent"
	"github.com/haasonsaas/nexus/internal/webterm"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - tool and sub-agent runtime for a local coding assistant",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildToolsCmd(),
		buildAgentsCmd(),
		buildMCPCmd(),
		buildServeCmd(),
	)
	return rootCmd
}

// projectRoot resolves the project root used for the project-scoped
// halves of tool, agent and MCP discovery: the current working
// directory unless overridden.
func projectRoot(flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// buildToolsCmd creates the "tools" command group: discover and
// inspect dynamically loaded tools.
func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Discover and inspect dynamically loaded tools",
	}
	cmd.AddCommand(buildToolsListCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tools discovered across every tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := agent.NewToolRegistry()
			root := projectRoot(project)
			results := agent.DiscoverAndLoad(registry, agent.DefaultGlobalToolsDir(), root, nil, nil)

			executor := process.NewExecutor("", slog.Default())
			toolCtx := agent.NewToolContext(root, func(ctx context.Context, command string) (string, error) {
				result, err := executor.Run(ctx, process.Invocation{Command: command, Workdir: root})
				return result.Output, err
			}, registry)

			out := cmd.OutOrStdout()
			for _, result := range results {
				agent.ApplyToolContext(registry, result.Loaded, toolCtx)
				for _, name := range result.Loaded {
					fmt.Fprintf(out, "  %s (%s, %s)\n", name, result.Source, result.Root)
				}
				for _, err := range result.Errors {
					fmt.Fprintf(out, "  error loading from %s: %v\n", result.Root, err)
				}
			}

			tools := registry.AsLLMTools()
			if len(tools) == 0 {
				fmt.Fprintln(out, "No tools loaded.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project root (defaults to the current directory)")
	return cmd
}

// buildAgentsCmd creates the "agents" command group: discover and
// dispatch sub-agent definitions.
func buildAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Discover and dispatch sub-agent definitions",
	}
	cmd.AddCommand(buildAgentsListCmd(), buildAgentsRunCmd(), buildAgentsExecCmd())
	return cmd
}

// buildAgentsExecCmd implements the child side of the sub-agent
// protocol: it runs under the process executor with the agent's
// prompt as the command, emitting a progress line before and after,
// matching the shape looksLikeProgress expects from a child's stdout.
func buildAgentsExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "__exec <agent> <prompt>",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[1]
			executor := process.NewExecutor("", slog.Default())

			emit := func(p subagent.Progress) {
				line, _ := json.Marshal(p)
				fmt.Fprintln(cmd.OutOrStdout(), string(line))
			}
			emit(subagent.Progress{CurrentTool: "exec", ToolCount: 1})

			result, err := executor.Run(cmd.Context(), process.Invocation{
				Command: prompt,
				Timeout: 5 * time.Minute,
			})
			if err != nil {
				return err
			}
			emit(subagent.Progress{ToolCount: 1, DurationMs: 0})
			fmt.Fprint(cmd.OutOrStdout(), result.Output)
			if result.ExitCode != 0 {
				return fmt.Errorf("sub-agent command exited %d", result.ExitCode)
			}
			return nil
		},
	}
	return cmd
}

func defaultBundledAgentsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "agents")
}

func buildAgentsListCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered sub-agent definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, errs := subagent.DiscoverAgents(defaultBundledAgentsDir(), userHomeDir(), projectRoot(project))
			out := cmd.OutOrStdout()
			if len(defs) == 0 {
				fmt.Fprintln(out, "No sub-agents found.")
			}
			for name, def := range defs {
				fmt.Fprintf(out, "  %s (%s) - %s\n", name, def.Source, def.Description)
			}
			for _, err := range errs {
				fmt.Fprintf(out, "  warning: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project root (defaults to the current directory)")
	return cmd
}

func buildAgentsRunCmd() *cobra.Command {
	var (
		project     string
		concurrency int
		batchCap    int
	)
	cmd := &cobra.Command{
		Use:   "run <agent> <prompt>",
		Short: "Dispatch a single sub-agent task and print its output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, errs := subagent.DiscoverAgents(defaultBundledAgentsDir(), userHomeDir(), projectRoot(project))
			for _, err := range errs {
				slog.Warn("agent discovery warning", "error", err)
			}

			dispatcher := subagent.NewDispatcher(defs, childCommand, nil)
			dispatcher.SetConcurrencyLimits(concurrency, batchCap)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			runs, err := dispatcher.Run(ctx, []subagent.Task{{AgentName: args[0], Prompt: args[1]}}, nil)
			if err != nil {
				return err
			}

			run := runs[0]
			out := cmd.OutOrStdout()
			if run.Status == "failed" {
				fmt.Fprintf(out, "failed: %s\n", run.Error)
				return fmt.Errorf("sub-agent run failed")
			}
			fmt.Fprintln(out, run.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project root (defaults to the current directory)")
	cmd.Flags().IntVar(&concurrency, "max-concurrency", subagent.DefaultMaxConcurrency, "Maximum concurrent sub-agent processes")
	cmd.Flags().IntVar(&batchCap, "max-batch", subagent.DefaultMaxParallelTasks, "Maximum tasks accepted in a single dispatch")
	return cmd
}

// childCommand launches this same binary recursively with a hidden
// "agents __exec" subcommand as the sub-agent process protocol, the
// simplest self-contained child command a dispatcher can build without
// depending on an external agent runtime binary.
func childCommand(ctx context.Context, def *subagent.AgentDefinition, task subagent.Task) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	cmd := exec.CommandContext(ctx, exe, "agents", "__exec", def.Name, task.Prompt)
	return cmd, nil
}

// buildMCPCmd creates the "mcp" command group: manage remote tool
// servers configured via .pi/mcp.json.
func buildMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage remote MCP tool servers",
	}
	cmd.AddCommand(buildMCPServersCmd())
	return cmd
}

func buildMCPServersCmd() *cobra.Command {
	var project string
	var bridgeTools bool
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := config.LoadMCPConfig(userHomeDir(), projectRoot(project))
			if err != nil {
				return err
			}
			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No MCP servers configured.")
				return nil
			}

			mgrCfg := &mcp.Config{Enabled: true}
			ids := make([]string, 0, len(servers))
			for id, server := range servers {
				server := server
				mgrCfg.Servers = append(mgrCfg.Servers, &server)
				ids = append(ids, id)
			}
			mgr := mcp.NewManager(mgrCfg, slog.Default())

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			connectErrs := mgr.ConnectServers(ctx, ids)
			for id, err := range connectErrs {
				if err == nil {
					continue
				}
				slog.Warn("mcp server connect failed", "server", id, "error", err)
			}
			defer mgr.Stop()

			out := cmd.OutOrStdout()
			for id, server := range servers {
				fmt.Fprintf(out, "  %s - %s (%s)\n", id, server.Command, server.Transport)
			}

			if bridgeTools {
				registry := agent.NewToolRegistry()
				for _, name := range mcp.RegisterTools(registry, mgr) {
					fmt.Fprintf(out, "  bridged tool: %s\n", name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project root (defaults to the current directory)")
	cmd.Flags().BoolVar(&bridgeTools, "bridge-tools", false, "Bridge remote MCP tools/resources/prompts into a local tool registry and list the bridged names")
	return cmd
}

// buildServeCmd creates the "serve" command: bridge the controlling
// terminal to a browser over WebSocket.
func buildServeCmd() *cobra.Command {
	var (
		bindings []string
		logPath  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Mirror this terminal session to a browser over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			fd := int(os.Stdout.Fd())
			bridge := webterm.NewMirroredTerminal(os.Stdout, fd)

			var logWriter *os.File
			if strings.TrimSpace(logPath) != "" {
				f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open event log: %w", err)
				}
				defer f.Close()
				logWriter = f
			}
			bridge.SetInputHandler(func(data []byte) {
				if logWriter != nil {
					entry, _ := json.Marshal(map[string]any{"input": string(data), "ts": time.Now().Unix()})
					logWriter.Write(append(entry, '\n'))
				}
			})

			srv := webterm.NewServer(bridge, nil, slog.Default())
			if errs := srv.ApplyBindings(bindings); len(errs) != 0 {
				for addr, err := range errs {
					slog.Error("bind failed", "address", addr, "error", err)
				}
			}
			defer srv.Stop()

			statuses, err := webterm.ResolveBindingStatuses(srv.LiveAddresses())
			if err == nil {
				out := cmd.OutOrStdout()
				for _, s := range statuses {
					if s.Binding.Class == webterm.ClassPublic {
						fmt.Fprintf(out, "warning: %s is reachable from outside this host\n", s.Binding.Address)
					}
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&bindings, "bind", []string{"127.0.0.1:7890"}, "Addresses to bind the web terminal server to")
	cmd.Flags().StringVar(&logPath, "event-log", "", "Optional path to append input events as JSON lines")
	return cmd
}
