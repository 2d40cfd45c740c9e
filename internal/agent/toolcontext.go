package agent

import (
	"context"
	"fmt"
)

// UIHandle is the contract a dynamic tool uses to collaborate with
// whatever frontend is hosting it: a terminal prompt, a chat channel,
// a web dashboard, or nothing at all. Every method must fail
// recoverably rather than panicking when no UI is attached.
type UIHandle interface {
	Select(ctx context.Context, prompt string, options []string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
	Input(ctx context.Context, prompt string) (string, error)
	Notify(ctx context.Context, message string)
	SetStatus(ctx context.Context, status string)
}

// ErrNoUI is returned by every noopUI method; a tool checking HasUI
// before calling into UI should never see it, but a tool that skips
// the check still fails cleanly instead of hanging.
var ErrNoUI = fmt.Errorf("tool context: no UI attached to this session")

// noopUI backs ToolContext when the host session has no interactive
// surface at all (a cron-triggered run, a headless CI invocation).
type noopUI struct{}

func (noopUI) Select(ctx context.Context, prompt string, options []string) (string, error) {
	return "", ErrNoUI
}
func (noopUI) Confirm(ctx context.Context, prompt string) (bool, error) { return false, ErrNoUI }
func (noopUI) Input(ctx context.Context, prompt string) (string, error) { return "", ErrNoUI }
func (noopUI) Notify(ctx context.Context, message string)               {}
func (noopUI) SetStatus(ctx context.Context, status string)             {}

// ExecFunc is the shim a ToolContext exposes for running shell
// commands; it forwards to the Process Executor rather than letting
// every dynamic tool shell out on its own.
type ExecFunc func(ctx context.Context, command string) (string, error)

// BuiltinLibrary is the handle dynamic tools use to reach the host's
// own standard tool set (e.g. to compose a higher-level tool out of a
// bundled one) without importing internal packages directly.
type BuiltinLibrary interface {
	Lookup(name string) (Tool, bool)
}

// registryLibrary adapts a *ToolRegistry to BuiltinLibrary.
type registryLibrary struct {
	registry *ToolRegistry
}

func (l registryLibrary) Lookup(name string) (Tool, bool) {
	return l.registry.Get(name)
}

// ToolContext is the shared API surface handed to every dynamically
// loaded tool in addition to its own Execute call: its working
// directory, a shell-exec shim, a handle to the rest of the built-in
// tool library, a schema-builder helper, and a UI handle that degrades
// to ErrNoUI when nothing is attached.
type ToolContext struct {
	Cwd      string
	Exec     ExecFunc
	Builtins BuiltinLibrary
	Schema   *SchemaBuilder

	ui    UIHandle
	hasUI bool
}

// NewToolContext builds the shared dynamic-tool API surface for a
// given working directory, exec shim and tool registry.
func NewToolContext(cwd string, exec ExecFunc, registry *ToolRegistry) *ToolContext {
	return &ToolContext{
		Cwd:      cwd,
		Exec:     exec,
		Builtins: registryLibrary{registry: registry},
		Schema:   NewSchemaBuilder(),
		ui:       noopUI{},
	}
}

// SetUIContext installs the active UI handle. Pass hasUI=false (with
// any handle, including nil) to make HasUI report false and fall back
// to the no-op handle for every call.
func (c *ToolContext) SetUIContext(ui UIHandle, hasUI bool) {
	c.hasUI = hasUI
	if hasUI && ui != nil {
		c.ui = ui
		return
	}
	c.ui = noopUI{}
}

// HasUI reports whether a real UI handle is currently attached.
func (c *ToolContext) HasUI() bool {
	return c.hasUI
}

// UI returns the active UI handle, or a no-op handle that fails
// recoverably if none is attached.
func (c *ToolContext) UI() UIHandle {
	return c.ui
}

// ContextAwareTool is an optional interface a dynamically loaded tool
// may implement to receive the shared API surface once, right after
// it is loaded.
type ContextAwareTool interface {
	Tool
	SetToolContext(ctx *ToolContext)
}

// ApplyToolContext hands the shared API surface to every named tool in
// the registry that implements ContextAwareTool; names that don't
// resolve or don't opt in are silently skipped. Called once after
// DiscoverAndLoad for each tier's newly loaded tool names.
func ApplyToolContext(registry *ToolRegistry, names []string, toolCtx *ToolContext) {
	for _, name := range names {
		tool, ok := registry.Get(name)
		if !ok {
			continue
		}
		if aware, ok := tool.(ContextAwareTool); ok {
			aware.SetToolContext(toolCtx)
		}
	}
}
