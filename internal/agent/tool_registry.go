package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolSource identifies where a dynamically loaded tool came from, used
// to resolve name collisions by precedence rather than load order.
type ToolSource string

const (
	SourceBundled ToolSource = "bundled"
	SourceGlobal  ToolSource = "global"
	SourceProject ToolSource = "project"
	SourcePlugin  ToolSource = "plugin"
	SourceExplicit ToolSource = "explicit"
)

// NameCollision reports an attempt to register a tool name that is
// already held by a registration this registry will not override.
type NameCollision struct {
	Name     string
	Existing ToolSource
	Incoming ToolSource
}

func (e *NameCollision) Error() string {
	return fmt.Sprintf("tool %q already registered from source %q, refusing registration from %q", e.Name, e.Existing, e.Incoming)
}

type registeredTool struct {
	tool   Tool
	source ToolSource
}

// ToolRegistry manages available tools with thread-safe registration and lookup.
// Tools are registered by name and can be retrieved for execution during agent conversations.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewToolRegistry creates a new empty tool registry ready for tool registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool to the registry by its name, attributing it to
// the bundled source. If a tool with the same name already exists, it
// is replaced, matching the registry's original unconditional-override
// behavior for statically wired tools.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = registeredTool{tool: tool, source: SourceBundled}
}

// RegisterFromSource adds a dynamically discovered tool, enforcing
// source-precedence collision rules: a registration only overrides an
// existing one of the same name if the existing one came from the
// bundled source (the weakest precedence). Any other existing source
// wins and RegisterFromSource returns a *NameCollision.
func (r *ToolRegistry) RegisterFromSource(tool Tool, source ToolSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if existing, ok := r.tools[name]; ok && existing.source != SourceBundled {
		return &NameCollision{Name: name, Existing: existing.source, Incoming: source}
	}
	r.tools[name] = registeredTool{tool: tool, source: source}
	return nil
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// UnregisterBySource removes every tool registered from the given
// source, used when reloading a single discovery tier (e.g. a project
// directory) without disturbing tools loaded from other tiers.
func (r *ToolRegistry) UnregisterBySource(source ToolSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, rt := range r.tools {
		if rt.source == source {
			delete(r.tools, name)
		}
	}
}

// Get returns a tool by name and a boolean indicating if it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// Tool parameter limits to prevent resource exhaustion
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

// Execute runs a tool by name with the given JSON parameters.
// Returns an error result if the tool is not found or parameters are invalid.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	// Validate tool name
	if len(name) > MaxToolNameLength {
		return &ToolResult{
			Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength),
			IsError: true,
		}, nil
	}

	// Validate params size
	if len(params) > MaxToolParamsSize {
		return &ToolResult{
			Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
			IsError: true,
		}, nil
	}

	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolResult{
			Content: "tool not found: " + name,
			IsError: true,
		}, nil
	}
	return rt.tool.Execute(ctx, params)
}

// AsLLMTools returns all registered tools as a slice for passing to LLM providers.
func (r *ToolRegistry) AsLLMTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, rt := range r.tools {
		tools = append(tools, rt.tool)
	}
	return tools
}
