package agent

import (
	"context"
	"encoding/json"
	"testing"
)

type fakeContextAwareTool struct {
	name string
	ctx  *ToolContext
}

func (t *fakeContextAwareTool) Name() string            { return t.name }
func (t *fakeContextAwareTool) Description() string     { return "fake" }
func (t *fakeContextAwareTool) Schema() json.RawMessage  { return json.RawMessage(`{}`) }
func (t *fakeContextAwareTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "ok"}, nil
}
func (t *fakeContextAwareTool) SetToolContext(ctx *ToolContext) { t.ctx = ctx }

func TestNewToolContextDefaultsToNoopUI(t *testing.T) {
	registry := NewToolRegistry()
	ctx := NewToolContext("/workdir", nil, registry)

	if ctx.HasUI() {
		t.Fatal("expected no UI attached by default")
	}
	if _, err := ctx.UI().Input(context.Background(), "prompt"); err != ErrNoUI {
		t.Fatalf("expected ErrNoUI, got %v", err)
	}
}

type recordingUI struct{ notified []string }

func (u *recordingUI) Select(ctx context.Context, prompt string, options []string) (string, error) {
	return options[0], nil
}
func (u *recordingUI) Confirm(ctx context.Context, prompt string) (bool, error) { return true, nil }
func (u *recordingUI) Input(ctx context.Context, prompt string) (string, error) { return "value", nil }
func (u *recordingUI) Notify(ctx context.Context, message string)               { u.notified = append(u.notified, message) }
func (u *recordingUI) SetStatus(ctx context.Context, status string)             {}

func TestSetUIContextSwitchesActiveHandle(t *testing.T) {
	registry := NewToolRegistry()
	ctx := NewToolContext("/workdir", nil, registry)

	ui := &recordingUI{}
	ctx.SetUIContext(ui, true)
	if !ctx.HasUI() {
		t.Fatal("expected HasUI to report true")
	}
	ctx.UI().Notify(context.Background(), "hello")
	if len(ui.notified) != 1 || ui.notified[0] != "hello" {
		t.Fatalf("expected notify to reach the attached handle, got %+v", ui.notified)
	}

	ctx.SetUIContext(ui, false)
	if ctx.HasUI() {
		t.Fatal("expected HasUI to report false after detaching")
	}
	if _, err := ctx.UI().Input(context.Background(), "prompt"); err != ErrNoUI {
		t.Fatalf("expected fallback to no-op handle, got %v", err)
	}
}

func TestApplyToolContextOnlyAffectsContextAwareTools(t *testing.T) {
	registry := NewToolRegistry()
	aware := &fakeContextAwareTool{name: "aware-tool"}
	registry.Register(aware)

	toolCtx := NewToolContext("/workdir", nil, registry)
	ApplyToolContext(registry, []string{"aware-tool", "missing-tool"}, toolCtx)

	if aware.ctx != toolCtx {
		t.Fatal("expected ContextAwareTool to receive the shared tool context")
	}
}

func TestBuiltinLibraryLooksUpFromRegistry(t *testing.T) {
	registry := NewToolRegistry()
	aware := &fakeContextAwareTool{name: "lookup-me"}
	registry.Register(aware)

	ctx := NewToolContext("/workdir", nil, registry)
	tool, ok := ctx.Builtins.Lookup("lookup-me")
	if !ok || tool.Name() != "lookup-me" {
		t.Fatalf("expected to find registered tool via Builtins handle, ok=%v tool=%v", ok, tool)
	}
}

func TestSchemaBuilderBuildsObjectSchema(t *testing.T) {
	raw := NewSchemaBuilder().
		String("query", "search query", true).
		Number("limit", "max results", false).
		Enum("scope", "search scope", []string{"session", "global"}, false).
		Build()

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("expected valid JSON schema, got error: %v", err)
	}
	if decoded["type"] != "object" {
		t.Fatalf("expected object schema, got %v", decoded["type"])
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok || len(props) != 3 {
		t.Fatalf("expected 3 properties, got %+v", decoded["properties"])
	}
	required, ok := decoded["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("expected only query to be required, got %+v", decoded["required"])
	}
}

func TestSchemaBuilderOmitsRequiredWhenEmpty(t *testing.T) {
	raw := NewSchemaBuilder().String("note", "optional note", false).Build()
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := decoded["required"]; present {
		t.Fatal("expected no required key when nothing is required")
	}
}
