package agent

import (
	"context"
	"encoding/json"
	"testing"
)

// testTool is a minimal Tool used to exercise registration rules.
type testTool struct {
	name string
}

func (t *testTool) Name() string            { return t.name }
func (t *testTool) Description() string     { return "test tool" }
func (t *testTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *testTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: t.name}, nil
}

func TestRegisterFromSourceFreshName(t *testing.T) {
	registry := NewToolRegistry()
	err := registry.RegisterFromSource(&testTool{name: "project_tool"}, SourceProject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := registry.Get("project_tool"); !ok {
		t.Fatal("expected tool to be registered")
	}
}

func TestRegisterFromSourceOverridesBundled(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&testTool{name: "shared"})

	if err := registry.RegisterFromSource(&testTool{name: "shared"}, SourceGlobal); err != nil {
		t.Fatalf("expected override of bundled tool to succeed, got %v", err)
	}
}

func TestRegisterFromSourceCollisionRejected(t *testing.T) {
	registry := NewToolRegistry()
	if err := registry.RegisterFromSource(&testTool{name: "shared"}, SourceProject); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := registry.RegisterFromSource(&testTool{name: "shared"}, SourcePlugin)
	var collision *NameCollision
	if err == nil {
		t.Fatal("expected NameCollision error")
	}
	if !asNameCollision(err, &collision) {
		t.Fatalf("expected *NameCollision, got %T: %v", err, err)
	}
	if collision.Existing != SourceProject || collision.Incoming != SourcePlugin {
		t.Errorf("unexpected collision fields: %+v", collision)
	}
}

func TestUnregisterBySource(t *testing.T) {
	registry := NewToolRegistry()
	_ = registry.RegisterFromSource(&testTool{name: "a"}, SourceProject)
	_ = registry.RegisterFromSource(&testTool{name: "b"}, SourceGlobal)

	registry.UnregisterBySource(SourceProject)

	if _, ok := registry.Get("a"); ok {
		t.Error("expected project-sourced tool to be removed")
	}
	if _, ok := registry.Get("b"); !ok {
		t.Error("expected global-sourced tool to remain")
	}
}

func asNameCollision(err error, out **NameCollision) bool {
	nc, ok := err.(*NameCollision)
	if ok {
		*out = nc
	}
	return ok
}
