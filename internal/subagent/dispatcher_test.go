package subagent

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"
)

func testAgents() map[string]*AgentDefinition {
	return map[string]*AgentDefinition{
		"researcher": {Name: "researcher", Description: "looks things up", Recursive: false},
		"recursive-agent": {Name: "recursive-agent", Description: "may spawn children", Recursive: true},
	}
}

func shellChildCommand(script string) ChildCommandFunc {
	return func(ctx context.Context, def *AgentDefinition, task Task) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "/usr/bin/sh", "-c", script), nil
	}
}

func TestDispatcherRunOrdersResultsByInput(t *testing.T) {
	script := `echo '{"current_tool":"grep","tool_count":1}'; echo "done: $1"`
	d := NewDispatcher(testAgents(), func(ctx context.Context, def *AgentDefinition, task Task) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "/usr/bin/sh", "-c", script, "sh", task.Prompt), nil
	}, nil)

	tasks := []Task{
		{AgentName: "researcher", Prompt: "first"},
		{AgentName: "researcher", Prompt: "second"},
		{AgentName: "researcher", Prompt: "third"},
	}

	var updates int
	runs, err := d.Run(context.Background(), tasks, func(index int, p Progress) { updates++ })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, r := range runs {
		if r.Index != i {
			t.Errorf("run %d has Index %d, results must stay in input order", i, r.Index)
		}
		if r.Status != "completed" {
			t.Errorf("run %d: expected completed, got %s (%s)", i, r.Status, r.Error)
		}
	}
	if updates == 0 {
		t.Error("expected at least one progress update")
	}
}

func TestDispatcherRunUnknownAgent(t *testing.T) {
	d := NewDispatcher(testAgents(), shellChildCommand("true"), nil)
	runs, err := d.Run(context.Background(), []Task{{AgentName: "ghost", Prompt: "x"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs[0].Status != "failed" {
		t.Fatalf("expected failed status for unknown agent, got %s", runs[0].Status)
	}
}

func TestDispatcherRunRespectsNoSubagentsFlag(t *testing.T) {
	t.Setenv(NoSubagentsEnv, "1")
	d := NewDispatcher(testAgents(), shellChildCommand("echo hi"), nil)
	runs, err := d.Run(context.Background(), []Task{{AgentName: "researcher", Prompt: "x"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs[0].Status != "failed" {
		t.Fatalf("expected spawning to be refused, got status %s", runs[0].Status)
	}
}

func TestDispatcherRunRejectsOversizedBatch(t *testing.T) {
	d := NewDispatcher(testAgents(), shellChildCommand("true"), nil)
	d.SetConcurrencyLimits(4, 2)

	tasks := []Task{
		{AgentName: "researcher", Prompt: "a"},
		{AgentName: "researcher", Prompt: "b"},
		{AgentName: "researcher", Prompt: "c"},
	}
	if _, err := d.Run(context.Background(), tasks, nil); err == nil {
		t.Fatal("expected a batch over the max to fail fast")
	}
}

func TestDispatcherChildEnvSetsRecursionFlagUnlessRecursive(t *testing.T) {
	def := testAgents()["researcher"]
	env := childEnv(def)
	found := false
	for _, kv := range env {
		if kv == NoSubagentsEnv+"=1" {
			found = true
		}
	}
	if !found {
		t.Error("expected non-recursive agent's child env to set PI_NO_SUBAGENTS")
	}

	recursiveDef := testAgents()["recursive-agent"]
	env = childEnv(recursiveDef)
	for _, kv := range env {
		if kv == NoSubagentsEnv+"=1" {
			t.Error("recursive agent's child env must not set PI_NO_SUBAGENTS")
		}
	}
}

func TestDispatcherWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	d := NewDispatcher(testAgents(), shellChildCommand(`echo output`), func() (string, error) {
		return dir, nil
	})

	runs, err := d.Run(context.Background(), []Task{{AgentName: "researcher", Prompt: "task text"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run := runs[0]
	if run.Artifacts.InputPath == "" || run.Artifacts.OutputPath == "" {
		t.Fatal("expected artifact paths to be recorded")
	}
	if _, err := os.Stat(run.Artifacts.InputPath); err != nil {
		t.Errorf("expected input artifact to exist: %v", err)
	}
	if _, err := os.Stat(run.Artifacts.OutputPath); err != nil {
		t.Errorf("expected output artifact to exist: %v", err)
	}
}

func TestDispatcherRunContextCancellation(t *testing.T) {
	d := NewDispatcher(testAgents(), func(ctx context.Context, def *AgentDefinition, task Task) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "/usr/bin/sh", "-c", "sleep 5"), nil
	}, nil)
	d.SetConcurrencyLimits(1, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	runs, err := d.Run(ctx, []Task{
		{AgentName: "researcher", Prompt: "a"},
		{AgentName: "researcher", Prompt: "b"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failedCount := 0
	for _, r := range runs {
		if r.Status == "failed" {
			failedCount++
		}
	}
	if failedCount == 0 {
		t.Error("expected at least one run to fail when context deadline is exceeded")
	}
}
