package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMCPConfig(t *testing.T, root, contents string) {
	t.Helper()
	dir := filepath.Join(root, ".pi")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MCPConfigFilename), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("MCP_TOKEN", "secret123")
	os.Unsetenv("MCP_MISSING")

	in := `{"token":"${MCP_TOKEN}","fallback":"${MCP_MISSING:-defaultValue}"}`
	out := expandEnvWithDefaults(in)
	want := `{"token":"secret123","fallback":"defaultValue"}`
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestExpandEnvWithDefaultsEmptyValueUsesDefault(t *testing.T) {
	t.Setenv("MCP_EMPTY", "")
	out := expandEnvWithDefaults(`${MCP_EMPTY:-fallback}`)
	if out != "fallback" {
		t.Fatalf("expected fallback for empty-but-set var, got %q", out)
	}
}

func TestLoadMCPConfigMergesUserAndProjectByID(t *testing.T) {
	userHome := t.TempDir()
	projectRoot := t.TempDir()

	writeMCPConfig(t, userHome, `{
		"mcpServers": {
			"github": {"transport": "stdio", "command": "github-mcp"},
			"shared": {"transport": "stdio", "command": "user-shared"}
		}
	}`)
	writeMCPConfig(t, projectRoot, `{
		"mcpServers": {
			"shared": {"transport": "stdio", "command": "project-shared"},
			"local": {"transport": "stdio", "command": "local-mcp"}
		}
	}`)

	servers, err := LoadMCPConfig(userHome, projectRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(servers) != 3 {
		t.Fatalf("expected 3 merged servers, got %d: %+v", len(servers), servers)
	}
	if servers["shared"].Command != "project-shared" {
		t.Errorf("expected project config to override user config for shared id, got %q", servers["shared"].Command)
	}
	if servers["github"].Command != "github-mcp" {
		t.Errorf("expected user-only server to survive the merge")
	}
	if servers["local"].Command != "local-mcp" {
		t.Errorf("expected project-only server to survive the merge")
	}
}

func TestLoadMCPConfigMissingFilesAreNotAnError(t *testing.T) {
	servers, err := LoadMCPConfig(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(servers) != 0 {
		t.Fatalf("expected no servers, got %d", len(servers))
	}
}

func TestLoadMCPConfigRejectsInvalidServer(t *testing.T) {
	root := t.TempDir()
	writeMCPConfig(t, root, `{"mcpServers": {"": {"transport": "stdio", "command": "x"}}}`)

	if _, err := LoadMCPConfig(root, ""); err == nil {
		t.Fatal("expected validation error for empty server id")
	}
}
