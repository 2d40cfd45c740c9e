package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/mcp"
)

// MCPConfigFilename is the well-known filename for RTS server
// configuration, resolved at both user and project scope.
const MCPConfigFilename = "mcp.json"

// mcpConfigFile is the on-disk JSON shape of .pi/mcp.json.
type mcpConfigFile struct {
	Servers map[string]mcp.ServerConfig `json:"mcpServers"`
}

// LoadMCPConfig merges the user-level then project-level mcp.json,
// project entries overriding user entries by server ID, expanding
// `${VAR}`/`${VAR:-default}` references in every string value before
// parsing.
func LoadMCPConfig(userHome, projectRoot string) (map[string]mcp.ServerConfig, error) {
	merged := make(map[string]mcp.ServerConfig)

	for _, root := range []string{userHome, projectRoot} {
		if strings.TrimSpace(root) == "" {
			continue
		}
		path := filepath.Join(root, ".pi", MCPConfigFilename)
		servers, err := loadMCPConfigFile(path)
		if err != nil {
			return nil, err
		}
		for id, cfg := range servers {
			cfg.ID = id
			merged[id] = cfg
		}
	}

	return merged, nil
}

func loadMCPConfigFile(path string) (map[string]mcp.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mcp config %s: %w", path, err)
	}

	expanded := expandEnvWithDefaults(string(data))

	var file mcpConfigFile
	if err := json.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parse mcp config %s: %w", path, err)
	}

	for id, cfg := range file.Servers {
		cfg.ID = id
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("mcp config %s: server %q: %w", path, id, err)
		}
		file.Servers[id] = cfg
	}

	return file.Servers, nil
}

// envRefPattern matches ${VAR} and ${VAR:-default}.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default} references,
// the latter substituting default when VAR is unset or empty,
// matching shell parameter-expansion semantics.
func expandEnvWithDefaults(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envRefPattern.FindStringSubmatch(match)
		name := groups[1]
		hasDefault := groups[2] != ""
		value, set := os.LookupEnv(name)
		if set && value != "" {
			return value
		}
		if hasDefault {
			return groups[3]
		}
		return ""
	})
}
