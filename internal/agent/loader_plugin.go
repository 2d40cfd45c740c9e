//go:build !windows

package agent

import (
	"fmt"
	"plugin"
)

const toolPluginSymbol = "DynamicTool"

// loadToolPlugin opens a Go plugin built with -buildmode=plugin and
// looks up its exported DynamicTool symbol, which must implement Tool.
func loadToolPlugin(path string) (Tool, error) {
	plug, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}

	symbol, err := plug.Lookup(toolPluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", toolPluginSymbol, err)
	}

	switch v := symbol.(type) {
	case Tool:
		return v, nil
	case *Tool:
		return *v, nil
	default:
		return nil, fmt.Errorf("plugin symbol %s does not implement Tool", toolPluginSymbol)
	}
}
