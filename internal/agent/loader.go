package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// dynamicToolEntryFile is the file name a tool's entry point resolves
// to on platforms where the Go plugin loader is available; the loader
// only ever opens "index.so" inside a tool directory.
const dynamicToolEntryFile = "index.so"

// LoadResult reports the outcome of one discovery tier's directory walk.
type LoadResult struct {
	Source ToolSource
	Root   string
	Loaded []string
	Errors []error
}

// DiscoverAndLoad walks the global, project, plugin and explicit-path
// tool directories in precedence order and registers every tool it can
// load. Errors loading an individual tool directory are collected and
// returned alongside the per-tier results rather than aborting the
// remaining walk, matching the registry's "never raised to callers"
// policy for dynamic tool discovery.
func DiscoverAndLoad(registry *ToolRegistry, globalRoot, projectRoot string, pluginRoots, explicitPaths []string) []LoadResult {
	var results []LoadResult

	if globalRoot != "" {
		results = append(results, loadToolDir(registry, filepath.Join(globalRoot, "tools"), SourceGlobal))
	}
	if projectRoot != "" {
		results = append(results, loadToolDir(registry, filepath.Join(projectRoot, ".pi", "tools"), SourceProject))
	}
	for _, root := range pluginRoots {
		results = append(results, loadToolDir(registry, root, SourcePlugin))
	}
	for _, path := range explicitPaths {
		results = append(results, loadExplicitTool(registry, path))
	}

	return results
}

// DefaultGlobalToolsDir returns the global tool discovery root,
// ~/.nexus, or an empty string if the home directory cannot be
// resolved (the caller then skips the global tier).
func DefaultGlobalToolsDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".nexus")
}

// loadToolDir scans a directory of tool-named subdirectories, each
// expected to contain an index.so plugin, and registers every one it
// can successfully load.
func loadToolDir(registry *ToolRegistry, root string, source ToolSource) LoadResult {
	result := LoadResult{Source: source, Root: root}

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return result
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("stat tool dir %s: %w", root, err))
		return result
	}
	if !info.IsDir() {
		result.Errors = append(result.Errors, fmt.Errorf("tool path %s is not a directory", root))
		return result
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("read tool dir %s: %w", root, err))
		return result
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		toolDir := filepath.Join(root, name)
		entryPath := filepath.Join(toolDir, dynamicToolEntryFile)
		if _, err := os.Stat(entryPath); os.IsNotExist(err) {
			continue
		}

		tool, err := loadToolPlugin(entryPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("load tool %s: %w", name, err))
			continue
		}

		if err := registry.RegisterFromSource(tool, source); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Loaded = append(result.Loaded, tool.Name())
	}

	return result
}

// loadExplicitTool loads a single tool plugin from an explicit path,
// either the plugin file itself or a directory containing index.so.
func loadExplicitTool(registry *ToolRegistry, path string) LoadResult {
	result := LoadResult{Source: SourceExplicit, Root: path}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("stat explicit tool path %s: %w", path, err))
		return result
	}

	entryPath := path
	if info.IsDir() {
		entryPath = filepath.Join(path, dynamicToolEntryFile)
	}

	tool, err := loadToolPlugin(entryPath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("load tool %s: %w", entryPath, err))
		return result
	}

	if err := registry.RegisterFromSource(tool, SourceExplicit); err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	result.Loaded = append(result.Loaded, tool.Name())
	return result
}
