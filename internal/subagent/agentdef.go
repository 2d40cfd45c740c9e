package subagent

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterDelimiter marks the beginning and end of an agent
// definition's YAML front matter, same convention as skills' SKILL.md.
const frontmatterDelimiter = "---"

// AgentSource identifies the discovery tier an agent definition was
// loaded from.
type AgentSource string

const (
	SourceBundled AgentSource = "bundled"
	SourceUser    AgentSource = "user"
	SourceProject AgentSource = "project"
)

// AgentDefinition describes a sub-agent loadable from a Markdown file
// with YAML front matter.
type AgentDefinition struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	Tools        string      `yaml:"tools"`
	Model        string      `yaml:"model"`
	Recursive    bool        `yaml:"recursive"`
	SystemPrompt string      `yaml:"-"`
	Source       AgentSource `yaml:"-"`
	FilePath     string      `yaml:"-"`
}

// ToolList splits the comma-separated Tools field into a trimmed slice.
func (d *AgentDefinition) ToolList() []string {
	if strings.TrimSpace(d.Tools) == "" {
		return nil
	}
	parts := strings.Split(d.Tools, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			list = append(list, p)
		}
	}
	return list
}

// ParseAgentFile reads and parses a single agent definition file.
func ParseAgentFile(path string) (*AgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent file: %w", err)
	}
	def, err := parseAgentDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parse agent file %s: %w", path, err)
	}
	def.FilePath = path
	return def, nil
}

func parseAgentDefinition(data []byte) (*AgentDefinition, error) {
	frontmatter, body, err := splitAgentFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var def AgentDefinition
	if err := yaml.Unmarshal(frontmatter, &def); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	if def.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if def.Description == "" {
		return nil, fmt.Errorf("agent description is required")
	}

	def.SystemPrompt = strings.TrimSpace(string(body))
	return &def, nil
}

func splitAgentFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !closed {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner error: %w", err)
	}

	return []byte(strings.Join(frontmatterLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}

// DiscoverAgents loads agent definitions from the bundled, user and
// project tiers in that precedence order (project wins, then user,
// then bundled), with a ".pi/agents" tree overriding a ".claude/agents"
// tree within the same tier. Per-file load failures are collected into
// the returned error slice rather than aborting discovery.
func DiscoverAgents(bundledDir, userHome, projectRoot string) (map[string]*AgentDefinition, []error) {
	defs := make(map[string]*AgentDefinition)
	var errs []error

	tiers := []struct {
		root   string
		source AgentSource
	}{
		{bundledDir, SourceBundled},
		{userHome, SourceUser},
		{projectRoot, SourceProject},
	}

	for _, tier := range tiers {
		if strings.TrimSpace(tier.root) == "" {
			continue
		}
		for _, sub := range []string{".claude/agents", ".pi/agents"} {
			dir := filepath.Join(tier.root, filepath.FromSlash(sub))
			loaded, loadErrs := loadAgentDir(dir, tier.source)
			errs = append(errs, loadErrs...)
			for name, def := range loaded {
				defs[name] = def
			}
		}
	}

	return defs, errs
}

func loadAgentDir(dir string, source AgentSource) (map[string]*AgentDefinition, []error) {
	defs := make(map[string]*AgentDefinition)
	var errs []error

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return defs, errs
	}
	if err != nil {
		return defs, append(errs, fmt.Errorf("read agent dir %s: %w", dir, err))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".md") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		def, err := ParseAgentFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		def.Source = source
		defs[def.Name] = def
	}

	return defs, errs
}
