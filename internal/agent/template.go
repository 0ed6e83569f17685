package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneralAgentName is reserved for the default, non-delegatable agent — it
// never appears in the delegate_to_agent tool's enum.
const GeneralAgentName = "general"

// AgentTemplate describes one delegation target: a persona with its own
// model, system prompt, and skill allowlist.
type AgentTemplate struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Model         string   `yaml:"model,omitempty"`
	ModelEnv      string   `yaml:"model_env,omitempty"` // indirection: read Model from this env var
	SystemPrompt  string   `yaml:"system_prompt,omitempty"`
	Skills        []string `yaml:"skills,omitempty"` // nil = all skills allowed
	MaxRounds     int      `yaml:"max_rounds,omitempty"`
	Temperature   float64  `yaml:"temperature,omitempty"`
	ContextWindow int      `yaml:"context_window,omitempty"`
	Builtin       bool     `yaml:"-"` // set by the loader, not persisted in the file itself
}

func (t *AgentTemplate) applyDefaults() {
	if t.MaxRounds <= 0 {
		t.MaxRounds = 5
	}
	if t.ContextWindow <= 0 {
		t.ContextWindow = 4
	}
	if t.ModelEnv != "" {
		if v := os.Getenv(t.ModelEnv); v != "" {
			t.Model = v
		}
	}
}

// SkillSet returns the template's skill allowlist as a lookup set, or nil
// for "all skills allowed".
func (t *AgentTemplate) SkillSet() map[string]bool {
	if t.Skills == nil {
		return nil
	}
	set := make(map[string]bool, len(t.Skills))
	for _, s := range t.Skills {
		set[s] = true
	}
	return set
}

const (
	builtinSubdir = "_builtin"
	customSubdir  = "custom"
)

// TemplateLoader loads agent templates from two directories: builtin
// templates shipped with the install, and custom ones a user authors or the
// product edits at runtime. A custom template with the same name as a
// builtin one overrides it entirely.
type TemplateLoader struct {
	builtinDir string
	customDir  string
}

func NewTemplateLoader(builtinDir, customDir string) *TemplateLoader {
	return &TemplateLoader{builtinDir: builtinDir, customDir: customDir}
}

// LoadAll reads every *.yaml/*.yml file from both directories and returns
// the merged map, keyed by template name.
func (l *TemplateLoader) LoadAll() (map[string]*AgentTemplate, error) {
	templates := make(map[string]*AgentTemplate)

	if err := l.loadDir(l.builtinDir, true, templates); err != nil {
		return nil, fmt.Errorf("load builtin agent templates: %w", err)
	}
	if err := l.loadDir(l.customDir, false, templates); err != nil {
		return nil, fmt.Errorf("load custom agent templates: %w", err)
	}
	return templates, nil
}

func (l *TemplateLoader) loadDir(dir string, builtin bool, out map[string]*AgentTemplate) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		tmpl, err := parseTemplateFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		tmpl.Builtin = builtin
		tmpl.applyDefaults()
		out[tmpl.Name] = tmpl
	}
	return nil
}

func parseTemplateFile(path string) (*AgentTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t AgentTemplate
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Name == "" {
		return nil, fmt.Errorf("template missing required field 'name'")
	}
	return &t, nil
}

// SaveTemplate writes a custom template file. Builtin templates cannot be
// overwritten through this path — callers editing a builtin template should
// save under a new name or accept it becomes a custom override.
func (l *TemplateLoader) SaveTemplate(t *AgentTemplate) error {
	if l.customDir == "" {
		return fmt.Errorf("no custom template directory configured")
	}
	if err := os.MkdirAll(l.customDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.customDir, t.Name+".yaml"), data, 0o644)
}

// DeleteTemplate removes a custom template by name. Builtin templates
// cannot be deleted this way.
func (l *TemplateLoader) DeleteTemplate(name string) error {
	if l.customDir == "" {
		return fmt.Errorf("no custom template directory configured")
	}
	path := filepath.Join(l.customDir, name+".yaml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sortedTemplateNames returns template names sorted alphabetically, for
// deterministic tool-schema enums.
func sortedTemplateNames(templates map[string]*AgentTemplate) []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		if name == GeneralAgentName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
