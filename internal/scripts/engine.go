// Package scripts implements named, persisted multi-step skill scripts:
// ordered steps executed in sequence, with ${var} substitution and
// step-to-step result chaining.
package scripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/clara/internal/tools"
)

// errorSentinel prefixes a skill result that represents a failure; a step
// with StopOnError halts the run when its result starts with this. Must
// match the registry's own error-result prefix (see tools.Registry.Execute).
const errorSentinel = "error:"

// Step is one ordered action in a script.
type Step struct {
	Skill       string                 `yaml:"skill"`
	Args        map[string]interface{} `yaml:"args,omitempty"`
	StopOnError bool                   `yaml:"stop_on_error,omitempty"`
}

// Script is a named, ordered sequence of skill invocations.
type Script struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Summary is the list_scripts projection: enough to show without loading
// every script body.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
}

// Engine persists scripts as YAML files under a directory and runs them
// against a skill registry.
type Engine struct {
	dir      string
	registry *tools.Registry
}

func New(dir string, registry *tools.Registry) *Engine {
	return &Engine{dir: dir, registry: registry}
}

func (e *Engine) path(name string) string {
	return filepath.Join(e.dir, name+".yaml")
}

// Create writes a new named script, refusing to overwrite an existing one.
func (e *Engine) Create(name, description string, steps []Step) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", err
	}
	path := e.path(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Sprintf("script %q already exists", name), nil
	}
	data, err := yaml.Marshal(Script{Name: name, Description: description, Steps: steps})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("script %q created with %d steps", name, len(steps)), nil
}

// Delete removes a named script.
func (e *Engine) Delete(name string) (string, error) {
	path := e.path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Sprintf("script %q not found", name), nil
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return fmt.Sprintf("script %q deleted", name), nil
}

// List returns a summary of every persisted script, sorted by name.
func (e *Engine) List() ([]Summary, error) {
	entries, err := os.ReadDir(e.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".yaml") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]Summary, 0, len(names))
	for _, fname := range names {
		stem := strings.TrimSuffix(fname, filepath.Ext(fname))
		script, err := e.loadFile(filepath.Join(e.dir, fname))
		if err != nil {
			out = append(out, Summary{Name: stem, Description: "(failed to load)"})
			continue
		}
		out = append(out, Summary{Name: script.Name, Description: script.Description, Steps: len(script.Steps)})
	}
	return out, nil
}

// Get loads one script by name, or nil if it doesn't exist.
func (e *Engine) Get(name string) (*Script, error) {
	path := e.path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return e.loadFile(path)
}

func (e *Engine) loadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

var varPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func substitute(text string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// Run executes a script's steps in order, substituting ${var} references in
// string args from the given variables plus each prior step's
// step_<n>_result. It returns the concatenation of per-step summaries, or a
// not-found message if the script doesn't exist.
func (e *Engine) Run(ctx context.Context, name string, vars map[string]string) (string, error) {
	script, err := e.Get(name)
	if err != nil {
		return "", err
	}
	if script == nil {
		return fmt.Sprintf("script %q not found", name), nil
	}

	scope := make(map[string]string, len(vars))
	for k, v := range vars {
		scope[k] = v
	}

	var results []string
	for i, step := range script.Steps {
		n := i + 1
		args := make(map[string]interface{}, len(step.Args))
		for k, v := range step.Args {
			if s, ok := v.(string); ok {
				args[k] = substitute(s, scope)
			} else {
				args[k] = v
			}
		}

		result := e.registry.Execute(ctx, step.Skill, args)
		results = append(results, fmt.Sprintf("Step %d (%s): %s", n, step.Skill, result))
		scope[fmt.Sprintf("step_%d_result", n)] = result

		if step.StopOnError && strings.HasPrefix(result, errorSentinel) {
			results = append(results, fmt.Sprintf("Script aborted at step %d due to error.", n))
			break
		}
	}

	return strings.Join(results, "\n\n"), nil
}
