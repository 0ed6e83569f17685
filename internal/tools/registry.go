// Package tools implements the skill registry and a handful of built-in
// skills. A skill is a named, schema-typed callable exposed to the LLM as a
// function-calling tool: the registry is the uniform invocation surface the
// chat orchestrator and the agent router both dispatch through.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Skill is the interface every tool implements.
type Skill interface {
	Name() string
	Description() string
	// Parameters returns a JSON-Schema object: {type, properties, required}.
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolDefinition is the wire-shaped function-calling descriptor sent to the
// LLM, matching providers.ToolDefinition's {type, function: {name,
// description, parameters}} shape.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Registry is the uniform invocation surface for skills. Skills are added
// with Register and removed with Unregister; both are guarded by the
// registry's lock, so they are safe alongside concurrent lookups.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

func (r *Registry) Register(skill Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[skill.Name()] = skill
	slog.Info("skill registered", "name", skill.Name())
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.skills, name)
}

func (r *Registry) Get(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// All returns every registered skill, sorted by name for deterministic
// tool-list ordering in the LLM request.
func (r *Registry) All() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Subset returns the registered skills whose name is in allowed. A nil
// allowed means "all skills" (unrestricted).
func (r *Registry) Subset(allowed map[string]bool) []Skill {
	if allowed == nil {
		return r.All()
	}
	all := r.All()
	out := make([]Skill, 0, len(allowed))
	for _, s := range all {
		if allowed[s.Name()] {
			out = append(out, s)
		}
	}
	return out
}

// ToolDefinitions builds the LLM-facing function-calling descriptors for a
// set of skills.
func ToolDefinitions(skills []Skill) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(skills))
	for _, s := range skills {
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: ToolFunctionSchema{
				Name:        s.Name(),
				Description: s.Description(),
				Parameters:  s.Parameters(),
			},
		})
	}
	return defs
}

// Execute looks up a skill by name and runs it. Failure is not exceptional
// at the registry boundary: an unknown name and an execution error both
// resolve to a stringified error message so the LLM can observe and react
// to it as an ordinary tool result, never as a Go error bubbling up through
// the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	skill, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("error: skill %q not found", name)
	}

	filtered, dropped := FilterArgs(skill.Parameters(), args)
	if len(dropped) > 0 {
		slog.Debug("dropped unknown tool arguments", "skill", name, "dropped", dropped)
	}

	result, err := skill.Execute(ctx, filtered)
	if err != nil {
		slog.Warn("skill execution failed", "skill", name, "error", err)
		return fmt.Sprintf("error: %s", err)
	}
	return result
}
