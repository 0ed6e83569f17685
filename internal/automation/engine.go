// Package automation implements the event-to-action rule engine: rules
// subscribe to the event bus, match on event type and filter conditions,
// and fire one of four action kinds with `{{event.*}}` variables substituted
// into the action's configuration.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/clara/internal/eventbus"
)

// Action kinds a rule may fire.
const (
	ActionRunSkill         = "run_skill"
	ActionRunScript        = "run_script"
	ActionSendNotification = "send_notification"
	ActionSendMessage      = "send_message"
)

// Rule is one event→action automation.
type Rule struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Enabled      *bool                  `json:"enabled,omitempty"` // nil = enabled (default)
	EventType    string                 `json:"event_type"`
	EventFilter  map[string]interface{} `json:"event_filter,omitempty"`
	ActionType   string                 `json:"action_type"`
	ActionConfig map[string]interface{} `json:"action_config"`
}

// IsEnabled reports whether the rule fires, treating an unset Enabled field
// as enabled so a caller that never mentions it gets the expected default
// without AddRule having to force the flag on.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// SkillExecutor runs a named skill with substituted args — the registry's
// Execute signature, narrowed to what the engine needs.
type SkillExecutor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) string
}

// ScriptRunner runs a named script with a variable scope.
type ScriptRunner interface {
	Run(ctx context.Context, name string, vars map[string]string) (string, error)
}

// Notifier fans a message out across channels.
type Notifier interface {
	Notify(ctx context.Context, message string, channels []string)
}

// Orchestrator invokes a user-shaped turn on a synthetic session and returns
// the assistant's reply text — the send_message action's "proactive
// message" path.
type Orchestrator interface {
	HandleSynthetic(ctx context.Context, sessionID, text string) (string, error)
}

// Engine subscribes to every event on the bus and evaluates each enabled
// rule against it.
type Engine struct {
	mu       sync.RWMutex
	rules    map[string]*Rule
	path     string
	nextID   int
	bus      *eventbus.Bus
	skills   SkillExecutor
	scripts  ScriptRunner
	notifier Notifier
	orch     Orchestrator
}

func New(storageDir string, bus *eventbus.Bus, skills SkillExecutor, scripts ScriptRunner, notifier Notifier, orch Orchestrator) *Engine {
	e := &Engine{
		rules:    make(map[string]*Rule),
		bus:      bus,
		skills:   skills,
		scripts:  scripts,
		notifier: notifier,
		orch:     orch,
	}
	if storageDir != "" {
		e.path = filepath.Join(storageDir, "rules.json")
		e.load()
	}
	bus.SubscribeAll(e.onEvent)
	return e
}

// AddRule registers a new rule, rejecting a duplicate name.
func (e *Engine) AddRule(r Rule) (*Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.Name == r.Name {
			return nil, fmt.Errorf("automation rule %q already exists", r.Name)
		}
	}
	e.nextID++
	r.ID = fmt.Sprintf("rule-%d", e.nextID)
	e.rules[r.ID] = &r
	return &r, e.saveLocked()
}

// RemoveRule deletes a rule by ID.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
	return e.saveLocked()
}

// ToggleRule flips a rule's enabled flag.
func (e *Engine) ToggleRule(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("automation rule %q not found", id)
	}
	r.Enabled = &enabled
	return e.saveLocked()
}

// ListRules returns every rule, order unspecified.
func (e *Engine) ListRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, *r)
	}
	return out
}

func (e *Engine) onEvent(evt eventbus.Event) {
	e.mu.RLock()
	var matched []*Rule
	for _, r := range e.rules {
		if !r.IsEnabled() || r.EventType != evt.Type {
			continue
		}
		if matchesFilter(r.EventFilter, evt) {
			matched = append(matched, r)
		}
	}
	e.mu.RUnlock()

	for _, r := range matched {
		e.execute(context.Background(), r, evt)
	}
}

// matchesFilter implements the filter language: "source" compares against
// evt.Source; "data.<dotted.path>" walks the event data map and
// equality-compares the leaf; a missing path never matches.
func matchesFilter(filter map[string]interface{}, evt eventbus.Event) bool {
	for key, want := range filter {
		if key == "source" {
			if evt.Source != fmt.Sprintf("%v", want) {
				return false
			}
			continue
		}
		if path, ok := strings.CutPrefix(key, "data."); ok {
			got, found := walkPath(evt.Data, strings.Split(path, "."))
			if !found || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
				return false
			}
			continue
		}
	}
	return true
}

func walkPath(data map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = data
	for _, segment := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[segment]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

var templateVarPattern = regexp.MustCompile(`\{\{\s*(event\.[^}]+)\s*\}\}`)

// substituteVars replaces occurrences of {{event.type}}, {{event.source}},
// and {{event.data.<dotted.path>}} in s with the corresponding event field.
// A missing path substitutes the empty string.
func substituteVars(s string, evt eventbus.Event) string {
	return templateVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(templateVarPattern.FindStringSubmatch(match)[1])
		switch {
		case expr == "event.type":
			return evt.Type
		case expr == "event.source":
			return evt.Source
		case strings.HasPrefix(expr, "event.data."):
			path := strings.TrimPrefix(expr, "event.data.")
			v, found := walkPath(evt.Data, strings.Split(path, "."))
			if !found {
				return ""
			}
			return fmt.Sprintf("%v", v)
		default:
			return ""
		}
	})
}

// substituteConfig walks an action config and replaces every string value —
// including those nested inside maps (run_skill's "args", run_script's
// "variables") and slices (send_notification's "channels") — with its
// {{event.*}}-substituted form.
func substituteConfig(config map[string]interface{}, evt eventbus.Event) map[string]interface{} {
	out := make(map[string]interface{}, len(config))
	for k, v := range config {
		out[k] = substituteValue(v, evt)
	}
	return out
}

func substituteValue(v interface{}, evt eventbus.Event) interface{} {
	switch val := v.(type) {
	case string:
		return substituteVars(val, evt)
	case map[string]interface{}:
		return substituteConfig(val, evt)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, evt)
		}
		return out
	default:
		return v
	}
}

func (e *Engine) execute(ctx context.Context, r *Rule, evt eventbus.Event) {
	cfg := substituteConfig(r.ActionConfig, evt)

	switch r.ActionType {
	case ActionRunSkill:
		name, _ := cfg["skill"].(string)
		args, _ := cfg["args"].(map[string]interface{})
		if e.skills == nil || name == "" {
			return
		}
		e.skills.Execute(ctx, name, args)

	case ActionRunScript:
		name, _ := cfg["script"].(string)
		if e.scripts == nil || name == "" {
			return
		}
		vars := make(map[string]string)
		if raw, ok := cfg["variables"].(map[string]interface{}); ok {
			for k, v := range raw {
				vars[k] = fmt.Sprintf("%v", v)
			}
		}
		if _, err := e.scripts.Run(ctx, name, vars); err != nil {
			slog.Warn("automation: run_script action failed", "rule", r.Name, "error", err)
		}

	case ActionSendNotification:
		message, _ := cfg["message"].(string)
		var channels []string
		if raw, ok := cfg["channels"].([]interface{}); ok {
			for _, c := range raw {
				channels = append(channels, fmt.Sprintf("%v", c))
			}
		}
		if e.notifier == nil || message == "" {
			return
		}
		e.notifier.Notify(ctx, message, channels)

	case ActionSendMessage:
		text, _ := cfg["message"].(string)
		if e.orch == nil || text == "" {
			return
		}
		reply, err := e.orch.HandleSynthetic(ctx, "automation-internal", text)
		if err != nil {
			slog.Warn("automation: send_message action failed", "rule", r.Name, "error", err)
			return
		}
		if e.notifier != nil && reply != "" {
			e.notifier.Notify(ctx, reply, nil)
		}

	default:
		slog.Warn("automation: unknown action type", "rule", r.Name, "type", r.ActionType)
	}
}

func (e *Engine) saveLocked() error {
	if e.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e.rules, "", "  ")
	if err != nil {
		return err
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, e.path)
}

func (e *Engine) load() {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return
	}
	var rules map[string]*Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		slog.Warn("automation: failed to parse persisted rules", "error", err)
		return
	}
	e.rules = rules
	for _, r := range rules {
		var n int
		fmt.Sscanf(r.ID, "rule-%d", &n)
		if n > e.nextID {
			e.nextID = n
		}
	}
}
