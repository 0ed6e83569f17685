package tools

import (
	"context"
	"errors"
	"testing"
)

type stubSkill struct {
	name   string
	result string
	err    error
	params map[string]interface{}
}

func (s *stubSkill) Name() string        { return s.name }
func (s *stubSkill) Description() string { return "stub" }
func (s *stubSkill) Parameters() map[string]interface{} {
	if s.params != nil {
		return s.params
	}
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (s *stubSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return s.result, s.err
}

func TestRegistry_ExecuteUnknownSkillReturnsErrorString(t *testing.T) {
	r := NewRegistry()
	got := r.Execute(context.Background(), "nonexistent", nil)
	if got != `error: skill "nonexistent" not found` {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestRegistry_ExecuteSkillErrorBecomesString(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSkill{name: "boom", err: errors.New("disk full")})
	got := r.Execute(context.Background(), "boom", nil)
	if got != "error: disk full" {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestRegistry_ExecuteFiltersArgsBeforeDispatch(t *testing.T) {
	r := NewRegistry()
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
	}
	var seen map[string]interface{}
	r.Register(&captureSkill{name: "fm", schema: schema, onExecute: func(args map[string]interface{}) {
		seen = args
	}})

	r.Execute(context.Background(), "fm", map[string]interface{}{"path": "/tmp", "extra": "drop me"})
	if _, ok := seen["extra"]; ok {
		t.Fatalf("extra key should have been filtered before dispatch, got %+v", seen)
	}
	if seen["path"] != "/tmp" {
		t.Fatalf("expected path to survive, got %+v", seen)
	}
}

func TestRegistry_AllSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSkill{name: "zeta"})
	r.Register(&stubSkill{name: "alpha"})
	r.Register(&stubSkill{name: "mid"})

	all := r.All()
	if len(all) != 3 || all[0].Name() != "alpha" || all[1].Name() != "mid" || all[2].Name() != "zeta" {
		t.Fatalf("expected sorted skill list, got %+v", names(all))
	}
}

func TestRegistry_SubsetRestrictsToAllowed(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSkill{name: "a"})
	r.Register(&stubSkill{name: "b"})

	sub := r.Subset(map[string]bool{"a": true})
	if len(sub) != 1 || sub[0].Name() != "a" {
		t.Fatalf("expected only 'a', got %+v", names(sub))
	}

	all := r.Subset(nil)
	if len(all) != 2 {
		t.Fatalf("nil allowed should return every skill, got %+v", names(all))
	}
}

func names(skills []Skill) []string {
	out := make([]string, len(skills))
	for i, s := range skills {
		out[i] = s.Name()
	}
	return out
}

// captureSkill records the args it was actually invoked with, for asserting
// the registry filters before dispatch rather than after.
type captureSkill struct {
	name      string
	schema    map[string]interface{}
	onExecute func(args map[string]interface{})
}

func (c *captureSkill) Name() string                              { return c.name }
func (c *captureSkill) Description() string                       { return "capture" }
func (c *captureSkill) Parameters() map[string]interface{}         { return c.schema }
func (c *captureSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	c.onExecute(args)
	return "ok", nil
}
