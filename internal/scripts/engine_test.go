package scripts

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/clara/internal/tools"
)

type echoSkill struct {
	name string
	fail bool
}

func (e *echoSkill) Name() string        { return e.name }
func (e *echoSkill) Description() string { return "echo" }
func (e *echoSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
	}
}
func (e *echoSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if e.fail {
		return "", errFailing{}
	}
	return "echoed: " + args["text"].(string), nil
}

type errFailing struct{}

func (errFailing) Error() string { return "boom" }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir, err := os.MkdirTemp("", "scripts-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	registry := tools.NewRegistry()
	registry.Register(&echoSkill{name: "echo"})
	registry.Register(&echoSkill{name: "boom", fail: true})
	return New(dir, registry)
}

func TestEngine_CreateListGetDelete(t *testing.T) {
	e := newTestEngine(t)

	msg, err := e.Create("greet", "says hi", []Step{{Skill: "echo", Args: map[string]interface{}{"text": "hi"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == "" {
		t.Fatal("expected a non-empty confirmation message")
	}

	list, err := e.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Name != "greet" || list[0].Steps != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	got, err := e.Get("greet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Description != "says hi" {
		t.Fatalf("unexpected script: %+v", got)
	}

	if _, err := e.Delete("greet"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = e.Get("greet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected script to be gone after delete, got %+v", got)
	}
}

func TestEngine_CreateRefusesOverwrite(t *testing.T) {
	e := newTestEngine(t)
	e.Create("dup", "", nil)
	msg, err := e.Create("dup", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == "" {
		t.Fatal("expected a message explaining the script already exists")
	}
}

func TestEngine_RunSubstitutesVarsAndChainsStepResults(t *testing.T) {
	e := newTestEngine(t)
	e.Create("greeting", "", []Step{
		{Skill: "echo", Args: map[string]interface{}{"text": "${name}"}},
		{Skill: "echo", Args: map[string]interface{}{"text": "${step_1_result}"}},
	})

	out, err := e.Run(context.Background(), "greeting", map[string]string{"name": "Marlon"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "echoed: Marlon") {
		t.Fatalf("expected first step substitution, got %q", out)
	}
	if !strings.Contains(out, "echoed: echoed: Marlon") {
		t.Fatalf("expected second step to chain off step_1_result, got %q", out)
	}
}

func TestEngine_RunStopsOnErrorWhenFlagged(t *testing.T) {
	e := newTestEngine(t)
	e.Create("fragile", "", []Step{
		{Skill: "boom", Args: map[string]interface{}{"text": "x"}, StopOnError: true},
		{Skill: "echo", Args: map[string]interface{}{"text": "should not run"}},
	})

	out, err := e.Run(context.Background(), "fragile", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "should not run") {
		t.Fatalf("expected execution to stop before the second step, got %q", out)
	}
	if !strings.Contains(out, "aborted") {
		t.Fatalf("expected an abort message, got %q", out)
	}
}

func TestEngine_RunUnknownScriptReturnsNotFoundMessage(t *testing.T) {
	e := newTestEngine(t)
	out, err := e.Run(context.Background(), "ghost", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "not found") {
		t.Fatalf("expected not-found message, got %q", out)
	}
}
