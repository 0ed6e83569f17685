package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clara/internal/eventbus"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

func TestScheduler_AddRejectsDuplicateName(t *testing.T) {
	s := New("", eventbus.New(), nil, nil)
	if err := s.Add("daily", "0 9 * * *", "echo hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add("daily", "0 10 * * *", "echo bye"); err == nil {
		t.Fatal("expected error adding duplicate job name")
	}
}

func TestScheduler_AddRejectsMalformedCron(t *testing.T) {
	s := New("", eventbus.New(), nil, nil)
	if err := s.Add("bad", "not a cron expr", "echo hi"); err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
}

func TestScheduler_ListReturnsAddedJobs(t *testing.T) {
	s := New("", eventbus.New(), nil, nil)
	s.Add("a", "* * * * *", "cmd-a")
	s.Add("b", "* * * * *", "cmd-b")

	jobs := s.List()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestScheduler_PersistenceReloadYieldsSameSet(t *testing.T) {
	dir, err := os.MkdirTemp("", "scheduler-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)

	s1 := New(dir, eventbus.New(), nil, nil)
	if err := s1.Add("nightly", "0 2 * * *", "backup.sh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s1.Add("morning", "0 7 * * *", "greet.sh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2 := New(dir, eventbus.New(), nil, nil)
	got := s2.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 reloaded jobs, got %d", len(got))
	}

	byName := make(map[string]Job, len(got))
	for _, j := range got {
		byName[j.Name] = j
	}
	if byName["nightly"].Cron != "0 2 * * *" || byName["nightly"].Command != "backup.sh" {
		t.Fatalf("nightly job not reloaded correctly: %+v", byName["nightly"])
	}
	if byName["morning"].Cron != "0 7 * * *" {
		t.Fatalf("morning job not reloaded correctly: %+v", byName["morning"])
	}

	// Idempotent: re-adding a reloaded job's name must still reject as a dup.
	if err := s2.Add("nightly", "0 3 * * *", "x"); err == nil {
		t.Fatal("expected duplicate rejection to hold across a reload")
	}
}

func TestScheduler_FireEmitsEventAndExecutesCommand(t *testing.T) {
	bus := eventbus.New()
	registry := tools.NewRegistry()
	var executedArgs map[string]interface{}
	registry.Register(&fakeCommandSkill{onExecute: func(args map[string]interface{}) { executedArgs = args }})

	received := make(chan eventbus.Event, 1)
	bus.Subscribe(EventTypeTriggered, func(e eventbus.Event) { received <- e })

	s := New("", bus, registry, nil)
	job := &Job{Name: "test-job", Cron: "* * * * *", Command: "do-the-thing"}

	s.fire(context.Background(), job)

	select {
	case e := <-received:
		if e.Source != "scheduler:test-job" {
			t.Fatalf("unexpected event source: %q", e.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for schedule_triggered event")
	}

	if executedArgs["command"] != "do-the-thing" {
		t.Fatalf("expected command to reach the system-command skill, got %+v", executedArgs)
	}
}

type fakeCommandSkill struct {
	onExecute func(args map[string]interface{})
}

func (f *fakeCommandSkill) Name() string        { return systemCommandSkill }
func (f *fakeCommandSkill) Description() string { return "fake" }
func (f *fakeCommandSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"command": map[string]interface{}{"type": "string"}},
	}
}
func (f *fakeCommandSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	f.onExecute(args)
	return "ran", nil
}
