package sessions

import (
	"os"
	"testing"

	"github.com/nextlevelbuilder/clara/internal/providers"
)

func TestManager_AddMessageCreatesImplicitSession(t *testing.T) {
	m := NewManager("")
	m.AddMessage("s1", providers.Message{Role: "user", Content: "hi"})

	history := m.GetHistory("s1")
	if len(history) != 1 || history[0].Content != "hi" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestManager_ResetClearsMessagesButKeepsSession(t *testing.T) {
	m := NewManager("")
	m.AddMessage("s1", providers.Message{Role: "user", Content: "hi"})
	m.Reset("s1")

	if len(m.GetHistory("s1")) != 0 {
		t.Fatal("expected history cleared after reset")
	}
}

func TestManager_DeleteRemovesSession(t *testing.T) {
	m := NewManager("")
	m.AddMessage("s1", providers.Message{Role: "user", Content: "hi"})
	if err := m.Delete("s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.GetHistory("s1")) != 0 {
		t.Fatal("expected session gone after delete")
	}
}

func TestManager_TruncateHistoryKeepsLastN(t *testing.T) {
	m := NewManager("")
	for i := 0; i < 5; i++ {
		m.AddMessage("s1", providers.Message{Role: "user", Content: string(rune('a' + i))})
	}
	m.TruncateHistory("s1", 2)
	history := m.GetHistory("s1")
	if len(history) != 2 || history[0].Content != "d" || history[1].Content != "e" {
		t.Fatalf("unexpected truncated history: %+v", history)
	}
}

func TestManager_SaveAndReloadPersistsSession(t *testing.T) {
	dir, err := os.MkdirTemp("", "sessions-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)

	m1 := NewManager(dir)
	m1.AddMessage("automation-internal", providers.Message{Role: "user", Content: "Guten Morgen!"})
	if err := m1.Save("automation-internal"); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	m2 := NewManager(dir)
	history := m2.GetHistory("automation-internal")
	if len(history) != 1 || history[0].Content != "Guten Morgen!" {
		t.Fatalf("expected session reloaded from disk, got %+v", history)
	}
}

func TestManager_ListFiltersByAgentPrefix(t *testing.T) {
	m := NewManager("")
	m.AddMessage("agent:research:abc", providers.Message{Role: "user", Content: "x"})
	m.AddMessage("default:xyz", providers.Message{Role: "user", Content: "y"})

	only := m.List("research")
	if len(only) != 1 || only[0].Key != "agent:research:abc" {
		t.Fatalf("unexpected filtered list: %+v", only)
	}

	all := m.List("")
	if len(all) != 2 {
		t.Fatalf("expected both sessions with no filter, got %+v", all)
	}
}
