package agent

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/store"
)

func TestBuildSystemContent_NoFactsReturnsPersonaOnly(t *testing.T) {
	got := buildSystemContent("You are Clara.", nil)
	if got != "You are Clara." {
		t.Fatalf("got %q", got)
	}
}

func TestBuildSystemContent_DefaultsPersonaWhenEmpty(t *testing.T) {
	got := buildSystemContent("", nil)
	if got != defaultPersonaPrompt {
		t.Fatalf("expected default persona, got %q", got)
	}
}

func TestBuildSystemContent_GroupsFactsByCategory(t *testing.T) {
	facts := []store.MemoryFact{
		{Category: "technik", Key: "sprache", Value: "Go"},
		{Category: "vorlieben", Key: "kaffee", Value: "schwarz"},
		{Category: "technik", Key: "editor", Value: "vim"},
	}
	got := buildSystemContent("Persona.", facts)
	if !strings.Contains(got, "technik: sprache=Go, editor=vim") {
		t.Fatalf("expected grouped technik facts, got %q", got)
	}
	if !strings.Contains(got, "vorlieben: kaffee=schwarz") {
		t.Fatalf("expected vorlieben fact, got %q", got)
	}
	// categories sorted alphabetically: technik before vorlieben
	if strings.Index(got, "technik:") > strings.Index(got, "vorlieben:") {
		t.Fatalf("expected categories sorted alphabetically, got %q", got)
	}
}

func TestLoadHistory_TruncatesToLastH(t *testing.T) {
	s := fakeSessionStore{
		"s1": {
			{Role: "user", Content: "1"},
			{Role: "assistant", Content: "2"},
			{Role: "user", Content: "3"},
			{Role: "assistant", Content: "4"},
		},
	}
	got := loadHistory(s, "s1", 2)
	if len(got) != 2 || got[0].Content != "3" || got[1].Content != "4" {
		t.Fatalf("unexpected truncated history: %+v", got)
	}
}

func TestLoadHistory_ReturnsAllWhenShorterThanH(t *testing.T) {
	s := fakeSessionStore{"s1": {{Role: "user", Content: "1"}}}
	got := loadHistory(s, "s1", 20)
	if len(got) != 1 {
		t.Fatalf("expected all messages returned, got %+v", got)
	}
}

func TestUserAndAssistantOnly_FiltersSystemAndTool(t *testing.T) {
	in := []providers.Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "result"},
		{Role: "assistant", Content: "hello"},
	}
	out := userAndAssistantOnly(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(out), out)
	}
	if out[0].Role != "user" || out[1].Role != "assistant" {
		t.Fatalf("unexpected roles survived: %+v", out)
	}
}

// fakeSessionStore is a minimal store.SessionStore stub backing only
// GetHistory, which is all loadHistory needs.
type fakeSessionStore map[string][]providers.Message

func (f fakeSessionStore) GetOrCreate(key string) *store.SessionData { return nil }
func (f fakeSessionStore) AddMessage(key string, msg providers.Message) {}
func (f fakeSessionStore) GetHistory(key string) []providers.Message { return f[key] }
func (f fakeSessionStore) GetSummary(key string) string              { return "" }
func (f fakeSessionStore) SetSummary(key, summary string)            {}
func (f fakeSessionStore) UpdateMetadata(key, model, provider, channel string) {}
func (f fakeSessionStore) AccumulateTokens(key string, input, output int64) {}
func (f fakeSessionStore) IncrementCompaction(key string)            {}
func (f fakeSessionStore) GetCompactionCount(key string) int         { return 0 }
func (f fakeSessionStore) GetMemoryFlushCompactionCount(key string) int { return -1 }
func (f fakeSessionStore) SetMemoryFlushDone(key string)              {}
func (f fakeSessionStore) SetSpawnInfo(key, spawnedBy string, depth int) {}
func (f fakeSessionStore) TruncateHistory(key string, keepLast int)  {}
func (f fakeSessionStore) Reset(key string)                          {}
func (f fakeSessionStore) Delete(key string) error                   { return nil }
func (f fakeSessionStore) List(agentID string) []store.SessionInfo   { return nil }
func (f fakeSessionStore) Save(key string) error                     { return nil }
