package memory

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clara/internal/providers"
)

type fakeChatProvider struct {
	content string
}

func (f *fakeChatProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: f.content}, nil
}
func (f *fakeChatProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: f.content}, nil
}
func (f *fakeChatProvider) DefaultModel() string { return "fake" }
func (f *fakeChatProvider) Name() string         { return "fake" }

func waitForFact(t *testing.T, store *Store, scope, category, key string) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := store.Get(scope, category, key); ok {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fact (%s/%s) never appeared for scope %q", category, key, scope)
	return ""
}

func TestExtractor_ParsesFirstJSONArrayAndUpserts(t *testing.T) {
	provider := &fakeChatProvider{content: `Some preamble text. [{"category":"technik","key":"sprache","value":"Go"}] trailing notes.`}
	store := NewStore("")
	extractor := NewExtractor(provider, "fake-model", store)

	extractor.ExtractAsync("user1", "Ich programmiere gerne in Go", "Cool!")

	v := waitForFact(t, store, "user1", "technik", "sprache")
	if v != "Go" {
		t.Fatalf("unexpected extracted value: %q", v)
	}
}

func TestExtractor_StripsThinkBlockBeforeParsing(t *testing.T) {
	provider := &fakeChatProvider{content: `<think>let me consider...</think>[{"category":"ziele","key":"lernen","value":"Rust"}]`}
	store := NewStore("")
	extractor := NewExtractor(provider, "fake-model", store)

	extractor.ExtractAsync("user1", "Ich will naechstes Jahr Rust lernen", "Viel Erfolg!")

	v := waitForFact(t, store, "user1", "ziele", "lernen")
	if v != "Rust" {
		t.Fatalf("unexpected extracted value: %q", v)
	}
}

func TestExtractor_RejectsValuesOverLengthLimit(t *testing.T) {
	long := ""
	for i := 0; i < 250; i++ {
		long += "x"
	}
	provider := &fakeChatProvider{content: `[{"category":"c","key":"k","value":"` + long + `"}]`}
	store := NewStore("")
	extractor := NewExtractor(provider, "fake-model", store)

	extractor.ExtractAsync("user1", "some long message here", "ok")
	time.Sleep(100 * time.Millisecond)

	if _, ok := store.Get("user1", "c", "k"); ok {
		t.Fatal("expected over-length value to be rejected")
	}
}

func TestExtractor_NoJSONArrayIsANoOp(t *testing.T) {
	provider := &fakeChatProvider{content: "I found nothing worth remembering."}
	store := NewStore("")
	extractor := NewExtractor(provider, "fake-model", store)

	extractor.ExtractAsync("user1", "just chatting about the weather", "nice day")
	time.Sleep(100 * time.Millisecond)

	if len(store.All("user1")) != 0 {
		t.Fatalf("expected no facts stored, got %+v", store.All("user1"))
	}
}

func TestExtractor_ShortUserMessageSkipsExtraction(t *testing.T) {
	provider := &fakeChatProvider{content: `[{"category":"c","key":"k","value":"v"}]`}
	store := NewStore("")
	extractor := NewExtractor(provider, "fake-model", store)

	extractor.ExtractAsync("user1", "hi", "hello")
	time.Sleep(100 * time.Millisecond)

	if len(store.All("user1")) != 0 {
		t.Fatalf("expected short message to skip extraction entirely, got %+v", store.All("user1"))
	}
}
