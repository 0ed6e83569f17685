package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/store"
)

// DefaultExtractionPrompt is the fixed fact-extraction prompt, templated with
// the conversation turn. It is configuration, not logic — operators running
// this assistant for a different audience than its original single-user,
// German-speaking deployment should override it via config rather than edit
// this constant.
const DefaultExtractionPrompt = `Analysiere den folgenden Gespraechsausschnitt zwischen einem Nutzer und einer KI-Assistentin.
Extrahiere ALLE neuen Fakten ueber den Nutzer.

Gib NUR ein JSON-Array zurueck. Jedes Element hat: category, key, value
Kategorien: vorlieben, persoenlich, technik, ziele, projekte, gewohnheiten, wichtig

Regeln:
- Nur EXPLIZIT genannte Fakten, NICHTS erfinden
- Kurze, praegnante Werte (max 100 Zeichen)
- Keys als kurze Bezeichner (z.B. "lieblingssprache", "beruf", "haustier")
- Wenn KEINE Fakten gefunden werden: leeres Array []
- KEIN erklarender Text, NUR das JSON-Array

Gespraech:
%s

JSON-Array:`

var thinkBlockPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)
var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

type extractedFact struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// Extractor runs the fact-extraction pass in the background after each
// conversation turn. It never returns an error to the caller — every
// failure mode (LLM call error, malformed JSON, no JSON array in the reply)
// ends the pass silently; the first two are logged at debug level. This
// matches the "best effort" contract of the memory services.
type Extractor struct {
	provider providers.Provider
	model    string
	store    store.MemoryStore
	prompt   string
}

func NewExtractor(provider providers.Provider, model string, memStore store.MemoryStore) *Extractor {
	return &Extractor{provider: provider, model: model, store: memStore, prompt: DefaultExtractionPrompt}
}

// SetPrompt overrides the extraction prompt template (must contain one %s
// for the conversation text).
func (e *Extractor) SetPrompt(prompt string) { e.prompt = prompt }

// ExtractAsync launches the extraction pass in its own goroutine and returns
// immediately — callers fire this after saving a turn and move on.
func (e *Extractor) ExtractAsync(scope, userMessage, assistantMessage string) {
	go e.extract(scope, userMessage, assistantMessage)
}

func (e *Extractor) extract(scope, userMessage, assistantMessage string) {
	if len(userMessage) < 10 {
		return
	}
	conversation := "Nutzer: " + userMessage + "\nAssistentin: " + assistantMessage
	prompt := strings.Replace(e.prompt, "%s", conversation, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := e.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: prompt}},
		Model:    e.model,
	})
	if err != nil {
		slog.Debug("fact extractor: LLM call failed", "error", err)
		return
	}

	raw := thinkBlockPattern.ReplaceAllString(resp.Content, "")
	match := jsonArrayPattern.FindString(raw)
	if match == "" {
		return
	}

	var facts []extractedFact
	if err := json.Unmarshal([]byte(match), &facts); err != nil {
		slog.Debug("fact extractor: could not parse JSON array", "error", err)
		return
	}

	stored := 0
	for _, f := range facts {
		cat := strings.TrimSpace(f.Category)
		key := strings.TrimSpace(f.Key)
		val := strings.TrimSpace(f.Value)
		if cat == "" || key == "" || val == "" || len(val) > 200 {
			continue
		}
		if err := e.store.Upsert(scope, cat, key, val); err != nil {
			slog.Debug("fact extractor: store failed", "error", err)
			continue
		}
		stored++
	}
	if stored > 0 {
		slog.Info("fact extractor: stored facts", "count", stored, "scope", scope)
	}
}
