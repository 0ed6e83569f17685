package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/clara/internal/memory"
	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/store"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

// fallbackAnswer is returned when the loop exits with no textual content at
// all — neither the model's own answer nor a usable tool-result summary.
const fallbackAnswer = "Sorry, I wasn't able to come up with an answer for that."

const summarizePrompt = "Summarize the tool results and answer the original question."

// TTSSynthesizer is the thin external contract for text-to-speech: the
// orchestrator only needs to hand it text and get back a playable source
// reference.
type TTSSynthesizer interface {
	Synthesize(ctx context.Context, text string) (src string, err error)
}

// Orchestrator drives the chat orchestrator's single operation: handle().
// It borrows the registry, router, provider, and persistence layers; it
// owns only the per-turn message buffer built inside Handle.
type Orchestrator struct {
	Sessions store.SessionStore
	Memory   store.MemoryStore
	Registry *tools.Registry
	Router   *Router
	Provider providers.Provider
	Model    string

	Temperature     float64
	MaxRounds       int
	HistoryMessages int // H in the pre-turn assembly, default 20
	MemoryMaxFacts  int
	ThinkScrub      bool
	Persona         string

	Extractor *memory.Extractor
	TTS       TTSSynthesizer
}

func (o *Orchestrator) historyLen() int {
	if o.HistoryMessages > 0 {
		return o.HistoryMessages
	}
	return 20
}

func (o *Orchestrator) maxRounds() int {
	if o.MaxRounds > 0 {
		return o.MaxRounds
	}
	return 5
}

// Handle runs a single user turn to completion and returns the final
// assistant text.
func (o *Orchestrator) Handle(
	ctx context.Context,
	channel Channel,
	sessionID string,
	userText string,
	images []providers.ImageContent,
	ttsFlag bool,
	allowedSkills map[string]bool,
	agentOverride string,
) (string, error) {
	o.Sessions.AddMessage(sessionID, providers.Message{Role: "user", Content: userText, Images: images})

	history := loadHistory(o.Sessions, sessionID, o.historyLen())

	var finalText string
	if agentOverride != "" {
		text, events, imgs, err := o.Router.RunAgent(ctx, agentOverride, userText, history)
		for _, ev := range events {
			channel.SendToolCall(ev.Tool, ev.Args)
		}
		for _, img := range imgs {
			channel.SendImage(img.Src, img.Alt)
		}
		if err != nil {
			slog.Warn("agent override delegation failed", "agent", agentOverride, "error", err)
			finalText = fallbackAnswer
		} else {
			finalText = text
		}
		channel.SendMessage(finalText)
	} else {
		var err error
		finalText, err = o.runNormalPath(ctx, channel, sessionID, history, allowedSkills)
		if err != nil {
			slog.Warn("chat orchestrator round failed", "session", sessionID, "error", err)
			if finalText == "" {
				finalText = fallbackAnswer
				channel.SendMessage(finalText)
			}
		}
	}

	o.Sessions.AddMessage(sessionID, providers.Message{Role: "assistant", Content: finalText})

	if o.Extractor != nil {
		o.Extractor.ExtractAsync(sessionID, userText, finalText)
	}
	if ttsFlag && o.TTS != nil {
		go func() {
			src, err := o.TTS.Synthesize(context.Background(), finalText)
			if err != nil {
				slog.Debug("tts synthesis failed", "error", err)
				return
			}
			channel.SendAudio(src)
		}()
	}

	return finalText, nil
}

// HandleSynthetic drives a turn on a reserved, non-interactive session (an
// automation's send_message action, a scheduler notification reply) using a
// collector channel the caller never sees, returning only the final text.
func (o *Orchestrator) HandleSynthetic(ctx context.Context, sessionID, text string) (string, error) {
	collector := NewCollectorAdapter()
	return o.Handle(ctx, collector, sessionID, text, nil, false, nil, "")
}

func (o *Orchestrator) runNormalPath(ctx context.Context, channel Channel, sessionID string, history []providers.Message, allowedSkills map[string]bool) (string, error) {
	skills := o.Registry.Subset(allowedSkills)
	toolDefs := skillToolDefs(skills)

	var delegate DelegateFunc
	var allowedAgents map[string]bool
	if o.Router != nil {
		agentNames := o.Router.GetAllowedAgents(allowedSkills)
		if def := buildDelegateToolDef(agentNames); def != nil {
			toolDefs = append(toolDefs, *def)
			allowedAgents = tools.SkillNameSet(agentNames)
			delegate = func(ctx context.Context, agentName, task string) (string, []ToolCallEvent, []ImageEvent, error) {
				return o.Router.RunAgent(ctx, agentName, task, history)
			}
		}
	}

	messages := append([]providers.Message{{Role: "system", Content: buildSystemContent(o.Persona, recentFacts(o.Memory, sessionID, o.MemoryMaxFacts))}}, history...)

	runner := NewLoopRunner(LoopConfig{
		Provider:      o.Provider,
		Model:         o.Model,
		Temperature:   o.Temperature,
		Registry:      o.Registry,
		ToolDefs:      toolDefs,
		MaxRounds:     o.maxRounds(),
		Channel:       channel,
		AllowedSkills: allowedSkills,
		Delegate:      delegate,
		AllowedAgents: allowedAgents,
		ThinkScrub:    o.ThinkScrub,
	})

	result, err := runner.Run(ctx, messages)
	if err != nil {
		return "", err
	}

	text := SanitizeAssistantContent(result.Text, o.ThinkScrub)
	if text != "" {
		channel.SendMessage(text)
		return text, nil
	}

	if len(result.Messages) == len(messages) {
		channel.SendMessage(fallbackAnswer)
		return fallbackAnswer, nil
	}

	// No text but tool calls ran: ask once more, streaming, with no tools.
	summaryMessages := append(append([]providers.Message(nil), result.Messages...),
		providers.Message{Role: "user", Content: summarizePrompt})

	final, err := o.streamSummary(ctx, channel, summaryMessages)
	if err != nil || final == "" {
		channel.SendMessage(fallbackAnswer)
		return fallbackAnswer, nil
	}
	return final, nil
}

// streamSummary makes one streaming LLM call with no tools, buffering
// tokens until any opening <think> tag closes (or never opens), then
// streams the remainder to the channel token by token.
func (o *Orchestrator) streamSummary(ctx context.Context, channel Channel, messages []providers.Message) (string, error) {
	var full strings.Builder
	scrub := &thinkStreamScrubber{enabled: o.ThinkScrub}

	resp, err := o.Provider.ChatStream(ctx, providers.ChatRequest{
		Messages: messages,
		Model:    o.Model,
		Options:  map[string]interface{}{"temperature": o.Temperature},
	}, func(chunk providers.StreamChunk) {
		if chunk.Content == "" {
			return
		}
		full.WriteString(chunk.Content)
		if token := scrub.feed(chunk.Content); token != "" {
			channel.SendStreamToken(token)
		}
	})
	channel.SendStreamEnd()
	if err != nil {
		return "", err
	}

	finalText := full.String()
	if resp != nil && resp.Content != "" {
		finalText = resp.Content
	}
	return SanitizeAssistantContent(finalText, o.ThinkScrub), nil
}

// thinkStreamScrubber buffers streamed tokens until a <think>...</think>
// block (if any) has closed, per the module's think-scrubbing contract
// applied to live token streaming rather than a complete string.
type thinkStreamScrubber struct {
	enabled  bool
	resolved bool
	pending  string
}

func (s *thinkStreamScrubber) feed(chunk string) string {
	if !s.enabled || s.resolved {
		return chunk
	}
	s.pending += chunk
	if idx := strings.Index(s.pending, "</think>"); idx >= 0 {
		s.resolved = true
		rest := s.pending[idx+len("</think>"):]
		s.pending = ""
		return rest
	}
	if !isPrefixOf(s.pending, "<think>") {
		s.resolved = true
		flushed := s.pending
		s.pending = ""
		return flushed
	}
	return ""
}

func isPrefixOf(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// recentFacts fetches the most recent memory facts for a scope, tolerating
// a MemoryStore implementation that predates the Recent() convenience
// method by falling back to All().
func recentFacts(ms store.MemoryStore, scope string, limit int) []store.MemoryFact {
	type recenter interface {
		Recent(scope string, limit int) []store.MemoryFact
	}
	if r, ok := ms.(recenter); ok {
		return r.Recent(scope, limit)
	}
	all := ms.All(scope)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
