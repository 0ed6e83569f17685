package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

// Router loads agent templates and exposes delegation as a tool. Its
// template map is replaced atomically on Reload so an in-flight turn never
// observes a half-updated set.
type Router struct {
	loader   *TemplateLoader
	registry *tools.Registry
	provider func(name string) (providers.Provider, error)

	mu        sync.RWMutex
	templates map[string]*AgentTemplate
}

func NewRouter(loader *TemplateLoader, registry *tools.Registry, providerFor func(name string) (providers.Provider, error)) *Router {
	return &Router{loader: loader, registry: registry, provider: providerFor, templates: map[string]*AgentTemplate{}}
}

// Reload re-reads both template directories and atomically swaps the map.
func (r *Router) Reload() error {
	templates, err := r.loader.LoadAll()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
	return nil
}

func (r *Router) templateSnapshot() map[string]*AgentTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates
}

// GetAllowedAgents returns the agent names a caller restricted to
// allowedSkills may delegate to: every non-general agent whose own skill
// requirement is a subset of allowedSkills, or every non-general agent when
// allowedSkills is nil (unrestricted).
func (r *Router) GetAllowedAgents(allowedSkills map[string]bool) []string {
	templates := r.templateSnapshot()
	var names []string
	for _, name := range sortedTemplateNames(templates) {
		t := templates[name]
		if tools.SubsetOf(t.Skills, allowedSkills) {
			names = append(names, name)
		}
	}
	return names
}

// DelegateToolDefinition returns the delegate_to_agent tool definition
// restricted to the given allowed agent names, or nil if none are
// available (the caller should omit the tool entirely in that case).
func (r *Router) DelegateToolDefinition(allowedSkills map[string]bool) *providers.ToolDefinition {
	return buildDelegateToolDef(r.GetAllowedAgents(allowedSkills))
}

// RunAgent runs one sub-agent's own bounded tool loop and returns its final
// text plus the events the caller must re-forward onto its own channel.
func (r *Router) RunAgent(ctx context.Context, name, task string, conversationContext []providers.Message) (string, []ToolCallEvent, []ImageEvent, error) {
	templates := r.templateSnapshot()
	tmpl, ok := templates[name]
	if !ok {
		return "", nil, nil, fmt.Errorf("unknown agent %q", name)
	}

	provider, err := r.provider(tmpl.Model)
	if err != nil {
		return "", nil, nil, fmt.Errorf("resolve provider for agent %q: %w", name, err)
	}

	messages := []providers.Message{{Role: "system", Content: tmpl.SystemPrompt}}
	if conversationContext != nil {
		ctxMsgs := lastN(userAndAssistantOnly(conversationContext), tmpl.ContextWindow)
		messages = append(messages, ctxMsgs...)
	}
	messages = append(messages, providers.Message{Role: "user", Content: task})

	collector := NewCollectorAdapter()
	allowed := tools.SkillNameSet(tmpl.Skills)
	skills := r.registry.Subset(allowed)

	runner := NewLoopRunner(LoopConfig{
		Provider:      provider,
		Model:         tmpl.Model,
		Temperature:   tmpl.Temperature,
		Registry:      r.registry,
		ToolDefs:      skillToolDefs(skills),
		MaxRounds:     tmpl.MaxRounds,
		Channel:       collector,
		AllowedSkills: allowed,
		ThinkScrub:    true,
	})

	result, err := runner.Run(ctx, messages)
	if err != nil {
		return "", collector.ToolCalls, collector.Images, err
	}

	text := SanitizeAssistantContent(result.Text, true)
	if text == "" && len(result.Messages) > len(messages) {
		// No textual content but tools ran: ask once more for a summary,
		// with tools disabled, mirroring the top-level orchestrator's
		// empty-final-text fallback.
		summaryMsgs := append(append([]providers.Message(nil), result.Messages...),
			providers.Message{Role: "user", Content: "Summarize the tool results and answer the original question."})
		summaryRunner := NewLoopRunner(LoopConfig{
			Provider:    provider,
			Model:       tmpl.Model,
			Temperature: tmpl.Temperature,
			Registry:    r.registry,
			MaxRounds:   1,
			Channel:     collector,
			ThinkScrub:  true,
		})
		summary, err := summaryRunner.Run(ctx, summaryMsgs)
		if err == nil {
			text = SanitizeAssistantContent(summary.Text, true)
		}
	}

	return text, collector.ToolCalls, collector.Images, nil
}
