package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/store"
)

// defaultPersonaPrompt is the static system persona used when an agent spec
// doesn't override it. Kept short and configuration-shaped: the actual
// wording belongs in config/agent templates, not in code.
const defaultPersonaPrompt = "You are a helpful, concise personal assistant with access to tools. Use them when they help answer the user; otherwise answer directly."

// buildMemoryBlock groups the most recent facts by category into a labeled
// text block for the system prompt. Empty facts produce an empty string.
func buildMemoryBlock(facts []store.MemoryFact) string {
	if len(facts) == 0 {
		return ""
	}
	byCategory := make(map[string][]store.MemoryFact)
	var categories []string
	for _, f := range facts {
		if _, ok := byCategory[f.Category]; !ok {
			categories = append(categories, f.Category)
		}
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("What you remember about this user:\n")
	for _, cat := range categories {
		b.WriteString(fmt.Sprintf("- %s: ", cat))
		parts := make([]string, 0, len(byCategory[cat]))
		for _, f := range byCategory[cat] {
			parts = append(parts, fmt.Sprintf("%s=%s", f.Key, f.Value))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// buildSystemContent assembles persona + memory block into one system
// message content string.
func buildSystemContent(persona string, facts []store.MemoryFact) string {
	if persona == "" {
		persona = defaultPersonaPrompt
	}
	block := buildMemoryBlock(facts)
	if block == "" {
		return persona
	}
	return persona + "\n\n" + block
}

// loadHistory returns the last H messages for a session, oldest first.
func loadHistory(sessions store.SessionStore, key string, h int) []providers.Message {
	all := sessions.GetHistory(key)
	if h <= 0 || len(all) <= h {
		return all
	}
	return all[len(all)-h:]
}

// userAndAssistantOnly filters a message list down to user/assistant roles,
// used when building an isolated sub-agent message buffer from shared
// conversation context.
func userAndAssistantOnly(messages []providers.Message) []providers.Message {
	out := make([]providers.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "user" || m.Role == "assistant" {
			out = append(out, m)
		}
	}
	return out
}

// lastN returns the last n elements of messages (n<=0 means all).
func lastN(messages []providers.Message, n int) []providers.Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
