// Package agent implements the chat orchestrator and the agent router: the
// bounded LLM/tool state machine described for a single conversational turn,
// and the recursive delegation of part of that turn to a named sub-agent.
package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

// DelegateToAgentTool is the reserved tool name the orchestrator and the
// router both recognize as "dispatch to a named sub-agent" rather than an
// ordinary skill lookup.
const DelegateToAgentTool = "delegate_to_agent"

// DelegateFunc runs one sub-agent invocation and returns its final text plus
// the tool_call/image events the caller must re-forward onto its own
// channel so the user sees the sub-agent's activity.
type DelegateFunc func(ctx context.Context, agentName, task string) (text string, events []ToolCallEvent, images []ImageEvent, err error)

// LoopConfig parameterizes one bounded tool-calling loop. Both the top-level
// orchestrator and the agent router's sub-loops are instances of the same
// LoopRunner — recursive agent composition without reentrant mutable state,
// per the module's "pure LoopRunner" design note.
type LoopConfig struct {
	Provider      providers.Provider
	Model         string
	Temperature   float64
	Registry      *tools.Registry
	ToolDefs      []providers.ToolDefinition
	MaxRounds     int
	Channel       Channel
	AllowedSkills map[string]bool // nil = unrestricted
	Delegate      DelegateFunc    // nil if delegate_to_agent isn't offered this loop
	AllowedAgents map[string]bool // names permitted for delegate_to_agent; set whenever Delegate is, defense in depth against a bypassing LLM call
	ThinkScrub    bool
}

// LoopRunner drives the bounded LLM/tool state machine for one turn.
type LoopRunner struct {
	cfg LoopConfig
}

func NewLoopRunner(cfg LoopConfig) *LoopRunner {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 5
	}
	return &LoopRunner{cfg: cfg}
}

// Result is what one loop run produces: the final text to show the user,
// and the full message transcript (including every tool round) for the
// caller to persist.
type Result struct {
	Text     string
	Messages []providers.Message
	Rounds   int
}

// Run executes up to MaxRounds LLM calls, dispatching tool calls in between,
// and returns once the model produces a tool-call-free response or the
// round budget is exhausted.
func (l *LoopRunner) Run(ctx context.Context, messages []providers.Message) (Result, error) {
	cfg := l.cfg
	msgs := append([]providers.Message(nil), messages...)

	for round := 0; round < cfg.MaxRounds; round++ {
		var resp *providers.ChatResponse
		spanErr := emitLLMSpan(ctx, cfg.Model, round, func(spanCtx context.Context) (int, error) {
			var chatErr error
			resp, chatErr = cfg.Provider.Chat(spanCtx, providers.ChatRequest{
				Messages: msgs,
				Tools:    cfg.ToolDefs,
				Model:    cfg.Model,
				Options:  map[string]interface{}{"temperature": cfg.Temperature},
			})
			if chatErr != nil {
				return 0, chatErr
			}
			return len(resp.ToolCalls), nil
		})
		if spanErr != nil {
			return Result{Messages: msgs, Rounds: round}, fmt.Errorf("llm chat: %w", spanErr)
		}

		if len(resp.ToolCalls) == 0 {
			return Result{Text: resp.Content, Messages: msgs, Rounds: round + 1}, nil
		}

		delegations, regulars := partitionToolCalls(resp.ToolCalls, cfg.Delegate != nil)

		// Delegations run sequentially: one agent's output may shape the
		// next delegation's task, and ordering must stay causal.
		for _, call := range delegations {
			pairMsgs := l.runDelegation(ctx, call)
			msgs = append(msgs, pairMsgs...)
		}

		// Regular calls: emit every tool_call event up front (in round
		// order) before any execution starts, then fan out concurrently.
		if len(regulars) > 0 {
			msgs = append(msgs, l.runRegulars(ctx, regulars)...)
		}

		if len(delegations) == 0 && len(regulars) == 0 {
			// Every tool call resolved to something the loop doesn't
			// recognize (shouldn't happen; guards against an infinite loop).
			return Result{Text: resp.Content, Messages: msgs, Rounds: round + 1}, nil
		}
	}

	return Result{Messages: msgs, Rounds: cfg.MaxRounds}, nil
}

func partitionToolCalls(calls []providers.ToolCall, delegationEnabled bool) (delegations, regulars []providers.ToolCall) {
	for _, c := range calls {
		if delegationEnabled && c.Name == DelegateToAgentTool {
			delegations = append(delegations, c)
		} else {
			regulars = append(regulars, c)
		}
	}
	return
}

func (l *LoopRunner) runDelegation(ctx context.Context, call providers.ToolCall) []providers.Message {
	agentName, _ := call.Arguments["agent"].(string)
	task, _ := call.Arguments["task"].(string)

	l.cfg.Channel.SendToolCall("agent:"+agentName, map[string]interface{}{"task": task})

	if l.cfg.AllowedAgents != nil && !l.cfg.AllowedAgents[agentName] {
		// Tool list already excludes this agent; this is defense in depth
		// against an LLM emitting a bypassing delegate_to_agent call.
		return toolPair(call, fmt.Sprintf("error: access denied: agent %q not permitted for this session", agentName))
	}

	var text string
	var events []ToolCallEvent
	var images []ImageEvent
	err := emitAgentSpan(ctx, agentName, func(spanCtx context.Context) error {
		var delegateErr error
		text, events, images, delegateErr = l.cfg.Delegate(spanCtx, agentName, task)
		return delegateErr
	})
	for _, ev := range events {
		l.cfg.Channel.SendToolCall(ev.Tool, ev.Args)
	}
	for _, img := range images {
		l.cfg.Channel.SendImage(img.Src, img.Alt)
	}

	result := text
	if err != nil {
		result = fmt.Sprintf("[error delegating to %s: %s]", agentName, err)
	}
	return toolPair(call, result)
}

func (l *LoopRunner) runRegulars(ctx context.Context, calls []providers.ToolCall) []providers.Message {
	cfg := l.cfg

	type dispatch struct {
		call    providers.ToolCall
		args    map[string]interface{}
		allowed bool
	}
	dispatches := make([]dispatch, len(calls))

	for i, call := range calls {
		var filtered map[string]interface{}
		allowed := cfg.AllowedSkills == nil || cfg.AllowedSkills[call.Name]
		if skill, ok := cfg.Registry.Get(call.Name); ok {
			filtered, _ = tools.FilterArgs(skill.Parameters(), call.Arguments)
		} else {
			filtered = call.Arguments
		}
		dispatches[i] = dispatch{call: call, args: filtered, allowed: allowed}
		cfg.Channel.SendToolCall(call.Name, filtered)
	}

	// Structured concurrent gather: every regular call runs in its own
	// goroutine under one errgroup; each goroutine writes only its own slot,
	// so there's no shared-state race to guard beyond the slice itself. A
	// panic inside a skill is not recovered here.
	results := make([]string, len(dispatches))
	var g errgroup.Group
	for i, d := range dispatches {
		i, d := i, d
		g.Go(func() error {
			if !d.allowed {
				results[i] = "error: access denied: skill not permitted for this session"
				return nil
			}
			result := emitToolSpan(ctx, d.call.Name, func(spanCtx context.Context) string {
				return cfg.Registry.Execute(spanCtx, d.call.Name, d.call.Arguments)
			})
			cleaned, images := extractImages(result)
			for _, img := range images {
				cfg.Channel.SendImage(img.Src, img.Alt)
			}
			results[i] = cleaned
			return nil
		})
	}
	_ = g.Wait()

	var out []providers.Message
	for i, d := range dispatches {
		out = append(out, toolPair(d.call, results[i])...)
	}
	return out
}

// toolPair builds the assistant-entry-carrying-one-tool_call plus the
// matching tool-result entry the data model requires to follow it.
func toolPair(call providers.ToolCall, result string) []providers.Message {
	return []providers.Message{
		{Role: "assistant", ToolCalls: []providers.ToolCall{call}},
		{Role: "tool", Content: result, ToolCallID: call.ID},
	}
}

// buildDelegateToolDef returns the delegate_to_agent function schema for a
// given set of agent names, or nil if none are available.
func buildDelegateToolDef(agentNames []string) *providers.ToolDefinition {
	if len(agentNames) == 0 {
		return nil
	}
	return &providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        DelegateToAgentTool,
			Description: "Delegate a task to a specialized sub-agent and return its answer.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent": map[string]interface{}{
						"type":        "string",
						"description": "Name of the sub-agent to delegate to.",
						"enum":        agentNames,
					},
					"task": map[string]interface{}{
						"type":        "string",
						"description": "The task to hand off, in natural language.",
					},
				},
				"required": []string{"agent", "task"},
			},
		},
	}
}

// skillToolDefs converts tools.ToolDefinitions to the providers-package
// shape the LLM client consumes.
func skillToolDefs(skills []tools.Skill) []providers.ToolDefinition {
	defs := tools.ToolDefinitions(skills)
	out := make([]providers.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, providers.ToolDefinition{
			Type: d.Type,
			Function: providers.ToolFunctionSchema{
				Name:        d.Function.Name,
				Description: d.Function.Description,
				Parameters:  d.Function.Parameters,
			},
		})
	}
	return out
}
