package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

// fakeProvider replays a scripted sequence of Chat responses, one per call,
// so a tool loop test can drive the LoopRunner through a fixed number of
// rounds without a live LLM.
type fakeProvider struct {
	mu        sync.Mutex
	responses []providers.ChatResponse
	calls     int
	streamed  string
}

func (f *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.responses) {
		return &providers.ChatResponse{Content: ""}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return &resp, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	onChunk(providers.StreamChunk{Content: f.streamed})
	return &providers.ChatResponse{Content: f.streamed}, nil
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Name() string         { return "fake" }

// recordingSkill returns a fixed string, recording each invocation's args
// and (optionally) sleeping to simulate a slow tool for fan-out tests.
type recordingSkill struct {
	name   string
	result string
	delay  time.Duration

	mu      sync.Mutex
	started []time.Time
	ended   []time.Time
}

func (s *recordingSkill) Name() string        { return s.name }
func (s *recordingSkill) Description() string { return "test skill " + s.name }
func (s *recordingSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string"},
		},
	}
}
func (s *recordingSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	s.mu.Lock()
	s.started = append(s.started, time.Now())
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.ended = append(s.ended, time.Now())
	s.mu.Unlock()
	return s.result, nil
}

// collectorChannel is an alias for clarity in test call sites.
func newTestChannel() *CollectorAdapter { return NewCollectorAdapter() }

func TestLoopRunner_SingleToolCallThenFinalText(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&recordingSkill{name: "file_manager", result: "a.txt, b.txt"})

	provider := &fakeProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "call1", Name: "file_manager", Arguments: map[string]interface{}{"path": "/tmp"}}}},
		{Content: "Here they are: a.txt, b.txt"},
	}}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{
		Provider:  provider,
		Registry:  registry,
		MaxRounds: 5,
		Channel:   channel,
	})

	result, err := runner.Run(context.Background(), []providers.Message{{Role: "user", Content: "list my files in /tmp"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Here they are: a.txt, b.txt" {
		t.Fatalf("unexpected final text: %q", result.Text)
	}
	if len(channel.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool_call event, got %d", len(channel.ToolCalls))
	}
	if channel.ToolCalls[0].Tool != "file_manager" {
		t.Fatalf("unexpected tool name: %q", channel.ToolCalls[0].Tool)
	}

	toolResultCount := 0
	toolCallCount := 0
	for _, m := range result.Messages {
		if m.Role == "tool" {
			toolResultCount++
		}
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			toolCallCount += len(m.ToolCalls)
		}
	}
	if toolResultCount != toolCallCount {
		t.Fatalf("tool-result count (%d) must equal tool-call count (%d)", toolResultCount, toolCallCount)
	}
}

func TestLoopRunner_ArgsFilteredToSchemaProperties(t *testing.T) {
	registry := tools.NewRegistry()
	skill := &recordingSkill{name: "file_manager", result: "ok"}
	registry.Register(skill)

	provider := &fakeProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "c1", Name: "file_manager", Arguments: map[string]interface{}{
			"path": "/tmp", "unexpected_key": "should be dropped",
		}}}},
		{Content: "done"},
	}}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{Provider: provider, Registry: registry, MaxRounds: 5, Channel: channel})
	if _, err := runner.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(channel.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool_call event, got %d", len(channel.ToolCalls))
	}
	args := channel.ToolCalls[0].Args
	if _, present := args["unexpected_key"]; present {
		t.Fatalf("unexpected_key should have been filtered out, got args: %v", args)
	}
	if args["path"] != "/tmp" {
		t.Fatalf("expected path to survive filtering, got args: %v", args)
	}
}

func TestLoopRunner_ConcurrentFanOut(t *testing.T) {
	registry := tools.NewRegistry()
	slow := &recordingSkill{name: "slow", result: "slow done", delay: 150 * time.Millisecond}
	fast := &recordingSkill{name: "fast", result: "fast done"}
	registry.Register(slow)
	registry.Register(fast)

	provider := &fakeProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "c1", Name: "slow", Arguments: map[string]interface{}{}},
			{ID: "c2", Name: "fast", Arguments: map[string]interface{}{}},
		}},
		{Content: "both done"},
	}}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{Provider: provider, Registry: registry, MaxRounds: 5, Channel: channel})

	start := time.Now()
	result, err := runner.Run(context.Background(), nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "both done" {
		t.Fatalf("unexpected final text: %q", result.Text)
	}
	// One tool_call event must have been emitted for each of the two calls.
	if len(channel.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool_call events, got %d", len(channel.ToolCalls))
	}
	if len(slow.started) != 1 || len(fast.started) != 1 {
		t.Fatalf("expected both skills to run exactly once")
	}
	// wall time should track the slow tool, not the sum of both.
	if elapsed > 140*time.Millisecond+250*time.Millisecond {
		t.Fatalf("fan-out took too long (%v), looks sequential not concurrent", elapsed)
	}
}

func TestLoopRunner_AccessDeniedShortCircuitsExecution(t *testing.T) {
	registry := tools.NewRegistry()
	skill := &recordingSkill{name: "file_manager", result: "should never run"}
	registry.Register(skill)

	provider := &fakeProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "c1", Name: "file_manager", Arguments: map[string]interface{}{}}}},
		{Content: "ok"},
	}}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{
		Provider:      provider,
		Registry:      registry,
		MaxRounds:     5,
		Channel:       channel,
		AllowedSkills: map[string]bool{"web_browse": true}, // file_manager not included
	})

	result, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skill.started) != 0 {
		t.Fatalf("skill execution must not happen when outside allowed_skills")
	}
	foundDenied := false
	for _, m := range result.Messages {
		if m.Role == "tool" && m.Content == "error: access denied: skill not permitted for this session" {
			foundDenied = true
		}
	}
	if !foundDenied {
		t.Fatalf("expected an access-denied tool result in message buffer, got: %+v", result.Messages)
	}
}

func TestLoopRunner_TerminatesWithinMaxRounds(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&recordingSkill{name: "loopy", result: "keep going"})

	// The fake model always returns a tool call, never stopping on its own.
	var responses []providers.ChatResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, providers.ChatResponse{
			ToolCalls: []providers.ToolCall{{ID: fmt.Sprintf("c%d", i), Name: "loopy", Arguments: map[string]interface{}{}}},
		})
	}
	provider := &fakeProvider{responses: responses}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{Provider: provider, Registry: registry, MaxRounds: 3, Channel: channel})

	result, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rounds > 3 {
		t.Fatalf("loop exceeded MaxRounds: ran %d rounds", result.Rounds)
	}
	if provider.calls > 3 {
		t.Fatalf("provider called %d times, want at most 3", provider.calls)
	}
}

func TestLoopRunner_DelegationRunsBeforeRegularFanOut(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&recordingSkill{name: "fast", result: "fast done"})

	var order []string
	var mu sync.Mutex
	delegate := func(ctx context.Context, agentName, task string) (string, []ToolCallEvent, []ImageEvent, error) {
		mu.Lock()
		order = append(order, "delegate:"+agentName)
		mu.Unlock()
		return "research summary about " + task, []ToolCallEvent{{Tool: "sub:search", Args: map[string]interface{}{}}}, nil, nil
	}

	provider := &fakeProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "c1", Name: DelegateToAgentTool, Arguments: map[string]interface{}{"agent": "research", "task": "weather in Berlin"}},
			{ID: "c2", Name: "fast", Arguments: map[string]interface{}{}},
		}},
		{Content: "Summary: weather is sunny per research."},
	}}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{Provider: provider, Registry: registry, MaxRounds: 5, Channel: channel, Delegate: delegate})

	result, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Summary: weather is sunny per research." {
		t.Fatalf("unexpected final text: %q", result.Text)
	}

	var sawDelegateEvent, sawSubEvent, sawRegularEvent bool
	for _, tc := range channel.ToolCalls {
		switch tc.Tool {
		case "agent:research":
			sawDelegateEvent = true
		case "sub:search":
			sawSubEvent = true
		case "fast":
			sawRegularEvent = true
		}
	}
	if !sawDelegateEvent || !sawSubEvent || !sawRegularEvent {
		t.Fatalf("expected delegate, sub-agent, and regular tool_call events, got: %+v", channel.ToolCalls)
	}
}

func TestLoopRunner_DelegationAccessDeniedShortCircuits(t *testing.T) {
	delegateCalled := false
	delegate := func(ctx context.Context, agentName, task string) (string, []ToolCallEvent, []ImageEvent, error) {
		delegateCalled = true
		return "should never run", nil, nil, nil
	}

	provider := &fakeProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{
			{ID: "c1", Name: DelegateToAgentTool, Arguments: map[string]interface{}{"agent": "research", "task": "weather"}},
		}},
		{Content: "ok"},
	}}

	channel := newTestChannel()
	runner := NewLoopRunner(LoopConfig{
		Provider:      provider,
		Registry:      tools.NewRegistry(),
		MaxRounds:     5,
		Channel:       channel,
		Delegate:      delegate,
		AllowedAgents: map[string]bool{"other": true}, // research not included
	})

	result, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delegateCalled {
		t.Fatalf("Delegate must not run when the agent is outside AllowedAgents")
	}
	foundDenied := false
	for _, m := range result.Messages {
		if m.Role == "tool" && m.Content == `error: access denied: agent "research" not permitted for this session` {
			foundDenied = true
		}
	}
	if !foundDenied {
		t.Fatalf("expected an access-denied tool result in message buffer, got: %+v", result.Messages)
	}
}
