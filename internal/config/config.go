package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the gateway.
type Config struct {
	Agents     AgentsConfig     `json:"agents"`
	Channels   ChannelsConfig   `json:"channels"`
	Providers  ProvidersConfig  `json:"providers"`
	Gateway    GatewayConfig    `json:"gateway"`
	Tools      ToolsConfig      `json:"tools"`
	Sessions   SessionsConfig   `json:"sessions"`
	Tts        TtsConfig        `json:"tts,omitempty"`
	Scheduler  SchedulerConfig  `json:"scheduler,omitempty"`
	Automation AutomationConfig `json:"automation,omitempty"`
	Scripts    ScriptsConfig    `json:"scripts,omitempty"`
	Memory     MemoryConfig     `json:"memory,omitempty"`
	Webhooks   WebhooksConfig   `json:"webhooks,omitempty"`
	mu         sync.RWMutex
}

// AgentsConfig contains agent defaults and per-agent overrides.
type AgentsConfig struct {
	Defaults  AgentDefaults        `json:"defaults"`
	List      map[string]AgentSpec `json:"list,omitempty"`
	Templates AgentTemplatesConfig `json:"templates,omitempty"`
}

// AgentTemplatesConfig points at the two directories the agent router loads
// delegation templates from.
type AgentTemplatesConfig struct {
	BuiltinDir string `json:"builtin_dir,omitempty"` // default: ~/.clara/agents/_builtin
	CustomDir  string `json:"custom_dir,omitempty"`  // default: ~/.clara/agents/custom
}

// AgentDefaults are default settings for all agents.
type AgentDefaults struct {
	Workspace           string  `json:"workspace"`
	RestrictToWorkspace bool    `json:"restrict_to_workspace"`
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	MaxTokens           int     `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	MaxToolIterations   int     `json:"max_tool_iterations"`
	ContextWindow       int     `json:"context_window"`
	HistoryMessages     int     `json:"history_messages"` // H in the pre-turn assembly, default 20
	ThinkScrub          *bool   `json:"think_scrub,omitempty"`
}

// AgentSpec is the per-agent configuration override.
// All fields optional — zero values mean "inherit from defaults".
type AgentSpec struct {
	DisplayName       string   `json:"displayName,omitempty"`
	Provider          string   `json:"provider,omitempty"`
	Model             string   `json:"model,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	Temperature       float64  `json:"temperature,omitempty"`
	MaxToolIterations int      `json:"max_tool_iterations,omitempty"`
	ContextWindow     int      `json:"context_window,omitempty"`
	Skills            []string `json:"skills,omitempty"` // nil = all skills allowed
	Workspace         string   `json:"workspace,omitempty"`
	Default           bool     `json:"default,omitempty"`
}

// MemoryConfig configures the keyed-fact memory store and the background
// fact extractor.
type MemoryConfig struct {
	StorageDir      string `json:"storage_dir,omitempty"`
	MaxFacts        int    `json:"max_facts,omitempty"`        // most-recent facts grouped into the system prompt block, default 12
	ExtractionModel string `json:"extraction_model,omitempty"` // provider model used for fact extraction, defaults to agent default
	ExtractionPrompt string `json:"extraction_prompt,omitempty"` // overrides memory.DefaultExtractionPrompt

	// Backend selects the MemoryStore implementation: "" or "json" (default,
	// JSON-file-backed), "sqlite" (modernc.org/sqlite, DSN is a file path or
	// ":memory:"), or "postgres" (jackc/pgx/v5, DSN is a libpq connstring).
	Backend string `json:"backend,omitempty"`
	DSN     string `json:"dsn,omitempty"`
}

// SchedulerConfig configures the cron job engine.
type SchedulerConfig struct {
	StorageDir string `json:"storage_dir,omitempty"`
}

// AutomationConfig configures the event-to-action rule engine.
type AutomationConfig struct {
	StorageDir string `json:"storage_dir,omitempty"`
}

// ScriptsConfig configures the named, multi-step script engine.
type ScriptsConfig struct {
	StorageDir string `json:"storage_dir,omitempty"`
}

// WebhooksConfig configures the named-webhook HTTP ingress.
type WebhooksConfig struct {
	StorageDir string `json:"storage_dir,omitempty"`
	RateLimitPerMinute float64 `json:"rate_limit_per_minute,omitempty"` // per-webhook-name cap, default 30
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agents = src.Agents
	c.Channels = src.Channels
	c.Providers = src.Providers
	c.Gateway = src.Gateway
	c.Tools = src.Tools
	c.Sessions = src.Sessions
	c.Tts = src.Tts
	c.Scheduler = src.Scheduler
	c.Automation = src.Automation
	c.Scripts = src.Scripts
	c.Memory = src.Memory
	c.Webhooks = src.Webhooks
}
