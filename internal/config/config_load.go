package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// DefaultAgentID is used when no agent in Agents.List is marked as default.
const DefaultAgentID = "default"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:           "~/.clara/workspace",
				RestrictToWorkspace: true,
				Provider:            "anthropic",
				Model:               "claude-sonnet-4-5-20250929",
				MaxTokens:           8192,
				Temperature:         0.7,
				MaxToolIterations:   5,
				ContextWindow:       200000,
				HistoryMessages:     20,
			},
			Templates: AgentTemplatesConfig{
				BuiltinDir: "~/.clara/agents/_builtin",
				CustomDir:  "~/.clara/agents/custom",
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				StreamMode:    "none",
				ReactionLevel: "full",
			},
		},
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            18790,
			MaxMessageChars: 32000,
			RateLimitRPM:    20,
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				DuckDuckGo: DuckDuckGoConfig{Enabled: true, MaxResults: 5},
			},
			Browser: BrowserToolConfig{
				Enabled:  true,
				Headless: true,
			},
			ExecApproval: ExecApprovalCfg{
				Security: "full",
				Ask:      "off",
			},
		},
		Sessions: SessionsConfig{
			Storage: "~/.clara/sessions",
		},
		Scheduler:  SchedulerConfig{StorageDir: "~/.clara/scheduler"},
		Automation: AutomationConfig{StorageDir: "~/.clara/automation"},
		Scripts:    ScriptsConfig{StorageDir: "~/.clara/scripts"},
		Memory: MemoryConfig{
			StorageDir: "~/.clara/memory",
			MaxFacts:   12,
		},
		Webhooks: WebhooksConfig{
			StorageDir:         "~/.clara/webhooks",
			RateLimitPerMinute: 30,
		},
	}
}

// Load reads config from a JSON(5) file, then overlays env vars.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("CLARA_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("CLARA_ANTHROPIC_BASE_URL", &c.Providers.Anthropic.APIBase)
	envStr("CLARA_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("CLARA_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("CLARA_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("CLARA_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("CLARA_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("CLARA_MISTRAL_API_KEY", &c.Providers.Mistral.APIKey)
	envStr("CLARA_XAI_API_KEY", &c.Providers.XAI.APIKey)
	envStr("CLARA_MINIMAX_API_KEY", &c.Providers.MiniMax.APIKey)
	envStr("CLARA_COHERE_API_KEY", &c.Providers.Cohere.APIKey)
	envStr("CLARA_PERPLEXITY_API_KEY", &c.Providers.Perplexity.APIKey)
	envStr("CLARA_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("CLARA_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("CLARA_DISCORD_TOKEN", &c.Channels.Discord.Token)

	// TTS secrets
	envStr("CLARA_TTS_OPENAI_API_KEY", &c.Tts.OpenAI.APIKey)
	envStr("CLARA_TTS_ELEVENLABS_API_KEY", &c.Tts.ElevenLabs.APIKey)
	envStr("CLARA_TTS_MINIMAX_API_KEY", &c.Tts.MiniMax.APIKey)
	envStr("CLARA_TTS_MINIMAX_GROUP_ID", &c.Tts.MiniMax.GroupID)

	// Auto-enable channels if credentials are provided via env
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}

	// Allow overriding default provider/model
	envStr("CLARA_PROVIDER", &c.Agents.Defaults.Provider)
	envStr("CLARA_MODEL", &c.Agents.Defaults.Model)

	// Workspace & sessions
	envStr("CLARA_WORKSPACE", &c.Agents.Defaults.Workspace)
	envStr("CLARA_SESSIONS_STORAGE", &c.Sessions.Storage)

	// Gateway host/port
	envStr("CLARA_HOST", &c.Gateway.Host)
	if v := os.Getenv("CLARA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	// Owner IDs from env (comma-separated)
	if v := os.Getenv("CLARA_OWNER_IDS"); v != "" {
		c.Gateway.OwnerIDs = strings.Split(v, ",")
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for optimistic concurrency.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// WorkspacePath returns the expanded workspace path.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Agents.Defaults.Workspace)
}

// ResolveAgent returns the effective config for a given agent ID,
// merging defaults with per-agent overrides.
func (c *Config) ResolveAgent(agentID string) AgentDefaults {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := c.Agents.Defaults
	if spec, ok := c.Agents.List[agentID]; ok {
		if spec.Provider != "" {
			d.Provider = spec.Provider
		}
		if spec.Model != "" {
			d.Model = spec.Model
		}
		if spec.MaxTokens > 0 {
			d.MaxTokens = spec.MaxTokens
		}
		if spec.Temperature > 0 {
			d.Temperature = spec.Temperature
		}
		if spec.MaxToolIterations > 0 {
			d.MaxToolIterations = spec.MaxToolIterations
		}
		if spec.ContextWindow > 0 {
			d.ContextWindow = spec.ContextWindow
		}
		if spec.Workspace != "" {
			d.Workspace = spec.Workspace
		}
	}

	return d
}

// ResolveDefaultAgentID returns the ID of the agent marked as default,
// or DefaultAgentID if none is explicitly marked.
func (c *Config) ResolveDefaultAgentID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, spec := range c.Agents.List {
		if spec.Default {
			return id
		}
	}
	return DefaultAgentID
}

// ResolveDisplayName returns the display name for an agent.
func (c *Config) ResolveDisplayName(agentID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if spec, ok := c.Agents.List[agentID]; ok && spec.DisplayName != "" {
		return spec.DisplayName
	}
	return "Clara"
}

// ApplyEnvOverrides re-applies environment variable overrides onto the config.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
