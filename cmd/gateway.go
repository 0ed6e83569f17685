package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nextlevelbuilder/clara/internal/agent"
	"github.com/nextlevelbuilder/clara/internal/automation"
	"github.com/nextlevelbuilder/clara/internal/bus"
	"github.com/nextlevelbuilder/clara/internal/channels"
	"github.com/nextlevelbuilder/clara/internal/channels/discord"
	"github.com/nextlevelbuilder/clara/internal/channels/telegram"
	"github.com/nextlevelbuilder/clara/internal/config"
	"github.com/nextlevelbuilder/clara/internal/eventbus"
	"github.com/nextlevelbuilder/clara/internal/gateway"
	"github.com/nextlevelbuilder/clara/internal/memory"
	"github.com/nextlevelbuilder/clara/internal/notify"
	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/internal/scheduler"
	"github.com/nextlevelbuilder/clara/internal/scripts"
	"github.com/nextlevelbuilder/clara/internal/sessions"
	"github.com/nextlevelbuilder/clara/internal/store"
	"github.com/nextlevelbuilder/clara/internal/tools"
	"github.com/nextlevelbuilder/clara/internal/tracing"
	"github.com/nextlevelbuilder/clara/internal/webhook"
)

func newTelegramChannel(cfg config.TelegramConfig, msgBus *bus.MessageBus) (channels.Channel, error) {
	var pairingSvc store.PairingStore
	var agentStore store.AgentStore
	return telegram.New(cfg, msgBus, pairingSvc, agentStore)
}

func newDiscordChannel(cfg config.DiscordConfig, msgBus *bus.MessageBus) (channels.Channel, error) {
	var pairingSvc store.PairingStore
	return discord.New(cfg, msgBus, pairingSvc)
}

// buildProviders constructs a provider registry from every configured API
// key, falling back to the agent defaults' provider as the registry default.
func buildProviders(cfg *config.Config) *providers.Registry {
	reg := providers.NewRegistry()

	if k := cfg.Providers.Anthropic.APIKey; k != "" {
		var opts []providers.AnthropicOption
		if cfg.Providers.Anthropic.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(cfg.Providers.Anthropic.APIBase))
		}
		reg.Register(providers.NewAnthropicProvider(k, opts...))
	}
	if k := cfg.Providers.OpenAI.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("openai", k, cfg.Providers.OpenAI.APIBase, ""))
	}
	if k := cfg.Providers.OpenRouter.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("openrouter", k, firstNonEmpty(cfg.Providers.OpenRouter.APIBase, "https://openrouter.ai/api/v1"), ""))
	}
	if k := cfg.Providers.Groq.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("groq", k, firstNonEmpty(cfg.Providers.Groq.APIBase, "https://api.groq.com/openai/v1"), ""))
	}
	if k := cfg.Providers.DeepSeek.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("deepseek", k, firstNonEmpty(cfg.Providers.DeepSeek.APIBase, "https://api.deepseek.com/v1"), ""))
	}
	if k := cfg.Providers.Mistral.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("mistral", k, firstNonEmpty(cfg.Providers.Mistral.APIBase, "https://api.mistral.ai/v1"), ""))
	}
	if k := cfg.Providers.XAI.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("xai", k, firstNonEmpty(cfg.Providers.XAI.APIBase, "https://api.x.ai/v1"), ""))
	}
	if k := cfg.Providers.MiniMax.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("minimax", k, firstNonEmpty(cfg.Providers.MiniMax.APIBase, "https://api.minimax.io/v1"), ""))
	}
	if k := cfg.Providers.Cohere.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("cohere", k, firstNonEmpty(cfg.Providers.Cohere.APIBase, "https://api.cohere.ai/compatibility/v1"), ""))
	}
	if k := cfg.Providers.Perplexity.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("perplexity", k, firstNonEmpty(cfg.Providers.Perplexity.APIBase, "https://api.perplexity.ai"), ""))
	}
	if k := cfg.Providers.Gemini.APIKey; k != "" {
		reg.Register(providers.NewOpenAIProvider("gemini", k, firstNonEmpty(cfg.Providers.Gemini.APIBase, "https://generativelanguage.googleapis.com/v1beta/openai"), ""))
	}

	reg.SetFallback(cfg.Agents.Defaults.Provider)
	return reg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func buildSkills(cfg *config.Config, workspace string) *tools.Registry {
	reg := tools.NewRegistry()

	reg.Register(tools.NewFileManagerSkill([]string{workspace}))
	reg.Register(tools.NewSystemCommandSkill())
	if cfg.Tools.Web.DuckDuckGo.Enabled {
		reg.Register(tools.NewWebFetchSkill())
	}
	if cfg.Tools.Browser.Enabled {
		reg.Register(tools.NewWebBrowseSkill())
	}
	return reg
}

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !cfg.HasAnyProvider() {
		slog.Error("no LLM provider configured; run `clara onboard` or set a provider API key")
		os.Exit(1)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		slog.Error("failed to create workspace", "error", err, "path", workspace)
		os.Exit(1)
	}

	traceCollector := tracing.NewCollector(500)
	tracerProvider, err := tracing.NewProvider("clara-gateway", traceCollector)
	if err != nil {
		slog.Warn("failed to init tracer provider, spans will not be recorded", "error", err)
	} else {
		defer tracerProvider.Shutdown(context.Background())
	}

	providerRegistry := buildProviders(cfg)
	skillRegistry := buildSkills(cfg, workspace)

	if cfg.Tools.Browser.Enabled {
		genDir := filepath.Join(workspace, "generated")
		skillRegistry.Register(tools.NewCreateImageSkill(providerRegistry, genDir))
		skillRegistry.Register(tools.NewImageThumbnailSkill(genDir))
	}

	sessionMgr := sessions.NewManager(config.ExpandHome(cfg.Sessions.Storage))
	memoryStore, err := memory.NewStoreFromConfig(cfg.Memory, config.ExpandHome(cfg.Memory.StorageDir))
	if err != nil {
		slog.Error("failed to open memory store", "error", err)
		os.Exit(1)
	}

	templateLoader := agent.NewTemplateLoader(
		config.ExpandHome(cfg.Agents.Templates.BuiltinDir),
		config.ExpandHome(cfg.Agents.Templates.CustomDir),
	)
	router := agent.NewRouter(templateLoader, skillRegistry, providerRegistry.Get)
	if err := router.Reload(); err != nil {
		slog.Warn("failed to load agent templates", "error", err)
	}

	defaultAgentID := cfg.ResolveDefaultAgentID()
	defaults := cfg.ResolveAgent(defaultAgentID)

	defaultProvider, err := providerRegistry.Default()
	if err != nil {
		slog.Error("failed to resolve default provider", "error", err)
		os.Exit(1)
	}

	var extractor *memory.Extractor
	if cfg.Memory.MaxFacts > 0 {
		extractModel := cfg.Memory.ExtractionModel
		if extractModel == "" {
			extractModel = defaults.Model
		}
		extractor = memory.NewExtractor(defaultProvider, extractModel, memoryStore)
		if cfg.Memory.ExtractionPrompt != "" {
			extractor.SetPrompt(cfg.Memory.ExtractionPrompt)
		}
	}

	thinkScrub := true
	if defaults.ThinkScrub != nil {
		thinkScrub = *defaults.ThinkScrub
	}

	orchestrator := &agent.Orchestrator{
		Sessions:        sessionMgr,
		Memory:          memoryStore,
		Registry:        skillRegistry,
		Router:          router,
		Provider:        defaultProvider,
		Model:           defaults.Model,
		Temperature:     defaults.Temperature,
		MaxRounds:       defaults.MaxToolIterations,
		HistoryMessages: defaults.HistoryMessages,
		MemoryMaxFacts:  cfg.Memory.MaxFacts,
		ThinkScrub:      thinkScrub,
		Persona:         fmt.Sprintf("You are %s, a helpful local assistant.", cfg.ResolveDisplayName(defaultAgentID)),
		Extractor:       extractor,
	}

	evBus := eventbus.New()
	notifier := notify.New(config.ExpandHome(cfg.Sessions.Storage))
	notifier.SetOrchestrator(orchestrator)

	sched := scheduler.New(config.ExpandHome(cfg.Scheduler.StorageDir), evBus, skillRegistry, notifier)
	scriptsEngine := scripts.New(config.ExpandHome(cfg.Scripts.StorageDir), skillRegistry)
	automation.New(config.ExpandHome(cfg.Automation.StorageDir), evBus, skillRegistry, scriptsEngine, notifier, orchestrator)

	msgBus := bus.NewMessageBus(256)
	channelMgr := channels.NewManager(msgBus)
	registerChannels(channelMgr, msgBus, cfg)

	webhooks := webhook.New(config.ExpandHome(cfg.Webhooks.StorageDir), evBus, cfg.Webhooks.RateLimitPerMinute)

	server := gateway.NewServer(cfg, orchestrator, notifier, webhooks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}
	sched.Start(ctx)

	go func() {
		if err := router.WatchTemplates(ctx,
			config.ExpandHome(cfg.Agents.Templates.BuiltinDir),
			config.ExpandHome(cfg.Agents.Templates.CustomDir),
		); err != nil {
			slog.Warn("agent: template watcher exited", "error", err)
		}
	}()

	go consumeInboundMessages(ctx, msgBus, orchestrator, cfg)

	slog.Info("clara gateway running", "host", cfg.Gateway.Host, "port", cfg.Gateway.Port, "agent", defaultAgentID)

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway server stopped", "error", err)
	}

	sched.Stop()
	if err := channelMgr.StopAll(context.Background()); err != nil {
		slog.Warn("error stopping channels", "error", err)
	}
}
