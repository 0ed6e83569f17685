package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clara/internal/agent"
	"github.com/nextlevelbuilder/clara/internal/config"
	"github.com/nextlevelbuilder/clara/internal/memory"
	"github.com/nextlevelbuilder/clara/internal/sessions"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent-related commands",
	}
	cmd.AddCommand(agentChatCmd())
	return cmd
}

func agentChatCmd() *cobra.Command {
	var (
		agentName  string
		message    string
		sessionKey string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the local assistant from the terminal",
		Long: `Chat with the local assistant directly, without a running gateway.

Examples:
  clara agent chat                          # Interactive REPL
  clara agent chat -m "What time is it?"    # One-shot message
  clara agent chat -s my-session            # Continue a session`,
		Run: func(cmd *cobra.Command, args []string) {
			runAgentChat(agentName, message, sessionKey)
		},
	}

	cmd.Flags().StringVarP(&agentName, "name", "n", "", "agent id (default: the configured default agent)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for interactive mode)")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", "", "session key (default: auto-generated)")

	return cmd
}

// stdoutChannel renders one turn's output straight to the terminal.
type stdoutChannel struct{}

func (stdoutChannel) SendMessage(content string) { fmt.Println(content) }
func (stdoutChannel) SendError(content string)   { fmt.Fprintln(os.Stderr, "error:", content) }
func (stdoutChannel) SendToolCall(tool string, args map[string]interface{}) {
	fmt.Printf("  [tool] %s %v\n", tool, args)
}
func (stdoutChannel) SendImage(src, alt string) { fmt.Printf("  [image] %s (%s)\n", src, alt) }
func (stdoutChannel) SendStreamToken(token string) {}
func (stdoutChannel) SendStreamEnd()                {}
func (stdoutChannel) SendAudio(src string)          {}

func runAgentChat(agentName, message, sessionKey string) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.HasAnyProvider() {
		fmt.Fprintln(os.Stderr, "no LLM provider configured; run `clara onboard` first")
		os.Exit(1)
	}

	if agentName == "" {
		agentName = cfg.ResolveDefaultAgentID()
	}
	if sessionKey == "" {
		sessionKey = sessions.BuildSessionKey(agentName, "cli", sessions.PeerDirect, "local")
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating workspace: %v\n", err)
		os.Exit(1)
	}

	providerRegistry := buildProviders(cfg)
	skillRegistry := buildSkills(cfg, workspace)

	defaultProvider, err := providerRegistry.Default()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving provider: %v\n", err)
		os.Exit(1)
	}

	defaults := cfg.ResolveAgent(agentName)

	templateLoader := agent.NewTemplateLoader(
		config.ExpandHome(cfg.Agents.Templates.BuiltinDir),
		config.ExpandHome(cfg.Agents.Templates.CustomDir),
	)
	router := agent.NewRouter(templateLoader, skillRegistry, providerRegistry.Get)
	_ = router.Reload()

	sessionMgr := sessions.NewManager(config.ExpandHome(cfg.Sessions.Storage))
	memoryStore, err := memory.NewStoreFromConfig(cfg.Memory, config.ExpandHome(cfg.Memory.StorageDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening memory store: %v\n", err)
		os.Exit(1)
	}

	thinkScrub := true
	if defaults.ThinkScrub != nil {
		thinkScrub = *defaults.ThinkScrub
	}

	orch := &agent.Orchestrator{
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
		Persona:         fmt.Sprintf("You are %s, a helpful local assistant.", cfg.ResolveDisplayName(agentName)),
	}

	ctx := context.Background()
	ch := stdoutChannel{}

	if message != "" {
		if _, err := orch.Handle(ctx, ch, sessionKey, message, nil, false, nil, ""); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Chatting with " + agentName + " (session " + sessionKey + "). Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if _, err := orch.Handle(ctx, ch, sessionKey, line, nil, false, nil, ""); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
