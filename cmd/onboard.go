package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clara/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactively set up a provider and write the config file",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

var onboardProviders = []string{
	"anthropic", "openai", "openrouter", "groq", "deepseek", "mistral", "xai", "gemini",
}

func runOnboard() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	var provider, apiKey, model string
	provider = cfg.Agents.Defaults.Provider

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose your LLM provider").
				Options(huh.NewOptions(onboardProviders...)...).
				Value(&provider),
			huh.NewInput().
				Title("API key").
				Password(true).
				Value(&apiKey),
			huh.NewInput().
				Title("Default model (leave blank for a sensible default)").
				Value(&model),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "onboarding cancelled: %v\n", err)
		os.Exit(1)
	}

	setProviderKey(cfg, provider, apiKey)
	cfg.Agents.Defaults.Provider = provider
	if model != "" {
		cfg.Agents.Defaults.Model = model
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Saved config to %s. Run `clara` to start the gateway, or `clara agent chat` to talk to it now.\n", cfgPath)
}

func setProviderKey(cfg *config.Config, provider, apiKey string) {
	switch provider {
	case "anthropic":
		cfg.Providers.Anthropic.APIKey = apiKey
	case "openai":
		cfg.Providers.OpenAI.APIKey = apiKey
	case "openrouter":
		cfg.Providers.OpenRouter.APIKey = apiKey
	case "groq":
		cfg.Providers.Groq.APIKey = apiKey
	case "deepseek":
		cfg.Providers.DeepSeek.APIKey = apiKey
	case "mistral":
		cfg.Providers.Mistral.APIKey = apiKey
	case "xai":
		cfg.Providers.XAI.APIKey = apiKey
	case "gemini":
		cfg.Providers.Gemini.APIKey = apiKey
	}
}
