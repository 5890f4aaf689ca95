package di

import (
	"context"
	"flag"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/factory"
	"github.com/mikey/phish-scorer/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Scoring flags
	Threshold int
	Whitelist string

	// Lookup flags
	Reputation       bool
	VirusTotalAPIKey string

	// LLM advisor flags
	Advisor         bool
	Provider        string
	GeminiAPIKey    string
	GeminiModelName string
	OpenAIAPIKey    string
	OpenAIModelName string
	BedrockRegion   string
	BedrockModelID  string

	// Input flags
	InputFile       string
	Gmail           bool
	GmailCredential string
	GmailToken      string

	// Output flags
	Verbose    bool
	JSONOutput bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Scoring flags
	fs.IntVar(&flags.Threshold, "threshold", core.DefaultThreshold, "Score at which a message is classified as phishing")
	fs.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of trusted sender domains")

	// Lookup flags
	fs.BoolVar(&flags.Reputation, "reputation", false, "Run VirusTotal, domain age, sender authentication and attachment lookups")
	fs.StringVar(&flags.VirusTotalAPIKey, "virustotal-api-key", os.Getenv("VIRUSTOTAL_API_KEY"), "API key for VirusTotal")

	// LLM advisor flags
	fs.BoolVar(&flags.Advisor, "advisor", false, "Ask an LLM for a second opinion")
	fs.StringVar(&flags.Provider, "provider", "gemini", "LLM provider (bedrock, gemini, openai)")
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", os.Getenv("GEMINI_API_KEY"), "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.Gmail, "gmail", false, "Analyze the latest Gmail messages instead of a file")
	fs.StringVar(&flags.GmailCredential, "gmail-credentials", "client_secret.json", "Gmail OAuth client credentials file")
	fs.StringVar(&flags.GmailToken, "gmail-token", "token.json", "Gmail token cache file")

	// Output flags
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and output")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the analysis as JSON")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(ctx context.Context, flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			applyCLIOverrides(cfg, flags)
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideFactories(container); err != nil {
		return nil, err
	}

	// Register mailbox source, only built when -gmail is set
	if err := container.Provide(func(ctx context.Context, flags *CLIFlags, f *factory.SourceFactory) (core.MessageSource, error) {
		if !flags.Gmail {
			return nil, nil
		}
		return f.CreateMessageSource(ctx)
	}); err != nil {
		return nil, err
	}

	// Register phishing service with no cache
	if err := container.Provide(func(
		f *factory.ServiceFactory,
		checkers []core.ReputationChecker,
		advisor core.LLMClient,
		lookups core.LookupOptions,
	) (*core.PhishingService, error) {
		return f.CreateService(checkers, advisor, nil, lookups)
	}); err != nil {
		return nil, err
	}

	if err := provideFilter(container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyCLIOverrides forces the CLI filter and disables caching on a loaded config
func applyCLIOverrides(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json_output", flags.JSONOutput)
	v.Set("cache.enabled", false)
	if flags.Gmail {
		v.Set("gmail.enabled", true)
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("scoring.threshold", flags.Threshold)
	v.Set("scoring.whitelisted_domains", splitList(flags.Whitelist))

	v.Set("reputation.enabled", flags.Reputation)
	v.Set("reputation.virustotal.api_key", flags.VirusTotalAPIKey)

	// Set LLM provider
	v.Set("advisor.enabled", flags.Advisor)
	v.Set("advisor.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
	}

	v.Set("gmail.credentials_file", flags.GmailCredential)
	v.Set("gmail.token_file", flags.GmailToken)

	cfg := config.NewFromViper(v)
	applyCLIOverrides(cfg, flags)
	return cfg
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
