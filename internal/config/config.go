package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile creates a configuration instance, reading path when it is set
// and searching the default locations otherwise
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/phish-scorer/")
		v.AddConfigPath("$HOME/.phish-scorer")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("PHISH_SCORER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderKeys(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// bindProviderKeys lets the usual provider variables, for example from a .env
// file, stand in for the prefixed ones
func bindProviderKeys(v *viper.Viper) {
	_ = v.BindEnv("reputation.virustotal.api_key", "PHISH_SCORER_REPUTATION_VIRUSTOTAL_API_KEY", "VIRUSTOTAL_API_KEY")
	_ = v.BindEnv("gemini.api_key", "PHISH_SCORER_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("openai.api_key", "PHISH_SCORER_OPENAI_API_KEY", "OPENAI_API_KEY")
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	rules := core.DefaultRules()

	// Server defaults
	v.SetDefault("server.filter_type", "http")
	v.SetDefault("server.listen_address", "0.0.0.0:8080")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 10*1024*1024)

	// Postfix content filter defaults
	v.SetDefault("server.smtp_listen_address", "127.0.0.1:10025")
	v.SetDefault("server.block_phishing", false)
	v.SetDefault("server.headers.phishing", "X-Phishing-Status")
	v.SetDefault("server.headers.score", "X-Phishing-Score")
	v.SetDefault("server.headers.reasons", "X-Phishing-Reasons")
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10026)
	v.SetDefault("server.postfix.enabled", true)
	v.SetDefault("server.subject_prefix", "")
	v.SetDefault("server.modify_subject", false)

	// Scoring defaults
	v.SetDefault("scoring.threshold", rules.Threshold)
	v.SetDefault("scoring.keywords", rules.Keywords)
	v.SetDefault("scoring.suspicious_tlds", rules.SuspiciousTLDs)
	v.SetDefault("scoring.urgency_pattern", rules.UrgencyPattern)
	v.SetDefault("scoring.sensitive_pattern", rules.SensitivePattern)
	v.SetDefault("scoring.sender_tokens", rules.SenderTokens)
	v.SetDefault("scoring.trusted_sender_suffixes", rules.TrustedSenderSuffixes)
	v.SetDefault("scoring.whitelisted_domains", []string{})

	// Reputation lookup defaults
	v.SetDefault("reputation.enabled", false)
	v.SetDefault("reputation.timeout", "5s")
	v.SetDefault("reputation.max_targets", 10)
	v.SetDefault("reputation.virustotal.enabled", true)
	v.SetDefault("reputation.virustotal.api_key", "")
	v.SetDefault("reputation.virustotal.base_url", "https://www.virustotal.com/api/v3")
	v.SetDefault("reputation.rdap.enabled", true)
	v.SetDefault("reputation.rdap.base_url", "https://rdap.org")
	v.SetDefault("reputation.rdap.min_age", "2160h")
	v.SetDefault("reputation.auth.enabled", true)
	v.SetDefault("reputation.auth.dns_server", "")
	v.SetDefault("reputation.attachments.enabled", true)
	v.SetDefault("reputation.attachments.max_size", 10*1024*1024)
	v.SetDefault("reputation.attachments.dangerous_extensions", []string{
		".exe", ".bat", ".cmd", ".scr", ".js", ".vbs", ".ps1", ".msi", ".jar",
	})

	// LLM advisor defaults
	v.SetDefault("advisor.enabled", false)
	v.SetDefault("advisor.provider", "gemini")
	v.SetDefault("advisor.timeout", "20s")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/phish_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/phish_scorer")

	// Gmail defaults
	v.SetDefault("gmail.enabled", false)
	v.SetDefault("gmail.credentials_file", "client_secret.json")
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("gmail.auth_mode", "console")
	v.SetDefault("gmail.callback_address", "localhost:8085")
	v.SetDefault("gmail.max_results", 5)
	v.SetDefault("gmail.user", "me")

	// CLI defaults
	v.SetDefault("cli.verbose", false)
	v.SetDefault("cli.json_output", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
