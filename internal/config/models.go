package config

import (
	"time"

	"github.com/mikey/phish-scorer/internal/core"
)

// ServerConfig represents the configuration for the inbound filters
type ServerConfig struct {
	FilterType        string
	ListenAddress     string
	AllowedOrigins    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxBodyBytes      int64
	SMTPListenAddress string
	BlockPhishing     bool
	PhishingHeader    string
	ScoreHeader       string
	ReasonsHeader     string
	PostfixAddress    string
	PostfixPort       int
	PostfixEnabled    bool
	SubjectPrefix     string
	ModifySubject     bool
}

// ReputationConfig represents the configuration for the external lookups
type ReputationConfig struct {
	Enabled           bool
	Timeout           time.Duration
	MaxTargets        int
	VirusTotalEnabled bool
	VirusTotalAPIKey  string
	VirusTotalBaseURL string
	RDAPEnabled       bool
	RDAPBaseURL       string
	RDAPMinAge        time.Duration

	AuthEnabled   bool
	AuthDNSServer string

	AttachmentsEnabled  bool
	AttachmentMaxSize   int64
	DangerousExtensions []string
}

// AdvisorConfig represents the configuration for the LLM second opinion
type AdvisorConfig struct {
	Enabled  bool
	Provider string
	Timeout  time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// CacheConfig represents the configuration for the verdict cache
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// GmailConfig represents the configuration for the Gmail message source
type GmailConfig struct {
	Enabled         bool
	CredentialsFile string
	TokenFile       string
	AuthMode        string
	CallbackAddress string
	MaxResults      int64
	User            string
}

// GetScoring returns the scoring rules
func (c *Config) GetScoring() core.RuleSet {
	return core.RuleSet{
		Keywords:              c.GetStringSlice("scoring.keywords"),
		SuspiciousTLDs:        c.GetStringSlice("scoring.suspicious_tlds"),
		UrgencyPattern:        c.GetString("scoring.urgency_pattern"),
		SensitivePattern:      c.GetString("scoring.sensitive_pattern"),
		SenderTokens:          c.GetStringSlice("scoring.sender_tokens"),
		TrustedSenderSuffixes: c.GetStringSlice("scoring.trusted_sender_suffixes"),
		Threshold:             c.GetInt("scoring.threshold"),
	}
}

// GetServer returns the server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	readTimeout, err := c.GetDuration("server.read_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	writeTimeout, err := c.GetDuration("server.write_timeout")
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		FilterType:        c.GetString("server.filter_type"),
		ListenAddress:     c.GetString("server.listen_address"),
		AllowedOrigins:    c.GetStringSlice("server.cors.allowed_origins"),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		MaxBodyBytes:      int64(c.GetInt("server.max_body_bytes")),
		SMTPListenAddress: c.GetString("server.smtp_listen_address"),
		BlockPhishing:     c.GetBool("server.block_phishing"),
		PhishingHeader:    c.GetString("server.headers.phishing"),
		ScoreHeader:       c.GetString("server.headers.score"),
		ReasonsHeader:     c.GetString("server.headers.reasons"),
		PostfixAddress:    c.GetString("server.postfix.address"),
		PostfixPort:       c.GetInt("server.postfix.port"),
		PostfixEnabled:    c.GetBool("server.postfix.enabled"),
		SubjectPrefix:     c.GetString("server.subject_prefix"),
		ModifySubject:     c.GetBool("server.modify_subject"),
	}, nil
}

// GetReputation returns the reputation lookup configuration
func (c *Config) GetReputation() (ReputationConfig, error) {
	timeout, err := c.GetDuration("reputation.timeout")
	if err != nil {
		return ReputationConfig{}, err
	}
	minAge, err := c.GetDuration("reputation.rdap.min_age")
	if err != nil {
		return ReputationConfig{}, err
	}

	return ReputationConfig{
		Enabled:           c.GetBool("reputation.enabled"),
		Timeout:           timeout,
		MaxTargets:        c.GetInt("reputation.max_targets"),
		VirusTotalEnabled: c.GetBool("reputation.virustotal.enabled"),
		VirusTotalAPIKey:  c.GetString("reputation.virustotal.api_key"),
		VirusTotalBaseURL: c.GetString("reputation.virustotal.base_url"),
		RDAPEnabled:       c.GetBool("reputation.rdap.enabled"),
		RDAPBaseURL:       c.GetString("reputation.rdap.base_url"),
		RDAPMinAge:        minAge,

		AuthEnabled:   c.GetBool("reputation.auth.enabled"),
		AuthDNSServer: c.GetString("reputation.auth.dns_server"),

		AttachmentsEnabled:  c.GetBool("reputation.attachments.enabled"),
		AttachmentMaxSize:   int64(c.GetInt("reputation.attachments.max_size")),
		DangerousExtensions: c.GetStringSlice("reputation.attachments.dangerous_extensions"),
	}, nil
}

// GetAdvisor returns the LLM advisor configuration
func (c *Config) GetAdvisor() (AdvisorConfig, error) {
	timeout, err := c.GetDuration("advisor.timeout")
	if err != nil {
		return AdvisorConfig{}, err
	}
	return AdvisorConfig{
		Enabled:  c.GetBool("advisor.enabled"),
		Provider: c.GetString("advisor.provider"),
		Timeout:  timeout,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanupFreq, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}

	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanupFreq,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}, nil
}

// GetGmail returns the Gmail source configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		Enabled:         c.GetBool("gmail.enabled"),
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		AuthMode:        c.GetString("gmail.auth_mode"),
		CallbackAddress: c.GetString("gmail.callback_address"),
		MaxResults:      int64(c.GetInt("gmail.max_results")),
		User:            c.GetString("gmail.user"),
	}
}
