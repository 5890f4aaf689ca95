package factory

import (
	"context"
	"fmt"

	"github.com/mikey/phish-scorer/internal/adapters/bedrock"
	"github.com/mikey/phish-scorer/internal/adapters/gemini"
	"github.com/mikey/phish-scorer/internal/adapters/openai"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates the LLM advisor
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMClient creates the advisor for the configured provider. It returns
// nil without error when the advisor is disabled.
func (f *LLMFactory) CreateLLMClient(ctx context.Context) (core.LLMClient, error) {
	advisorConfig, err := f.cfg.GetAdvisor()
	if err != nil {
		return nil, fmt.Errorf("invalid advisor config: %w", err)
	}
	if !advisorConfig.Enabled {
		f.logger.Debug("LLM advisor disabled")
		return nil, nil
	}

	f.logger.Info("Creating LLM advisor", zap.String("provider", advisorConfig.Provider))

	var (
		client core.LLMClient
		cerr   error
	)
	switch advisorConfig.Provider {
	case "bedrock":
		var c *bedrock.BedrockClient
		c, cerr = bedrock.NewFactory(f.cfg.GetBedrock(), f.logger, f.textProcessor).CreateLLMClient(ctx)
		client = c
	case "gemini":
		var c *gemini.GeminiClient
		c, cerr = gemini.NewFactory(f.cfg.GetGemini(), f.logger, f.textProcessor).CreateLLMClient()
		client = c
	case "openai":
		var c *openai.OpenAIClient
		c, cerr = openai.NewFactory(f.cfg.GetOpenAI(), f.logger, f.textProcessor).CreateLLMClient()
		client = c
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", advisorConfig.Provider)
	}
	if cerr != nil {
		return nil, cerr
	}
	return client, nil
}
