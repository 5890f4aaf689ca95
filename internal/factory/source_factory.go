package factory

import (
	"context"
	"fmt"

	"github.com/mikey/phish-scorer/internal/adapters/gmail"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
	"go.uber.org/zap"
)

// SourceFactory creates mailbox sources
type SourceFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *SourceFactory {
	return &SourceFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateMessageSource authorizes against Gmail and returns the source, or nil
// when the Gmail source is disabled
func (f *SourceFactory) CreateMessageSource(ctx context.Context) (core.MessageSource, error) {
	gmailConfig := f.cfg.GetGmail()
	if !gmailConfig.Enabled {
		return nil, nil
	}

	authorizer, err := gmail.NewAuthorizer(
		gmailConfig.CredentialsFile,
		gmailConfig.TokenFile,
		gmailConfig.AuthMode,
		gmailConfig.CallbackAddress,
		f.logger,
	)
	if err != nil {
		return nil, err
	}

	client, err := authorizer.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize Gmail access: %w", err)
	}

	source, err := gmail.NewSource(ctx, client, gmailConfig.User, gmailConfig.MaxResults, f.textProcessor, f.logger)
	if err != nil {
		return nil, err
	}
	return source, nil
}
