package factory

import (
	"fmt"

	"github.com/mikey/phish-scorer/internal/adapters/filter"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/ports"
	"github.com/mikey/phish-scorer/internal/utils"
	"go.uber.org/zap"
)

// FilterFactory creates message filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.PhishingService
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.PhishingService,
	textProcessor *utils.TextProcessor,
) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		textProcessor: textProcessor,
	}
}

// CreateMessageFilter creates the filter named by server.filter_type. source
// is only used by the HTTP filter and may be nil.
func (f *FilterFactory) CreateMessageFilter(source core.MessageSource) (ports.MessageFilter, error) {
	serverConfig, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	switch serverConfig.FilterType {
	case "http":
		return filter.NewHTTPFilter(
			f.service,
			source,
			f.logger,
			f.textProcessor,
			serverConfig.ListenAddress,
			serverConfig.AllowedOrigins,
			serverConfig.ReadTimeout,
			serverConfig.WriteTimeout,
			serverConfig.MaxBodyBytes,
		), nil
	case "postfix":
		return filter.NewPostfixFilter(
			f.service,
			f.logger,
			f.textProcessor,
			serverConfig.SMTPListenAddress,
			serverConfig.BlockPhishing,
			serverConfig.PhishingHeader,
			serverConfig.ScoreHeader,
			serverConfig.ReasonsHeader,
			serverConfig.PostfixAddress,
			serverConfig.PostfixPort,
			serverConfig.PostfixEnabled,
			serverConfig.SubjectPrefix,
			serverConfig.ModifySubject,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json_output"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverConfig.FilterType)
	}
}
