package factory

import (
	"fmt"

	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/whitelist"
	"go.uber.org/zap"
)

// ServiceFactory assembles the phishing service from its collaborators
type ServiceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateScorer compiles the configured scoring rules
func (f *ServiceFactory) CreateScorer() (*core.PhishingScorer, error) {
	scorer, err := core.NewPhishingScorer(f.cfg.GetScoring())
	if err != nil {
		return nil, fmt.Errorf("invalid scoring rules: %w", err)
	}
	f.logger.Info("Phishing scorer ready", zap.Int("threshold", scorer.Threshold()))
	return scorer, nil
}

// CreateWhitelist builds the trusted sender list
func (f *ServiceFactory) CreateWhitelist() *whitelist.Checker {
	return whitelist.NewChecker(f.cfg.GetStringSlice("scoring.whitelisted_domains"), f.logger)
}

// CreateService wires the scorer with the optional lookups, advisor and cache.
// A nil advisor or cache disables that stage.
func (f *ServiceFactory) CreateService(
	checkers []core.ReputationChecker,
	advisor core.LLMClient,
	cacheRepo core.CacheRepository,
	lookups core.LookupOptions,
) (*core.PhishingService, error) {
	scorer, err := f.CreateScorer()
	if err != nil {
		return nil, err
	}

	cacheConfig, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	return core.NewPhishingService(
		scorer,
		checkers,
		advisor,
		cacheRepo,
		f.logger,
		cacheConfig.Enabled,
		cacheConfig.TTL,
		lookups,
		f.CreateWhitelist(),
	), nil
}
