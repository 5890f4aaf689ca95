package factory

import (
	"fmt"
	"net/http"

	"github.com/mikey/phish-scorer/internal/adapters/reputation"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"go.uber.org/zap"
)

// ReputationFactory creates the external lookup checkers
type ReputationFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReputationFactory creates a new reputation factory
func NewReputationFactory(cfg *config.Config, logger *zap.Logger) *ReputationFactory {
	return &ReputationFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCheckers returns the enabled checkers in lookup order. VirusTotal is
// skipped with a warning when no API key is configured, in which case
// attachments are only weighed locally.
func (f *ReputationFactory) CreateCheckers() ([]core.ReputationChecker, error) {
	repConfig, err := f.cfg.GetReputation()
	if err != nil {
		return nil, fmt.Errorf("invalid reputation config: %w", err)
	}
	if !repConfig.Enabled {
		return nil, nil
	}

	client := &http.Client{Timeout: repConfig.Timeout}
	var checkers []core.ReputationChecker

	var vt *reputation.VirusTotal
	if repConfig.VirusTotalEnabled {
		if repConfig.VirusTotalAPIKey == "" {
			f.logger.Warn("VirusTotal lookups enabled without an API key, skipping")
		} else {
			vt, err = reputation.NewVirusTotal(client, repConfig.VirusTotalBaseURL, repConfig.VirusTotalAPIKey)
			if err != nil {
				return nil, err
			}
			checkers = append(checkers, reputation.NewVirusTotalChecker(vt, f.logger))
		}
	}

	if repConfig.RDAPEnabled {
		rdap, err := reputation.NewRDAPChecker(client, repConfig.RDAPBaseURL, repConfig.RDAPMinAge, f.logger)
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, rdap)
	}

	if repConfig.AuthEnabled {
		resolver, err := reputation.NewDNSResolver(repConfig.AuthDNSServer, repConfig.Timeout)
		if err != nil {
			f.logger.Warn("No DNS server available, skipping sender authentication", zap.Error(err))
		} else {
			checkers = append(checkers, reputation.NewAuthChecker(resolver, f.logger))
		}
	}

	if repConfig.AttachmentsEnabled {
		checkers = append(checkers, reputation.NewAttachmentChecker(vt, repConfig.AttachmentMaxSize, repConfig.DangerousExtensions, f.logger))
	}

	names := make([]string, 0, len(checkers))
	for _, c := range checkers {
		names = append(names, c.Name())
	}
	f.logger.Info("Reputation lookups configured", zap.Strings("checkers", names))

	return checkers, nil
}

// LookupOptions returns the limits applied to lookups and the advisor
func (f *ReputationFactory) LookupOptions() (core.LookupOptions, error) {
	repConfig, err := f.cfg.GetReputation()
	if err != nil {
		return core.LookupOptions{}, fmt.Errorf("invalid reputation config: %w", err)
	}
	advisorConfig, err := f.cfg.GetAdvisor()
	if err != nil {
		return core.LookupOptions{}, fmt.Errorf("invalid advisor config: %w", err)
	}
	return core.LookupOptions{
		Timeout:        repConfig.Timeout,
		MaxTargets:     repConfig.MaxTargets,
		AdvisorTimeout: advisorConfig.Timeout,
	}, nil
}
