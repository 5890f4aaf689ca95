package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LookupOptions bounds the external lookups run after scoring
type LookupOptions struct {
	Timeout        time.Duration
	MaxTargets     int
	AdvisorTimeout time.Duration
}

// PhishingService wraps the scorer with caching, whitelisting and best-effort lookups
type PhishingService struct {
	scorer       *PhishingScorer
	checkers     []ReputationChecker
	advisor      LLMClient
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	lookups      LookupOptions
	whitelist    SenderWhitelist
}

// NewPhishingService creates a new phishing service. checkers, advisor, cache
// and whitelist may be nil.
func NewPhishingService(
	scorer *PhishingScorer,
	checkers []ReputationChecker,
	advisor LLMClient,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	lookups LookupOptions,
	whitelist SenderWhitelist,
) *PhishingService {
	return &PhishingService{
		scorer:       scorer,
		checkers:     checkers,
		advisor:      advisor,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
		lookups:      lookups,
		whitelist:    whitelist,
	}
}

// Score runs only the heuristic scorer
func (s *PhishingService) Score(msg *Message) *ScoringResult {
	return s.scorer.Score(msg)
}

// Threshold returns the score at which a message is classified as phishing
func (s *PhishingService) Threshold() int {
	return s.scorer.Threshold()
}

// isDomainWhitelisted checks if the sender's domain is trusted
func (s *PhishingService) isDomainWhitelisted(sender string) bool {
	return s.whitelist != nil && s.whitelist.IsWhitelisted(sender)
}

// Analyze scores a message and enriches the verdict with lookups and advice.
// Lookup and advisor failures are recorded in the analysis, never returned.
func (s *PhishingService) Analyze(ctx context.Context, msg *Message) (*Analysis, error) {
	if msg == nil {
		return nil, fmt.Errorf("message is required")
	}
	hash := msg.Hash()

	// Check cache if enabled
	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, hash); err == nil && entry.Analysis != nil {
			s.logger.Debug("Cache hit for message", zap.String("hash", hash))
			cached := *entry.Analysis
			cached.Cached = true
			return &cached, nil
		}
	}

	analysis := &Analysis{
		ID:            uuid.NewString(),
		ScoringResult: *s.scorer.Score(msg),
		MessageHash:   hash,
		Lookups:       []LookupResult{},
		AnalyzedAt:    time.Now(),
	}

	if s.isDomainWhitelisted(msg.Sender) {
		s.logger.Info("Skipping external lookups for whitelisted domain",
			zap.String("sender", msg.Sender),
			zap.String("action", "whitelist_bypass"))
		analysis.Whitelisted = true
	} else {
		analysis.Lookups = s.runLookups(ctx, msg, &analysis.ScoringResult)
		if s.advisor != nil {
			analysis.Advice = s.askAdvisor(ctx, msg, analysis)
		}
	}

	// Update cache with result if enabled
	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			MessageHash: hash,
			Analysis:    analysis,
			LastSeen:    now,
			ExpiresAt:   now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return analysis, nil
}

type lookupJob struct {
	name   string
	target string
	check  func(ctx context.Context) (*LookupResult, error)
}

// runLookups runs every checker over its targets in parallel. Results keep
// checker order, then target order.
func (s *PhishingService) runLookups(ctx context.Context, msg *Message, result *ScoringResult) []LookupResult {
	var jobs []lookupJob
	for _, checker := range s.checkers {
		if ac, ok := checker.(AttachmentChecker); ok {
			jobs = append(jobs, attachmentJobs(ac, msg.Attachments, s.lookups.MaxTargets)...)
			continue
		}
		for _, target := range limitTargets(checker.Targets(msg, result), s.lookups.MaxTargets) {
			checker, target := checker, target
			jobs = append(jobs, lookupJob{
				name:   checker.Name(),
				target: target,
				check: func(ctx context.Context) (*LookupResult, error) {
					return checker.Check(ctx, target)
				},
			})
		}
	}
	if len(jobs) == 0 {
		return []LookupResult{}
	}

	results := make([]LookupResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = s.lookup(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// attachmentJobs creates one job per attachment, capped at max
func attachmentJobs(checker AttachmentChecker, attachments []Attachment, max int) []lookupJob {
	var jobs []lookupJob
	for _, att := range attachments {
		if max > 0 && len(jobs) == max {
			break
		}
		att := att
		target := att.Filename
		if target == "" {
			target = att.SHA256
		}
		jobs = append(jobs, lookupJob{
			name:   checker.Name(),
			target: target,
			check: func(ctx context.Context) (*LookupResult, error) {
				return checker.CheckAttachment(ctx, att)
			},
		})
	}
	return jobs
}

// lookup performs one timeout-bounded check, degrading failures to a neutral result
func (s *PhishingService) lookup(ctx context.Context, job lookupJob) LookupResult {
	if s.lookups.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lookups.Timeout)
		defer cancel()
	}

	res, err := job.check(ctx)
	if err != nil || res == nil {
		s.logger.Warn("Reputation lookup failed",
			zap.String("source", job.name),
			zap.String("target", job.target),
			zap.Error(err))
		return LookupResult{
			Source:  job.name,
			Target:  job.target,
			Verdict: LookupFailed,
			Detail:  fmt.Sprintf("%s check failed", job.name),
		}
	}

	if res.Source == "" {
		res.Source = job.name
	}
	if res.Target == "" {
		res.Target = job.target
	}
	return *res
}

func (s *PhishingService) askAdvisor(ctx context.Context, msg *Message, analysis *Analysis) *Advice {
	if s.lookups.AdvisorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lookups.AdvisorTimeout)
		defer cancel()
	}

	advice, err := s.advisor.AssessMessage(ctx, msg)
	if err != nil {
		s.logger.Warn("LLM advisor failed", zap.Error(err))
		analysis.Lookups = append(analysis.Lookups, LookupResult{
			Source:  "LLM advisor",
			Verdict: LookupFailed,
			Detail:  "LLM advisor check failed",
		})
		return nil
	}
	return advice
}

// limitTargets drops empty and duplicate targets and caps the list
func limitTargets(targets []string, max int) []string {
	seen := make(map[string]bool, len(targets))
	var out []string
	for _, target := range targets {
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// SenderDomain extracts the lower-cased domain of an address such as
// "Name <user@example.com>"
func SenderDomain(sender string) string {
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return ""
	}
	domain := strings.TrimSpace(sender[at+1:])
	domain = strings.TrimRight(domain, ">")
	return strings.ToLower(strings.TrimSpace(domain))
}
