package core

import (
	"context"
)

// LLMClient defines the interface for asking a generative-language model for a second opinion
type LLMClient interface {
	// AssessMessage asks the model whether a message looks like phishing
	AssessMessage(ctx context.Context, msg *Message) (*Advice, error)
}

// ReputationChecker is a best-effort external lookup run after scoring
type ReputationChecker interface {
	// Name is used as the lookup source and in failure details
	Name() string

	// Targets selects what to look up from a scored message
	Targets(msg *Message, result *ScoringResult) []string

	// Check looks up a single target
	Check(ctx context.Context, target string) (*LookupResult, error)
}

// AttachmentChecker is a ReputationChecker that also weighs attachment
// metadata. The service calls CheckAttachment once per attachment in place
// of Targets and Check.
type AttachmentChecker interface {
	ReputationChecker

	// CheckAttachment inspects a single attachment
	CheckAttachment(ctx context.Context, att Attachment) (*LookupResult, error)
}

// CacheRepository defines the interface for caching analyses
type CacheRepository interface {
	// Get retrieves a cached entry for a message hash
	Get(ctx context.Context, messageHash string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, messageHash string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// MessageSource fetches messages from a mailbox
type MessageSource interface {
	Fetch(ctx context.Context) ([]*Message, error)
}

// SenderWhitelist reports trusted senders whose messages skip external lookups
type SenderWhitelist interface {
	IsWhitelisted(sender string) bool
}
