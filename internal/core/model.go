package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Message represents the decoded fields of an email or chat message
type Message struct {
	ID          string       `json:"id,omitempty"`
	Sender      string       `json:"from"`
	Subject     string       `json:"subject"`
	Body        string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment describes a decoded attachment. Content is not retained.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256,omitempty"`
}

// NewAttachment describes content, computing its size and digest
func NewAttachment(filename, contentType string, content []byte) Attachment {
	sum := sha256.Sum256(content)
	return Attachment{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		SHA256:      hex.EncodeToString(sum[:]),
	}
}

// Hash returns the hex SHA-256 of body, sender, subject and any attachment digests
func (m *Message) Hash() string {
	h := sha256.New()
	h.Write([]byte(m.Body + "|" + m.Sender + "|" + m.Subject))
	for _, att := range m.Attachments {
		h.Write([]byte("|" + att.Filename + ":" + att.SHA256))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ScoringResult is the verdict produced by the PhishingScorer
type ScoringResult struct {
	URLs        []string `json:"urls"`
	FlaggedURLs []string `json:"flaggedUrls"`
	Reasons     []string `json:"reasons"`
	Score       int      `json:"score"`
	IsPhishing  bool     `json:"isPhishing"`
}

// LookupVerdict is the outcome of a single external check
type LookupVerdict string

const (
	LookupClean      LookupVerdict = "clean"
	LookupSuspicious LookupVerdict = "suspicious"
	LookupFailed     LookupVerdict = "failed"
)

// LookupResult represents the result of one reputation lookup
type LookupResult struct {
	Source  string        `json:"source"`
	Target  string        `json:"target"`
	Verdict LookupVerdict `json:"verdict"`
	Detail  string        `json:"detail,omitempty"`
}

// Advice is a second opinion returned by a generative-language model
type Advice struct {
	IsPhishing  bool    `json:"isPhishing"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	ModelUsed   string  `json:"model"`
}

// Analysis is the full result returned by the PhishingService
type Analysis struct {
	ID string `json:"id"`
	ScoringResult
	MessageHash string         `json:"messageHash"`
	Lookups     []LookupResult `json:"lookups"`
	Advice      *Advice        `json:"advice,omitempty"`
	Whitelisted bool           `json:"whitelisted"`
	Cached      bool           `json:"cached"`
	AnalyzedAt  time.Time      `json:"analyzedAt"`
}

type CacheEntry struct {
	MessageHash string
	Analysis    *Analysis
	LastSeen    time.Time
	ExpiresAt   time.Time
}
