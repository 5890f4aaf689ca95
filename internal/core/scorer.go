package core

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Rule weights
const (
	weightInvalidURL       = 1
	weightSuspiciousTLD    = 2
	weightIPAddressHost    = 2
	weightKeyword          = 1
	weightUrgency          = 1
	weightSensitiveRequest = 2
	weightSuspiciousSender = 1
)

var (
	// urlPattern matches http/https followed by a run of non-whitespace,
	// including the Unicode space separators
	urlPattern = regexp.MustCompile(`https?://[^\s\x{0085}\x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}\v]+`)

	ipHostPattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
)

// PhishingScorer assigns a suspicion score to a message from a fixed rule set.
// It holds no mutable state and is safe for concurrent use.
type PhishingScorer struct {
	rules *compiledRules
}

// NewPhishingScorer creates a scorer for the given rules
func NewPhishingScorer(rules RuleSet) (*PhishingScorer, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &PhishingScorer{rules: compiled}, nil
}

// Threshold returns the score at which a message is classified as phishing
func (s *PhishingScorer) Threshold() int {
	return s.rules.threshold
}

// Score evaluates every rule in order and returns a fresh result
func (s *PhishingScorer) Score(msg *Message) *ScoringResult {
	result := &ScoringResult{
		URLs:        []string{},
		FlaggedURLs: []string{},
		Reasons:     []string{},
	}
	if msg == nil {
		msg = &Message{}
	}

	result.URLs = append(result.URLs, urlPattern.FindAllString(msg.Body, -1)...)

	flagged := make(map[string]bool)
	flag := func(u string) {
		if !flagged[u] {
			flagged[u] = true
			result.FlaggedURLs = append(result.FlaggedURLs, u)
		}
	}

	for _, rawURL := range result.URLs {
		host, ok := parseHost(rawURL)
		if !ok {
			result.add(weightInvalidURL, "Invalid URL format detected")
			continue
		}

		if s.hasSuspiciousTLD(host) {
			result.add(weightSuspiciousTLD, fmt.Sprintf("Suspicious domain extension: %s", host))
			flag(rawURL)
		}

		if ipHostPattern.MatchString(host) {
			result.add(weightIPAddressHost, "URL contains IP address instead of domain name")
			flag(rawURL)
		}
	}

	text := strings.ToLower(msg.Subject + " " + msg.Body)

	for _, keyword := range s.rules.keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			result.add(weightKeyword, "Suspicious keyword found: \""+keyword+"\"")
		}
	}

	if s.rules.urgency != nil && s.rules.urgency.MatchString(text) {
		result.add(weightUrgency, "Urgency indicators detected")
	}

	if s.rules.sensitive != nil && s.rules.sensitive.MatchString(text) {
		result.add(weightSensitiveRequest, "Requests for sensitive information detected")
	}

	if s.isSuspiciousSender(msg.Sender) {
		result.add(weightSuspiciousSender, "Suspicious sender domain")
	}

	result.IsPhishing = result.Score >= s.rules.threshold
	return result
}

func (r *ScoringResult) add(weight int, reason string) {
	r.Score += weight
	r.Reasons = append(r.Reasons, reason)
}

// parseHost returns the lower-cased host of an absolute URL. Hosts that are
// not valid domain names under IDNA lookup rules and ports outside 0-65535
// are rejected.
func parseHost(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 {
			return "", false
		}
	}
	if net.ParseIP(host) != nil {
		return host, true
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return "", false
	}
	return host, true
}

func (s *PhishingScorer) hasSuspiciousTLD(host string) bool {
	for _, tld := range s.rules.suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}

// isSuspiciousSender matches role-like senders outside the trusted suffixes.
// Matching is case-sensitive.
func (s *PhishingScorer) isSuspiciousSender(sender string) bool {
	if !strings.Contains(sender, "@") {
		return false
	}

	hasToken := false
	for _, token := range s.rules.senderTokens {
		if token != "" && strings.Contains(sender, token) {
			hasToken = true
			break
		}
	}
	if !hasToken {
		return false
	}

	for _, suffix := range s.rules.trustedSenderSuffixes {
		if suffix != "" && strings.HasSuffix(sender, suffix) {
			return false
		}
	}
	return true
}
