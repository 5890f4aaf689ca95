package core

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultThreshold is the score at which a message is classified as phishing
const DefaultThreshold = 3

// RuleSet holds the data the scorer matches against. Order of each list
// determines the order of the reasons it produces.
type RuleSet struct {
	Keywords              []string
	SuspiciousTLDs        []string
	UrgencyPattern        string
	SensitivePattern      string
	SenderTokens          []string
	TrustedSenderSuffixes []string
	Threshold             int
}

// DefaultRules returns the built-in rule set
func DefaultRules() RuleSet {
	return RuleSet{
		Keywords: []string{
			"urgent", "account suspended", "verify your account", "password expired",
			"security alert", "unusual activity", "login attempt", "click here",
			"update your information", "payment pending", "won", "lottery",
			"inheritance", "prince", "bank transfer", "suspicious activity",
		},
		SuspiciousTLDs: []string{
			".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".work", ".date",
			".faith", ".zip", ".racing", ".win", ".loan", ".download",
		},
		UrgencyPattern:        `urgent|immediate|asap|quickly|today only`,
		SensitivePattern:      `password|ssn|social security|credit card|bank account`,
		SenderTokens:          []string{"security", "admin", "support"},
		TrustedSenderSuffixes: []string{".com", ".org", ".edu"},
		Threshold:             DefaultThreshold,
	}
}

// compiledRules is a validated RuleSet ready for matching
type compiledRules struct {
	keywords              []string
	suspiciousTLDs        []string
	urgency               *regexp.Regexp
	sensitive             *regexp.Regexp
	senderTokens          []string
	trustedSenderSuffixes []string
	threshold             int
}

func compileRules(rules RuleSet) (*compiledRules, error) {
	if rules.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative: %d", rules.Threshold)
	}

	urgency, err := compilePattern(rules.UrgencyPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid urgency pattern: %w", err)
	}
	sensitive, err := compilePattern(rules.SensitivePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid sensitive information pattern: %w", err)
	}

	var keywords []string
	for _, keyword := range rules.Keywords {
		if keyword == "" {
			continue
		}
		keywords = append(keywords, keyword)
	}

	var tlds []string
	for _, tld := range rules.SuspiciousTLDs {
		tld = strings.ToLower(strings.TrimSpace(tld))
		if tld == "" {
			continue
		}
		if !strings.HasPrefix(tld, ".") {
			tld = "." + tld
		}
		tlds = append(tlds, tld)
	}

	return &compiledRules{
		keywords:              keywords,
		suspiciousTLDs:        tlds,
		urgency:               urgency,
		sensitive:             sensitive,
		senderTokens:          rules.SenderTokens,
		trustedSenderSuffixes: rules.TrustedSenderSuffixes,
		threshold:             rules.Threshold,
	}, nil
}

// compilePattern compiles a case-insensitive pattern; an empty pattern disables the rule
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}
