package reputation

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/openrdap/rdap"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// RDAPChecker flags recently registered domains using RDAP registration events
type RDAPChecker struct {
	client *rdap.Client
	server *url.URL
	minAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRDAPChecker creates a new RDAP domain age checker querying server directly
func NewRDAPChecker(client *http.Client, serverURL string, minAge time.Duration, logger *zap.Logger) (*RDAPChecker, error) {
	if client == nil {
		client = http.DefaultClient
	}
	server, err := url.Parse(strings.TrimRight(serverURL, "/") + "/")
	if err != nil || server.Host == "" {
		return nil, fmt.Errorf("invalid RDAP server URL %q", serverURL)
	}
	return &RDAPChecker{
		client: &rdap.Client{HTTP: client},
		server: server,
		minAge: minAge,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Name implements core.ReputationChecker
func (c *RDAPChecker) Name() string {
	return "Domain reputation"
}

// Targets returns the registrable domains of URL hosts and the sender domain
func (c *RDAPChecker) Targets(msg *core.Message, result *core.ScoringResult) []string {
	var targets []string
	if result != nil {
		for _, raw := range result.URLs {
			u, err := url.Parse(raw)
			if err != nil {
				continue
			}
			if d := registrableDomain(u.Hostname()); d != "" {
				targets = append(targets, d)
			}
		}
	}
	if msg != nil {
		if d := registrableDomain(core.SenderDomain(msg.Sender)); d != "" {
			targets = append(targets, d)
		}
	}
	return targets
}

// registrableDomain returns the eTLD+1 of host, or "" for IPs and bare suffixes
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// Check implements core.ReputationChecker
func (c *RDAPChecker) Check(ctx context.Context, target string) (*core.LookupResult, error) {
	req := (&rdap.Request{
		Type:   rdap.DomainRequest,
		Query:  target,
		Server: c.server,
	}).WithContext(ctx)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("RDAP lookup failed: %w", err)
	}
	domain, ok := resp.Object.(*rdap.Domain)
	if !ok {
		return nil, fmt.Errorf("RDAP server returned %T for %s", resp.Object, target)
	}

	var registered time.Time
	for _, ev := range domain.Events {
		if ev.Action != "registration" {
			continue
		}
		t, err := time.Parse(time.RFC3339, ev.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid registration date %q: %w", ev.Date, err)
		}
		registered = t
		break
	}
	if registered.IsZero() {
		return nil, fmt.Errorf("no registration event for %s", target)
	}

	age := c.now().Sub(registered)
	days := int(age.Hours() / 24)
	c.logger.Debug("RDAP registration", zap.String("domain", target), zap.Int("age_days", days))

	if age < c.minAge {
		return &core.LookupResult{
			Source:  c.Name(),
			Target:  target,
			Verdict: core.LookupSuspicious,
			Detail:  fmt.Sprintf("Newly registered domain (potentially suspicious): registered %d days ago", days),
		}, nil
	}

	return &core.LookupResult{
		Source:  c.Name(),
		Target:  target,
		Verdict: core.LookupClean,
		Detail:  fmt.Sprintf("registered %d days ago", days),
	}, nil
}
