package reputation

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/mikey/phish-scorer/internal/core"
	"go.uber.org/zap"
)

// TXTResolver looks up TXT records. A name that does not exist yields no
// records and no error.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// DNSResolver queries a single DNS server, retrying over TCP on truncation
type DNSResolver struct {
	udp    *dns.Client
	tcp    *dns.Client
	server string
}

// NewDNSResolver creates a resolver for server ("host:port"). An empty server
// uses the first nameserver in /etc/resolv.conf.
func NewDNSResolver(server string, timeout time.Duration) (*DNSResolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("failed to read resolver config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in resolver config")
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return &DNSResolver{
		udp:    &dns.Client{Net: "udp", Timeout: timeout},
		tcp:    &dns.Client{Net: "tcp", Timeout: timeout},
		server: server,
	}, nil
}

// LookupTXT implements TXTResolver
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	m.SetEdns0(4096, false)

	in, _, err := r.udp.ExchangeContext(ctx, m, r.server)
	if err == nil && in.Truncated {
		in, _, err = r.tcp.ExchangeContext(ctx, m, r.server)
	}
	if err != nil {
		return nil, fmt.Errorf("TXT lookup for %s failed: %w", name, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("TXT lookup for %s failed: %s", name, dns.RcodeToString[in.Rcode])
	}

	var records []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	return records, nil
}

// dkimSelectors are looked up under <selector>._domainkey.<domain>
var dkimSelectors = []string{"default", "google", "dkim", "k1"}

var dmarcPolicyPattern = regexp.MustCompile(`(?i)(?:^|;)\s*p\s*=\s*(\w+)`)

// AuthChecker reports the SPF, DKIM and DMARC posture of the sender domain
type AuthChecker struct {
	resolver TXTResolver
	logger   *zap.Logger
}

// NewAuthChecker creates a new sender authentication checker
func NewAuthChecker(resolver TXTResolver, logger *zap.Logger) *AuthChecker {
	return &AuthChecker{resolver: resolver, logger: logger}
}

// Name implements core.ReputationChecker
func (c *AuthChecker) Name() string {
	return "Sender authentication"
}

// Targets returns the sender domain
func (c *AuthChecker) Targets(msg *core.Message, _ *core.ScoringResult) []string {
	if msg == nil {
		return nil
	}
	domain := strings.TrimSuffix(core.SenderDomain(msg.Sender), ".")
	if domain == "" || net.ParseIP(domain) != nil {
		return nil
	}
	return []string{domain}
}

// Check implements core.ReputationChecker. The domain is suspicious when it
// publishes no SPF record, an SPF policy that passes everything, or no DMARC
// record.
func (c *AuthChecker) Check(ctx context.Context, domain string) (*core.LookupResult, error) {
	spf, spfWeak, err := c.checkSPF(ctx, domain)
	if err != nil {
		return nil, err
	}
	dkim := c.checkDKIM(ctx, domain)
	dmarc, dmarcMissing, err := c.checkDMARC(ctx, domain)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Sender authentication",
		zap.String("domain", domain),
		zap.String("spf", spf),
		zap.String("dkim", dkim),
		zap.String("dmarc", dmarc))

	verdict := core.LookupClean
	if spfWeak || dmarcMissing {
		verdict = core.LookupSuspicious
	}
	return &core.LookupResult{
		Source:  c.Name(),
		Target:  domain,
		Verdict: verdict,
		Detail:  "SPF: " + spf + "; DKIM: " + dkim + "; DMARC: " + dmarc,
	}, nil
}

// checkSPF describes the "all" policy of the domain's SPF record
func (c *AuthChecker) checkSPF(ctx context.Context, domain string) (status string, weak bool, err error) {
	records, err := c.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return "", false, fmt.Errorf("SPF lookup failed: %w", err)
	}

	for _, record := range records {
		if !strings.HasPrefix(strings.ToLower(record), "v=spf1") {
			continue
		}
		for _, term := range strings.Fields(strings.ToLower(record)) {
			switch term {
			case "-all":
				return "GOOD: Hard fail policy (-all)", false, nil
			case "~all":
				return "MEDIUM: Soft fail policy (~all)", false, nil
			case "?all":
				return "WEAK: Neutral policy (?all)", false, nil
			case "+all", "all":
				return "DANGEROUS: Pass all policy (+all)", true, nil
			}
		}
		return "WARNING: No 'all' mechanism found", false, nil
	}
	return "No SPF record found", true, nil
}

// checkDKIM tries the common selectors. Lookup errors count as not found.
func (c *AuthChecker) checkDKIM(ctx context.Context, domain string) string {
	for _, selector := range dkimSelectors {
		records, err := c.resolver.LookupTXT(ctx, selector+"._domainkey."+domain)
		if err != nil {
			c.logger.Debug("DKIM lookup failed", zap.String("selector", selector), zap.Error(err))
			continue
		}
		for _, record := range records {
			if strings.Contains(record, "v=DKIM1") {
				return "Found DKIM record with selector '" + selector + "'"
			}
		}
	}
	return "No DKIM record found with common selectors"
}

// checkDMARC describes the p= policy of the domain's DMARC record
func (c *AuthChecker) checkDMARC(ctx context.Context, domain string) (status string, missing bool, err error) {
	records, err := c.resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return "", false, fmt.Errorf("DMARC lookup failed: %w", err)
	}

	for _, record := range records {
		if !strings.Contains(record, "v=DMARC1") {
			continue
		}
		m := dmarcPolicyPattern.FindStringSubmatch(record)
		if m == nil {
			return "No policy specified", false, nil
		}
		switch strings.ToLower(m[1]) {
		case "reject":
			return "GOOD: Reject policy", false, nil
		case "quarantine":
			return "MEDIUM: Quarantine policy", false, nil
		case "none":
			return "WEAK: Monitor-only policy", false, nil
		default:
			return "Unknown policy: " + m[1], false, nil
		}
	}
	return "No DMARC record found", true, nil
}
