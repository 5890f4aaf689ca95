package reputation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	vt "github.com/VirusTotal/vt-go"
	"github.com/mikey/phish-scorer/internal/core"
	"go.uber.org/zap"
)

// DefaultVirusTotalURL is the v3 API root
const DefaultVirusTotalURL = "https://www.virustotal.com/api/v3"

// VirusTotal wraps a vt-go client against a configurable API root
type VirusTotal struct {
	client  *vt.Client
	baseURL string
}

// NewVirusTotal creates a VirusTotal API client. An empty baseURL uses the public API.
func NewVirusTotal(httpClient *http.Client, baseURL, apiKey string) (*VirusTotal, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("VirusTotal API key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultVirusTotalURL
	}
	return &VirusTotal{
		client:  vt.NewClient(apiKey, vt.WithHTTPClient(httpClient)),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// maliciousCount fetches collection/id and returns last_analysis_stats.malicious.
// found is false when VirusTotal has no such object.
func (v *VirusTotal) maliciousCount(ctx context.Context, collection, id string) (count int64, found bool, err error) {
	u, err := url.Parse(v.baseURL + "/" + collection + "/" + id)
	if err != nil {
		return 0, false, fmt.Errorf("invalid VirusTotal URL: %w", err)
	}

	type reply struct {
		obj *vt.Object
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		obj, err := v.client.GetObject(u)
		ch <- reply{obj: obj, err: err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return 0, false, ctx.Err()
	case r = <-ch:
	}

	if r.err != nil {
		var apiErr vt.Error
		if errors.As(r.err, &apiErr) && apiErr.Code == "NotFoundError" {
			return 0, false, nil
		}
		return 0, false, r.err
	}

	count, err = r.obj.GetInt64("last_analysis_stats.malicious")
	if err != nil {
		return 0, true, fmt.Errorf("missing analysis stats: %w", err)
	}
	return count, true, nil
}

// VirusTotalChecker looks up extracted URLs in the VirusTotal URL database
type VirusTotalChecker struct {
	vt     *VirusTotal
	logger *zap.Logger
}

// NewVirusTotalChecker creates a new VirusTotal URL checker
func NewVirusTotalChecker(client *VirusTotal, logger *zap.Logger) *VirusTotalChecker {
	return &VirusTotalChecker{vt: client, logger: logger}
}

// Name implements core.ReputationChecker
func (c *VirusTotalChecker) Name() string {
	return "URL reputation"
}

// Targets implements core.ReputationChecker
func (c *VirusTotalChecker) Targets(msg *core.Message, result *core.ScoringResult) []string {
	if result == nil {
		return nil
	}
	return result.URLs
}

// URLID returns the VirusTotal identifier of a URL: unpadded base64url
func URLID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// Check implements core.ReputationChecker
func (c *VirusTotalChecker) Check(ctx context.Context, target string) (*core.LookupResult, error) {
	malicious, found, err := c.vt.maliciousCount(ctx, "urls", URLID(target))
	if err != nil {
		return nil, fmt.Errorf("VirusTotal lookup failed: %w", err)
	}
	if !found {
		return &core.LookupResult{
			Source:  c.Name(),
			Target:  target,
			Verdict: core.LookupClean,
			Detail:  "not in database",
		}, nil
	}

	c.logger.Debug("VirusTotal report", zap.String("url", target), zap.Int64("malicious", malicious))

	if malicious > 0 {
		return &core.LookupResult{
			Source:  c.Name(),
			Target:  target,
			Verdict: core.LookupSuspicious,
			Detail:  fmt.Sprintf("%d engines flagged this URL as malicious", malicious),
		}, nil
	}

	return &core.LookupResult{
		Source:  c.Name(),
		Target:  target,
		Verdict: core.LookupClean,
		Detail:  "no engines flagged this URL",
	}, nil
}
