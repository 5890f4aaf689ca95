package reputation

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/phish-scorer/internal/core"
	"go.uber.org/zap"
)

// Attachment risk weights. An attachment at or above attachmentRiskThreshold is suspicious.
const (
	attachmentRiskLargeFile    = 10
	attachmentRiskDangerousExt = 50
	attachmentRiskMultipleExt  = 30
	attachmentRiskPerVendor    = 5
	attachmentRiskThreshold    = 50
)

const defaultAttachmentMaxSize = 10 * 1024 * 1024

// DefaultDangerousExtensions are executable and script types commonly used as droppers
var DefaultDangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".scr", ".js", ".vbs", ".ps1", ".msi", ".jar",
}

// AttachmentChecker weighs attachment names and sizes, and looks up file
// hashes in VirusTotal when a client is configured
type AttachmentChecker struct {
	vt         *VirusTotal
	maxSize    int64
	extensions []string
	logger     *zap.Logger
}

// NewAttachmentChecker creates a new attachment checker. vt may be nil.
func NewAttachmentChecker(vt *VirusTotal, maxSize int64, extensions []string, logger *zap.Logger) *AttachmentChecker {
	if maxSize <= 0 {
		maxSize = defaultAttachmentMaxSize
	}
	if len(extensions) == 0 {
		extensions = DefaultDangerousExtensions
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return &AttachmentChecker{
		vt:         vt,
		maxSize:    maxSize,
		extensions: normalized,
		logger:     logger,
	}
}

// Name implements core.ReputationChecker
func (c *AttachmentChecker) Name() string {
	return "Attachment analysis"
}

// Targets returns the SHA-256 digests of the message attachments
func (c *AttachmentChecker) Targets(msg *core.Message, _ *core.ScoringResult) []string {
	if msg == nil {
		return nil
	}
	var targets []string
	for _, att := range msg.Attachments {
		if att.SHA256 != "" {
			targets = append(targets, att.SHA256)
		}
	}
	return targets
}

// Check looks up a SHA-256 digest in the VirusTotal file database
func (c *AttachmentChecker) Check(ctx context.Context, digest string) (*core.LookupResult, error) {
	if c.vt == nil {
		return nil, fmt.Errorf("no file reputation service configured")
	}
	malicious, found, err := c.vt.maliciousCount(ctx, "files", digest)
	if err != nil {
		return nil, fmt.Errorf("VirusTotal file lookup failed: %w", err)
	}

	res := &core.LookupResult{Source: c.Name(), Target: digest, Verdict: core.LookupClean}
	switch {
	case !found:
		res.Detail = "not in database"
	case malicious > 0:
		res.Verdict = core.LookupSuspicious
		res.Detail = vendorDetail(malicious)
	default:
		res.Detail = "no vendors flagged this file"
	}
	return res, nil
}

// CheckAttachment implements core.AttachmentChecker. A failed hash lookup is
// logged and the local factors are still reported.
func (c *AttachmentChecker) CheckAttachment(ctx context.Context, att core.Attachment) (*core.LookupResult, error) {
	risk := 0
	var factors []string

	if att.Size > c.maxSize {
		risk += attachmentRiskLargeFile
		factors = append(factors, "Large file size")
	}

	name := strings.ToLower(att.Filename)
	for _, ext := range c.extensions {
		if strings.HasSuffix(name, ext) {
			risk += attachmentRiskDangerousExt
			factors = append(factors, "Dangerous file extension")
			break
		}
	}

	if strings.Count(name, ".") > 1 {
		risk += attachmentRiskMultipleExt
		factors = append(factors, "Multiple file extensions")
	}

	if c.vt != nil && att.SHA256 != "" {
		malicious, _, err := c.vt.maliciousCount(ctx, "files", att.SHA256)
		switch {
		case err != nil:
			c.logger.Warn("VirusTotal file lookup failed",
				zap.String("filename", att.Filename),
				zap.String("sha256", att.SHA256),
				zap.Error(err))
		case malicious > 0:
			risk += int(malicious) * attachmentRiskPerVendor
			factors = append(factors, vendorDetail(malicious))
		}
	}

	target := att.Filename
	if target == "" {
		target = att.SHA256
	}
	res := &core.LookupResult{
		Source:  c.Name(),
		Target:  target,
		Verdict: core.LookupClean,
		Detail:  "no risk factors",
	}
	if len(factors) > 0 {
		res.Detail = fmt.Sprintf("%s (risk %d)", strings.Join(factors, "; "), risk)
	}
	if risk >= attachmentRiskThreshold {
		res.Verdict = core.LookupSuspicious
	}
	return res, nil
}

func vendorDetail(malicious int64) string {
	return fmt.Sprintf("VirusTotal: %d vendors flagged as malicious", malicious)
}
