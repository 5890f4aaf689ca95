package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/phish-scorer/internal/core"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	service    *core.PhishingService
	logger     *zap.Logger
	verbose    bool
	jsonOutput bool
	out        io.Writer
}

// NewCliFilter creates a new CLI filter that writes to stdout
func NewCliFilter(service *core.PhishingService, logger *zap.Logger, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		service:    service,
		logger:     logger,
		verbose:    verbose,
		jsonOutput: jsonOutput,
		out:        os.Stdout,
	}
}

// SetOutput redirects the report
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessMessage analyzes a message and prints the results
func (f *CliFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.Analysis, error) {
	f.logger.Debug("Processing message", zap.String("sender", msg.Sender))

	startTime := time.Now()
	analysis, err := f.service.Analyze(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		return nil, err
	}
	duration := time.Since(startTime)

	if f.jsonOutput {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			return nil, fmt.Errorf("failed to encode analysis: %w", err)
		}
		return analysis, nil
	}

	fmt.Fprintf(f.out, "\n=== Message Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", msg.Sender)
	fmt.Fprintf(f.out, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(msg.Body))

	if f.verbose {
		preview := []rune(msg.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Is phishing: %t\n", analysis.IsPhishing)
	fmt.Fprintf(f.out, "Score: %d (threshold %d)\n", analysis.Score, f.service.Threshold())
	for _, reason := range analysis.Reasons {
		fmt.Fprintf(f.out, "  - %s\n", reason)
	}
	if len(analysis.FlaggedURLs) > 0 {
		fmt.Fprintf(f.out, "Flagged URLs:\n")
		for _, u := range analysis.FlaggedURLs {
			fmt.Fprintf(f.out, "  - %s\n", u)
		}
	}

	if len(analysis.Lookups) > 0 {
		fmt.Fprintf(f.out, "\n=== Lookups ===\n")
		for _, l := range analysis.Lookups {
			fmt.Fprintf(f.out, "[%s] %s %s: %s\n", l.Verdict, l.Source, l.Target, l.Detail)
		}
	}
	if analysis.Whitelisted {
		fmt.Fprintf(f.out, "Sender domain is whitelisted, lookups skipped\n")
	}

	if analysis.Advice != nil {
		fmt.Fprintf(f.out, "\n=== Advisor ===\n")
		fmt.Fprintf(f.out, "Model used: %s\n", analysis.Advice.ModelUsed)
		fmt.Fprintf(f.out, "Is phishing: %t (confidence %.2f)\n", analysis.Advice.IsPhishing, analysis.Advice.Confidence)
		fmt.Fprintf(f.out, "Explanation: %s\n", analysis.Advice.Explanation)
	}

	fmt.Fprintf(f.out, "\nProcessing time: %v\n", duration)

	return analysis, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
