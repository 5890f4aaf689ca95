package cache

import (
	"encoding/json"
	"fmt"

	"github.com/mikey/phish-scorer/internal/core"
)

// encodeAnalysis serializes an analysis for the SQL backends
func encodeAnalysis(analysis *core.Analysis) (string, error) {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis: %w", err)
	}
	return string(payload), nil
}

func decodeAnalysis(payload string) (*core.Analysis, error) {
	var analysis core.Analysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}
