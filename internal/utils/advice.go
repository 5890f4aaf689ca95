package utils

import (
	"encoding/json"
	"fmt"

	"github.com/mikey/phish-scorer/internal/core"
)

const advicePrompt = `You are a phishing detection system. Analyze the following message and determine if it is a phishing attempt.
Respond with a JSON object containing:
- is_phishing: boolean (true if phishing, false if not)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of the signals you found)

Message:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// AdviceResponse is the JSON object the models are asked to return
type AdviceResponse struct {
	IsPhishing  bool    `json:"is_phishing"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// BuildAdvicePrompt formats the advisor prompt for a message. The body is
// truncated and sanitized first.
func (tp *TextProcessor) BuildAdvicePrompt(msg *core.Message, maxBodySize int) string {
	body := tp.ProcessText(msg.Body, maxBodySize)
	return fmt.Sprintf(advicePrompt,
		tp.SanitizeUTF8(msg.Sender),
		tp.SanitizeUTF8(msg.Subject),
		body)
}

// ParseAdvice decodes a model response, tolerating prose around the JSON
func ParseAdvice(responseText, model string) (*core.Advice, error) {
	var resp AdviceResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		jsonStr, extractErr := ExtractJSON(responseText)
		if extractErr != nil {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	return &core.Advice{
		IsPhishing:  resp.IsPhishing,
		Confidence:  resp.Confidence,
		Explanation: resp.Explanation,
		ModelUsed:   model,
	}, nil
}
