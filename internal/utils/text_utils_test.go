package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "short", tp.TruncateText("short", 0))

	truncated := tp.TruncateText("héllo world", 2)
	assert.True(t, strings.HasPrefix(truncated, "h\n"))
	assert.True(t, utf8.ValidString(truncated))
	assert.Contains(t, truncated, "Content truncated")
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "abc", tp.SanitizeUTF8("a\xffb\xfec"))
	// e + combining acute composes to a single rune
	assert.Equal(t, "\u00e9", tp.SanitizeUTF8("e\u0301"))
}

func TestHTMLToText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	text := tp.HTMLToText(`<p>Please <b>verify</b> at <a href="http://secure-bank.tk/login">this link</a></p>`)

	assert.Contains(t, text, "verify")
	assert.Contains(t, text, "http://secure-bank.tk/login")
	assert.NotContains(t, text, "<b>")
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON("Sure! Here it is:\n```json\n{\"is_phishing\": true, \"nested\": {\"a\": 1}}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"is_phishing": true, "nested": {"a": 1}}`, got)

	_, err = ExtractJSON("no json here")
	assert.Error(t, err)

	_, err = ExtractJSON("} backwards {")
	assert.Error(t, err)
}

func TestBuildAdvicePrompt(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	prompt := tp.BuildAdvicePrompt(&core.Message{
		Sender:  "security@paypa1.com",
		Subject: "Account locked",
		Body:    "Verify your account now at http://secure-bank.tk/login",
	}, 10)

	assert.Contains(t, prompt, "From: security@paypa1.com")
	assert.Contains(t, prompt, "Subject: Account locked")
	assert.Contains(t, prompt, "Verify you")
	assert.NotContains(t, prompt, "secure-bank.tk")
	assert.Contains(t, prompt, "is_phishing")
}

func TestParseAdvice(t *testing.T) {
	advice, err := ParseAdvice(`{"is_phishing": true, "confidence": 0.9, "explanation": "lookalike domain"}`, "gpt-4o-mini")
	require.NoError(t, err)
	assert.True(t, advice.IsPhishing)
	assert.InDelta(t, 0.9, advice.Confidence, 1e-9)
	assert.Equal(t, "gpt-4o-mini", advice.ModelUsed)

	advice, err = ParseAdvice("Here you go:\n{\"is_phishing\": false, \"confidence\": 0.2, \"explanation\": \"newsletter\"}\nThanks", "gemini")
	require.NoError(t, err)
	assert.False(t, advice.IsPhishing)
	assert.Equal(t, "newsletter", advice.Explanation)

	_, err = ParseAdvice("I cannot help with that", "gemini")
	assert.Error(t, err)

	_, err = ParseAdvice("{not json}", "gemini")
	assert.Error(t, err)
}
