package filter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-scorer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPostfixFilter(t *testing.T, block, modifySubject bool) *PostfixFilter {
	logger := zaptest.NewLogger(t)
	return NewPostfixFilter(newTestService(t), logger, utils.NewTextProcessor(logger),
		"127.0.0.1:0", block,
		"X-Phishing-Status", "X-Phishing-Score", "X-Phishing-Reasons",
		"127.0.0.1", 10026, true, "", modifySubject)
}

func TestFilterMessageAddsHeaders(t *testing.T) {
	f := newTestPostfixFilter(t, false, true)

	out, err := f.filterMessage(context.Background(), "bounce@paypa1.net", []byte(multipartMessage))
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "X-Phishing-Status: true\r\n"))
	assert.Contains(t, text, "X-Phishing-Score: ")
	assert.Contains(t, text, "X-Phishing-Reasons: Suspicious domain extension: secure-bank.tk")
	assert.Contains(t, text, "Subject: [PHISHING] Unusual activity on your account\r\n")
	// Body is passed through unchanged
	assert.True(t, strings.HasSuffix(text, "--b1--\r\n"))
}

func TestFilterMessageClean(t *testing.T) {
	f := newTestPostfixFilter(t, true, true)

	raw := "From: friend@example.com\r\nSubject: Lunch\r\n\r\nSee you at noon\r\n"
	out, err := f.filterMessage(context.Background(), "friend@example.com", []byte(raw))
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "X-Phishing-Status: false\r\nX-Phishing-Score: 0\r\n"))
	assert.NotContains(t, text, "X-Phishing-Reasons")
	assert.Contains(t, text, "Subject: Lunch\r\n")
}

func TestFilterMessageRejects(t *testing.T) {
	f := newTestPostfixFilter(t, true, false)

	_, err := f.filterMessage(context.Background(), "bounce@paypa1.net", []byte(multipartMessage))

	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
}

func TestSessionDataDelivers(t *testing.T) {
	f := newTestPostfixFilter(t, false, false)

	var gotSender string
	var gotRcpts []string
	var gotData []byte
	f.deliver = func(sender string, recipients []string, data []byte) error {
		gotSender, gotRcpts, gotData = sender, recipients, data
		return nil
	}

	s := &smtpSession{filter: f}
	require.NoError(t, s.Mail("bounce@paypa1.net", nil))
	require.NoError(t, s.Rcpt("victim@example.com", nil))
	require.NoError(t, s.Data(strings.NewReader(multipartMessage)))

	assert.Equal(t, "bounce@paypa1.net", gotSender)
	assert.Equal(t, []string{"victim@example.com"}, gotRcpts)
	assert.Contains(t, string(gotData), "X-Phishing-Status: true")

	f.deliver = func(string, []string, []byte) error { return errors.New("connection refused") }
	assert.Error(t, s.Data(strings.NewReader(multipartMessage)))

	s.Reset()
	assert.Empty(t, s.sender)
	assert.Empty(t, s.recipients)
}
