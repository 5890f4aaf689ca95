package filter

import (
	"strings"
	"testing"

	"github.com/mikey/phish-scorer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const multipartMessage = "From: \"PayPal Security\" <security@paypa1.net>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: =?UTF-8?Q?Unusual_activity_on_your_account?=\r\n" +
	"Message-ID: <abc123@paypa1.net>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please log in at http://secure-bank.tk/login\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Please log in at <a href=\"http://secure-bank.tk/login\">here</a></p>\r\n" +
	"--b1--\r\n"

const htmlOnlyMessage = "From: support@example.org\r\n" +
	"Subject: Invoice\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Pay <b>now</b> via <a href=\"http://10.0.0.1/pay\">this link</a></p></body></html>\r\n"

func TestParseMessageMultipart(t *testing.T) {
	msg, err := ParseMessage([]byte(multipartMessage), utils.NewTextProcessor(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, "abc123@paypa1.net", msg.ID)
	assert.Contains(t, msg.Sender, "security@paypa1.net")
	assert.Equal(t, "Unusual activity on your account", msg.Subject)
	assert.Contains(t, msg.Body, "http://secure-bank.tk/login")
	assert.NotContains(t, msg.Body, "<p>")
}

func TestParseMessageHTMLOnly(t *testing.T) {
	msg, err := ParseMessage([]byte(htmlOnlyMessage), utils.NewTextProcessor(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, "Invoice", msg.Subject)
	assert.Contains(t, msg.Body, "http://10.0.0.1/pay")
	assert.NotContains(t, msg.Body, "<b>")
}

const attachmentMessage = "From: billing@paypa1.net\r\n" +
	"Subject: Invoice attached\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"m1\"\r\n" +
	"\r\n" +
	"--m1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See the attached invoice\r\n" +
	"--m1\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"invoice.pdf.exe\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"YWJj\r\n" +
	"--m1--\r\n"

func TestParseMessageAttachments(t *testing.T) {
	msg, err := ParseMessage([]byte(attachmentMessage), utils.NewTextProcessor(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Contains(t, msg.Body, "See the attached invoice")
	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "invoice.pdf.exe", att.Filename)
	assert.Equal(t, "application/octet-stream", att.ContentType)
	assert.Equal(t, int64(3), att.Size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", att.SHA256)
}

func TestRewriteHeaders(t *testing.T) {
	raw := []byte("From: a@example.com\r\n" +
		"Subject: Original\r\n" +
		" continued\r\n" +
		"To: b@example.com\r\n" +
		"\r\n" +
		"body line\r\n")

	out := string(rewriteHeaders(raw, []headerField{
		{name: "X-Phishing-Status", value: "true"},
		{name: "X-Phishing-Reasons", value: "one\r\ntwo"},
	}, "[PHISHING] Original"))

	assert.True(t, strings.HasPrefix(out, "X-Phishing-Status: true\r\nX-Phishing-Reasons: one  two\r\n"))
	assert.Contains(t, out, "Subject: [PHISHING] Original\r\n")
	assert.NotContains(t, out, "continued")
	assert.Contains(t, out, "From: a@example.com\r\nSubject: [PHISHING] Original\r\nTo: b@example.com\r\n\r\nbody line\r\n")
}

func TestRewriteHeadersKeepsSubject(t *testing.T) {
	raw := []byte("Subject: Hi\nFrom: a@example.com\n\nbody\n")

	out := string(rewriteHeaders(raw, []headerField{{name: "X-Phishing-Score", value: "0"}}, ""))

	assert.Equal(t, "X-Phishing-Score: 0\r\nSubject: Hi\r\nFrom: a@example.com\r\n\r\nbody\n", out)
}

func TestLooksLikeMIME(t *testing.T) {
	assert.True(t, looksLikeMIME("From: a@b.c\r\n\r\nbody"))
	assert.True(t, looksLikeMIME("Subject: hi\n\nbody"))
	assert.False(t, looksLikeMIME("Just a plain message\n\nwith paragraphs"))
	assert.False(t, looksLikeMIME("From: no blank line"))
}
