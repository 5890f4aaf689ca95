package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var cliMessage = &core.Message{
	Sender:  "admin@login-check.xyz",
	Subject: "Password expired",
	Body:    "Your password expired. Update it at http://login-check.xyz/reset",
}

func TestCliFilterReport(t *testing.T) {
	var buf bytes.Buffer
	f := NewCliFilter(newTestService(t), zaptest.NewLogger(t), true, false)
	f.SetOutput(&buf)

	analysis, err := f.ProcessMessage(context.Background(), cliMessage)
	require.NoError(t, err)
	assert.True(t, analysis.IsPhishing)

	out := buf.String()
	assert.Contains(t, out, "From: admin@login-check.xyz")
	assert.Contains(t, out, "Is phishing: true")
	assert.Contains(t, out, "(threshold 3)")
	assert.Contains(t, out, "Body preview:")
	assert.Contains(t, out, "  - http://login-check.xyz/reset")
}

func TestCliFilterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := NewCliFilter(newTestService(t), zaptest.NewLogger(t), false, true)
	f.SetOutput(&buf)

	_, err := f.ProcessMessage(context.Background(), cliMessage)
	require.NoError(t, err)

	var analysis core.Analysis
	require.NoError(t, json.Unmarshal(buf.Bytes(), &analysis))
	assert.True(t, analysis.IsPhishing)
	assert.Equal(t, []string{"http://login-check.xyz/reset"}, analysis.FlaggedURLs)
}
