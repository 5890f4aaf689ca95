package reputation

import (
	"context"
	"testing"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAttachmentCheckerLocalRules(t *testing.T) {
	c := NewAttachmentChecker(nil, 1024, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		att     core.Attachment
		verdict core.LookupVerdict
		detail  string
	}{
		{
			"plain document",
			core.Attachment{Filename: "report.pdf", Size: 100},
			core.LookupClean, "no risk factors",
		},
		{
			"executable",
			core.Attachment{Filename: "setup.EXE", Size: 100},
			core.LookupSuspicious, "Dangerous file extension (risk 50)",
		},
		{
			"double extension dropper",
			core.Attachment{Filename: "invoice.pdf.scr", Size: 100},
			core.LookupSuspicious, "Dangerous file extension; Multiple file extensions (risk 80)",
		},
		{
			"double extension only",
			core.Attachment{Filename: "photo.backup.zip", Size: 100},
			core.LookupClean, "Multiple file extensions (risk 30)",
		},
		{
			"large archive",
			core.Attachment{Filename: "logs.zip", Size: 4096},
			core.LookupClean, "Large file size (risk 10)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.CheckAttachment(ctx, tt.att)
			require.NoError(t, err)
			assert.Equal(t, "Attachment analysis", res.Source)
			assert.Equal(t, tt.att.Filename, res.Target)
			assert.Equal(t, tt.verdict, res.Verdict)
			assert.Equal(t, tt.detail, res.Detail)
		})
	}
}

func TestAttachmentCheckerCustomExtensions(t *testing.T) {
	c := NewAttachmentChecker(nil, 0, []string{"HTA", " .iso "}, zaptest.NewLogger(t))

	res, err := c.CheckAttachment(context.Background(), core.Attachment{Filename: "x.hta"})
	require.NoError(t, err)
	assert.Equal(t, core.LookupSuspicious, res.Verdict)

	res, err = c.CheckAttachment(context.Background(), core.Attachment{Filename: "x.exe"})
	require.NoError(t, err)
	assert.Equal(t, core.LookupClean, res.Verdict)
}

func TestAttachmentCheckerVirusTotal(t *testing.T) {
	flagged := core.NewAttachment("invoice.pdf", "application/pdf", []byte("%PDF-1.7 payload"))
	unknown := core.NewAttachment("notes.txt", "text/plain", []byte("hello"))

	client := newFakeVirusTotal(t, map[string]int{"/files/" + flagged.SHA256: 12})
	c := NewAttachmentChecker(client, 0, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := c.CheckAttachment(ctx, flagged)
	require.NoError(t, err)
	assert.Equal(t, core.LookupSuspicious, res.Verdict)
	assert.Equal(t, "VirusTotal: 12 vendors flagged as malicious (risk 60)", res.Detail)

	res, err = c.CheckAttachment(ctx, unknown)
	require.NoError(t, err)
	assert.Equal(t, core.LookupClean, res.Verdict)
	assert.Equal(t, "no risk factors", res.Detail)

	res, err = c.Check(ctx, flagged.SHA256)
	require.NoError(t, err)
	assert.Equal(t, core.LookupSuspicious, res.Verdict)

	res, err = c.Check(ctx, unknown.SHA256)
	require.NoError(t, err)
	assert.Equal(t, "not in database", res.Detail)
}

func TestAttachmentCheckerTargets(t *testing.T) {
	c := NewAttachmentChecker(nil, 0, nil, zaptest.NewLogger(t))
	att := core.NewAttachment("a.txt", "text/plain", []byte("a"))

	assert.Equal(t, []string{att.SHA256}, c.Targets(&core.Message{Attachments: []core.Attachment{att, {Filename: "nohash"}}}, nil))

	_, err := c.Check(context.Background(), att.SHA256)
	assert.Error(t, err)
}
