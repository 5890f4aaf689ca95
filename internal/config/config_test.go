package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/phish-scorer/internal/core"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, core.DefaultRules(), cfg.GetScoring())

	server, err := cfg.GetServer()
	require.NoError(t, err)
	assert.Equal(t, "http", server.FilterType)
	assert.Equal(t, "X-Phishing-Status", server.PhishingHeader)
	assert.Equal(t, []string{"*"}, server.AllowedOrigins)

	reputation, err := cfg.GetReputation()
	require.NoError(t, err)
	assert.False(t, reputation.Enabled)
	assert.Equal(t, 5*time.Second, reputation.Timeout)
	assert.Equal(t, 90*24*time.Hour, reputation.RDAPMinAge)
	assert.True(t, reputation.AuthEnabled)
	assert.Empty(t, reputation.AuthDNSServer)
	assert.True(t, reputation.AttachmentsEnabled)
	assert.Equal(t, int64(10*1024*1024), reputation.AttachmentMaxSize)
	assert.Contains(t, reputation.DangerousExtensions, ".scr")

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "memory", cache.Type)
	assert.Equal(t, 24*time.Hour, cache.TTL)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scoring:
  threshold: 5
  keywords: ["gift card", "wire"]
  suspicious_tlds: [".ru"]
cache:
  type: sqlite
  ttl: 2h
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	rules := cfg.GetScoring()
	assert.Equal(t, 5, rules.Threshold)
	assert.Equal(t, []string{"gift card", "wire"}, rules.Keywords)
	assert.Equal(t, []string{".ru"}, rules.SuspiciousTLDs)
	assert.Equal(t, core.DefaultRules().UrgencyPattern, rules.UrgencyPattern)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cache.Type)
	assert.Equal(t, 2*time.Hour, cache.TTL)
	assert.Equal(t, "debug", cfg.GetString("logging.level"))
}

func TestNewFromFile_Missing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("PHISH_SCORER_SCORING_THRESHOLD", "7")

	cfg, err := NewFromFile(writeEmptyConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.GetScoring().Threshold)
}

func TestGetDuration_Invalid(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cache.ttl", "forever")
	cfg := NewFromViper(v)

	_, err := cfg.GetCache()
	assert.Error(t, err)
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))
	return path
}

func TestProviderKeyFallback(t *testing.T) {
	t.Setenv("VIRUSTOTAL_API_KEY", "vt-plain")
	t.Setenv("PHISH_SCORER_GEMINI_API_KEY", "gm-prefixed")
	t.Setenv("GEMINI_API_KEY", "gm-plain")

	cfg, err := NewFromFile(writeEmptyConfig(t))
	require.NoError(t, err)

	reputation, err := cfg.GetReputation()
	require.NoError(t, err)
	assert.Equal(t, "vt-plain", reputation.VirusTotalAPIKey)
	assert.Equal(t, "gm-prefixed", cfg.GetGemini().APIKey)
}
