package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomos/phantom/internal/fault"
)

const fullConfig = `
sink:
  path: /var/lib/phantom/audit.db
governor:
  cache_size: 64
  history_size: 32
  strict: true
  interactive: false
  prompt_timeout_secs: 30
  approval_ttl_secs: 3600
dnauth:
  min_complexity: High
  max_failed_attempts: 3
  lockout_base_secs: 600
  mutation_rate: 0.05
  evolution_interval_secs: 86400
urlscan:
  max_subdomain_depth: 4
  allow_domains: [example.com, internal.corp]
  dns:
    enabled: true
    server: 9.9.9.9
    timeout_ms: 1500
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/phantom/audit.db", cfg.Sink.Path)
	assert.Equal(t, 64, cfg.Governor.CacheSize)
	assert.True(t, cfg.Governor.Strict)
	assert.Equal(t, 30*time.Second, cfg.Governor.PromptTimeout())
	assert.Equal(t, time.Hour, cfg.Governor.ApprovalTTL())
	assert.Equal(t, "High", cfg.DNAuth.MinComplexity)
	assert.Equal(t, 3, cfg.DNAuth.MaxFailedAttempts)
	assert.Equal(t, 10*time.Minute, cfg.DNAuth.LockoutBase())
	assert.Equal(t, 24*time.Hour, cfg.DNAuth.EvolutionInterval())
	assert.Equal(t, []string{"example.com", "internal.corp"}, cfg.URLScan.AllowDomains)
	assert.Equal(t, "9.9.9.9", cfg.URLScan.DNS.Server)
	assert.Equal(t, 1500*time.Millisecond, cfg.URLScan.DNS.DNSTimeout())
}

func TestParse_EmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "phantom.db", cfg.Sink.Path)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("governor:\n  cash_size: 64\n"))
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestParse_RejectsOutOfRangeValue(t *testing.T) {
	cases := []string{
		"governor:\n  cache_size: 0\n",
		"governor:\n  prompt_timeout_secs: 7200\n",
		"dnauth:\n  mutation_rate: 1.5\n",
		"urlscan:\n  dns:\n    timeout_ms: 0\n",
	}
	for _, doc := range cases {
		_, err := Parse([]byte(doc))
		require.Error(t, err, "doc %q", doc)
		assert.True(t, fault.IsInvalidInput(err), "doc %q", doc)
	}
}

func TestParse_RejectsBadComplexityName(t *testing.T) {
	_, err := Parse([]byte("dnauth:\n  min_complexity: Extreme\n"))
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("sink: [unclosed\n"))
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phantom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sink:\n  path: here.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "here.db", cfg.Sink.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, fault.IsIO(err))
}
