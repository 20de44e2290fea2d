package afflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.7, cfg.Commission.DefaultRate)
	assert.Equal(t, 50.0, cfg.Commission.PaymentThreshold)
	assert.Equal(t, 10, cfg.Workflow.MaxOutreachPerCycle)
	assert.Equal(t, 1000, cfg.Scout.MinAudienceSize)
	assert.Equal(t, 30, cfg.Performance.AnalysisPeriodDays)
	assert.True(t, cfg.Payment.BatchPayments)

	require.Contains(t, cfg.Commission.PerformanceTiers, "tier2")
	assert.Equal(t, 25, cfg.Commission.PerformanceTiers["tier2"].Threshold)
	assert.Equal(t, 0.10, cfg.Commission.PerformanceTiers["tier2"].Bonus)

	require.Contains(t, cfg.Outreach.MessageTemplates, "default")
	assert.Contains(t, cfg.Outreach.MessageTemplates["default"], "{LEAD_NAME}")
}

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
social_scout:
  min_audience_size: 5000
commission:
  payment_threshold: 100.0
workflow:
  max_outreach_per_cycle: 3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Scout.MinAudienceSize)
	assert.Equal(t, 100.0, cfg.Commission.PaymentThreshold)
	assert.Equal(t, 3, cfg.Workflow.MaxOutreachPerCycle)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.7, cfg.Commission.DefaultRate)
	assert.Equal(t, "email", cfg.Outreach.Method)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("social_scout: [oops"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
