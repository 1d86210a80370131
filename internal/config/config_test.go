package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: prod\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8085", cfg.App.HTTPAddr)
	assert.Equal(t, 500, cfg.Market.MaxCached)
	assert.Equal(t, 500, cfg.Market.HistoryLimit)
	assert.Equal(t, "BTCUSDT", cfg.Selection.Symbol)
	assert.Equal(t, "1h", cfg.Selection.Interval)
	assert.Equal(t, 20, cfg.Indicator.BBPeriod)
	assert.Equal(t, 14, cfg.Indicator.RSIPeriod)
	assert.Equal(t, 5, cfg.Enrich.DebounceSeconds)
	assert.False(t, cfg.Enrich.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
  http_addr: ":9000"
market:
  max_cached: 300
selection:
  symbol: EURUSD
  interval: 1d
indicator:
  rsi_period: 7
  ichi_tenkan: 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9000", cfg.App.HTTPAddr)
	assert.Equal(t, 300, cfg.Market.MaxCached)
	assert.Equal(t, "EURUSD", cfg.Selection.Symbol)
	assert.Equal(t, "1d", cfg.Selection.Interval)
	assert.Equal(t, 7, cfg.Indicator.RSIPeriod)
	assert.Equal(t, 7, cfg.Indicator.IchiTenkan)
	// Untouched indicator fields still get defaults.
	assert.Equal(t, 26, cfg.Indicator.IchiKijun)
}

func TestLoadRejectsUnknownSymbol(t *testing.T) {
	path := writeConfig(t, "selection:\n  symbol: DOGEUSD\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selection.symbol")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	path := writeConfig(t, "selection:\n  interval: 3x\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "app:\n  log_level: loud\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnrichRequiresKey(t *testing.T) {
	t.Setenv("FXLENS_ENRICH_API_KEY", "")
	path := writeConfig(t, "enrich:\n  enabled: true\n")
	_, err := Load(path)
	require.Error(t, err)

	t.Setenv("FXLENS_ENRICH_API_KEY", "sk-test")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Enrich.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Enrich.Model)
}
