package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/apigov.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Governor.DefaultTimeout)
	assert.Equal(t, 0.2, cfg.Alerting.ErrorRateThreshold)
	assert.Equal(t, 50, cfg.Alerting.ErrorRateWindow)
	assert.Equal(t, 0.05, cfg.Alerting.QuotaFloorPct)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configYAML := `
server:
  port: 9090
services:
  newsapi:
    display_name: NewsAPI
    enabled: true
    daily_limit: 100
    rate_per_sec: 2
  abstract:
    display_name: Abstract Enrichment
    enabled: true
    monthly_limit: 5000
    timeout: 10s
`
	err := os.WriteFile(configPath, []byte(configYAML), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	require.Len(t, cfg.Services, 2)

	news := cfg.Services["newsapi"]
	assert.Equal(t, "NewsAPI", news.DisplayName)
	assert.True(t, news.Enabled)
	assert.Equal(t, 100, news.DailyLimit)
	assert.Equal(t, 2.0, news.RatePerSec)

	abstract := cfg.Services["abstract"]
	assert.Equal(t, 5000, abstract.MonthlyLimit)
	assert.Equal(t, 10*time.Second, abstract.Timeout)
}

func TestValidate_NoEnabledServices(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	assert.ErrorContains(t, err, "at least one service")
}

func TestValidate_NegativeLimit(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Services = map[string]ServiceConfig{
		"newsapi": {Enabled: true, DailyLimit: -1},
	}

	err = cfg.Validate()
	assert.ErrorContains(t, err, "negative quota limit")
}

func TestValidate_BadErrorRateThreshold(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Services = map[string]ServiceConfig{
		"newsapi": {Enabled: true},
	}
	cfg.Alerting.ErrorRateThreshold = 1.5

	err = cfg.Validate()
	assert.ErrorContains(t, err, "error_rate_threshold")
}

func TestValidate_OK(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Services = map[string]ServiceConfig{
		"newsapi": {Enabled: true, DailyLimit: 100},
	}

	assert.NoError(t, cfg.Validate())
}
