package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "observability_data", cfg.Storage.Dir)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.False(t, cfg.Observability.AIAnalysis)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SUBGW_SERVER__PORT", "9090")
	t.Setenv("SUBGW_STORAGE__DIR", "/var/lib/subgw")
	t.Setenv("SUBGW_OBSERVABILITY__AI_ANALYSIS", "true")
	t.Setenv("SUBGW_DRIFT__RECENT_WINDOW", "10")
	t.Setenv("SUBGW_LLM__BASE_URL", "https://api.openai.com/v1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/subgw", cfg.Storage.Dir)
	assert.True(t, cfg.Observability.AIAnalysis)
	assert.Equal(t, 10, cfg.Drift.RecentWindow)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
}

func TestAPIKeyEnvSubstitution(t *testing.T) {
	t.Setenv("MY_SECRET_KEY", "sk-test-123")
	t.Setenv("SUBGW_LLM__API_KEY", "${MY_SECRET_KEY}")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.LLM.APIKey)
}
