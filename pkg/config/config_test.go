package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GITHUB_APP_ID", "GITHUB_APP_PRIVATE_KEY_PATH", "GITHUB_WEBHOOK_SECRET",
		"LLM_API_KEY", "CONTAINER_RUN_TIMEOUT",
		"LLM_REQUEST_TIMEOUT", "REVIEW_MAX_ITERATIONS", "PROGRESS_LOG_THROTTLE",
		"PROGRESS_STAT_THROTTLE",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_APP_ID")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_APP_PRIVATE_KEY_PATH", "/etc/sadguard/key.pem")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "shh")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), cfg.AppID)
	assert.Equal(t, 3, cfg.ReviewMaxIterations)
	assert.Equal(t, "5m0s", cfg.ContainerRunTimeout.String())
}

func TestLoad_RejectsOverlongLLMTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_APP_PRIVATE_KEY_PATH", "/etc/sadguard/key.pem")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "shh")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_REQUEST_TIMEOUT", "700s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "600s")
}
