package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                              "9090",
		"ENVIRONMENT":                       "test",
		"AZURE_OPENAI_ENDPOINT":             "https://test.openai.azure.com/",
		"AZURE_OPENAI_API_KEY":              "test-key",
		"AZURE_OPENAI_CHAT_DEPLOYMENT_NAME": "test-deployment",
		"GENERATION_TIMEOUT":                "45s",
		"EVALUATION_CONCURRENCY":            "8",
		"FUTURE_EVALUATION_LIMIT":           "0",
	}
	for key, value := range testCases {
		t.Setenv(key, value)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "https://test.openai.azure.com/", cfg.AzureOpenAIEndpoint)
	assert.Equal(t, "test-key", cfg.AzureOpenAIAPIKey)
	assert.Equal(t, "test-deployment", cfg.AzureOpenAIChatDeploymentName)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 8, cfg.EvaluationConcurrency)
	assert.Equal(t, 0, cfg.FutureEvaluationLimit)
}

func TestLoadConfigDefaults(t *testing.T) {
	// 既定値を確認するため空にする
	for _, v := range []string{
		"PORT", "ENVIRONMENT", "GENERATION_TIMEOUT", "EVALUATION_CONCURRENCY",
		"FUTURE_EVALUATION_LIMIT", "RESULT_CACHE_SIZE", "AZURE_OPENAI_API_VERSION",
	} {
		t.Setenv(v, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 120*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 4, cfg.EvaluationConcurrency)
	assert.Equal(t, 5, cfg.FutureEvaluationLimit)
	assert.Equal(t, 64, cfg.ResultCacheSize)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	t.Setenv("GENERATION_TIMEOUT", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigClampsConcurrency(t *testing.T) {
	t.Setenv("EVALUATION_CONCURRENCY", "0")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.EvaluationConcurrency)
}
