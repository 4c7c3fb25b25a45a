package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	APIKey        string `env:"API_KEY"`
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	AzureOpenAIEndpoint                string `env:"AZURE_OPENAI_ENDPOINT"`
	AzureOpenAIAPIKey                  string `env:"AZURE_OPENAI_API_KEY"`
	AzureOpenAIAPIVersion              string `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-06-01"`
	AzureOpenAIChatDeploymentName      string `env:"AZURE_OPENAI_CHAT_DEPLOYMENT_NAME" envDefault:"gpt-4o-mini"`
	AzureOpenAIEmbeddingDeploymentName string `env:"AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME"`
	AzureOpenAIProxyURL                string `env:"AZURE_OPENAI_PROXY_URL"`

	// 生成呼び出しと熟議の調整
	GenerationTimeout     time.Duration `env:"GENERATION_TIMEOUT" envDefault:"120s"`
	GenerationMaxTokens   int           `env:"GENERATION_MAX_TOKENS" envDefault:"4000"`
	AgentRPS              float64       `env:"AGENT_RPS" envDefault:"0"`
	EvaluationConcurrency int           `env:"EVALUATION_CONCURRENCY" envDefault:"4"`
	FutureEvaluationLimit int           `env:"FUTURE_EVALUATION_LIMIT" envDefault:"5"`
	ResultCacheSize       int           `env:"RESULT_CACHE_SIZE" envDefault:"64"`
	PromptsPath           string        `env:"PROMPTS_PATH"`

	QdrantURL    string `env:"QDRANT_URL"`
	QdrantAPIKey string `env:"QDRANT_API_KEY"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	if cfg.EvaluationConcurrency < 1 {
		cfg.EvaluationConcurrency = 1
	}
	if cfg.FutureEvaluationLimit < 0 {
		cfg.FutureEvaluationLimit = 0
	}
	return &cfg, nil
}

// IsProduction は本番環境かどうかを返します。
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
