// Package server は設定から熟議APIの各コンポーネントを組み立てます。
package server

import (
	"context"
	"fmt"
	"log"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/azure"
	"policy-deliberation-api/pkg/deliberation"
	"policy-deliberation-api/pkg/handlers"
	"policy-deliberation-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// Pipeline は熟議の実行に必要なコンポーネントです。
type Pipeline struct {
	Orchestrator *deliberation.Orchestrator
	Agent        *services.AzureOpenAIService
	Archive      *services.ProposalArchive // QDRANT_URL 未設定なら nil
}

// Close は保持している接続を解放します。
func (p *Pipeline) Close() {
	p.Agent.Close()
	if p.Archive != nil {
		if err := p.Archive.Close(); err != nil {
			log.Printf("⚠️ Qdrant接続のクローズに失敗しました: %v", err)
		}
	}
}

// NewPipeline は生成クライアント・プロンプト・アーカイブから Orchestrator を組み立てます。
func NewPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	if cfg.AzureOpenAIEndpoint == "" || cfg.AzureOpenAIAPIKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT と AZURE_OPENAI_API_KEY を設定してください")
	}

	prompts, err := config.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ プロンプト定義を読み込みました (version %s)", prompts.Version)

	client := azure.NewOpenAIClient(
		cfg.AzureOpenAIEndpoint,
		cfg.AzureOpenAIAPIKey,
		cfg.AzureOpenAIAPIVersion,
		cfg.AzureOpenAIChatDeploymentName,
		cfg.AzureOpenAIEmbeddingDeploymentName,
		cfg.AzureOpenAIProxyURL,
	)
	agent := services.NewAzureOpenAIService(client, services.AzureOpenAIOptions{
		Timeout:   cfg.GenerationTimeout,
		MaxTokens: cfg.GenerationMaxTokens,
		RPS:       cfg.AgentRPS,
	})

	orchestrator := deliberation.New(agent, prompts, deliberation.Options{
		EvaluationConcurrency: cfg.EvaluationConcurrency,
		FutureEvaluationLimit: cfg.FutureEvaluationLimit,
	})

	p := &Pipeline{Orchestrator: orchestrator, Agent: agent}
	if cfg.QdrantURL != "" && cfg.AzureOpenAIEmbeddingDeploymentName != "" {
		archive, err := services.NewProposalArchive(ctx, agent, cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			// アーカイブなしでも熟議は実行できる
			log.Printf("⚠️ 政策案アーカイブを初期化できませんでした（アーカイブなしで続行）: %v", err)
		} else {
			p.Archive = archive
			orchestrator.WithReferences(archive)
		}
	}
	return p, nil
}

// App はHTTPサーバーとして動かすためのアプリケーションです。
type App struct {
	Router   *gin.Engine
	Pipeline *Pipeline
}

// New は設定からアプリケーション全体を組み立てます。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pipeline, err := NewPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := services.NewResultStore(cfg.ResultCacheSize)
	if err != nil {
		pipeline.Close()
		return nil, err
	}
	monitoringService := services.NewMonitoringService()

	var archive handlers.Archive
	if pipeline.Archive != nil {
		archive = pipeline.Archive
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		APIKey:            cfg.APIKey,
		Deliberations:     handlers.NewDeliberationHandler(pipeline.Orchestrator, store, archive, services.NewReportService(), monitoringService),
		Admin:             handlers.NewAdminHandler(cfg),
		Monitoring:        handlers.NewMonitoringHandler(monitoringService, store),
		MonitoringService: monitoringService,
	})
	return &App{Router: router, Pipeline: pipeline}, nil
}

// Close はアプリケーションの資源を解放します。
func (a *App) Close() {
	a.Pipeline.Close()
}
