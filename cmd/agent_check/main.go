// agent_check は Azure OpenAI（またはプロキシ）への疎通を確認します。
package main

import (
	"context"
	"log"
	"time"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/azure"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if cfg.AzureOpenAIEndpoint == "" || cfg.AzureOpenAIAPIKey == "" || cfg.AzureOpenAIChatDeploymentName == "" {
		log.Fatal("FATAL: 必要な環境変数 (AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, AZURE_OPENAI_CHAT_DEPLOYMENT_NAME) が設定されていません。")
	}

	client := azure.NewOpenAIClient(
		cfg.AzureOpenAIEndpoint,
		cfg.AzureOpenAIAPIKey,
		cfg.AzureOpenAIAPIVersion,
		cfg.AzureOpenAIChatDeploymentName,
		cfg.AzureOpenAIEmbeddingDeploymentName,
		cfg.AzureOpenAIProxyURL,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// 1. 通常の応答
	log.Println("INFO: チャット補完を送信します...")
	resp, err := client.ChatCompletion(ctx, []azure.ChatMessage{{Role: "user", Content: "Hello!"}}, 50, 0, 1)
	if err != nil {
		log.Fatalf("ERROR: チャット補完に失敗しました: %v", err)
	}
	if len(resp.Choices) > 0 {
		log.Println("応答:", resp.Choices[0].Message.Content)
	}

	// 2. ストリーミング応答
	log.Println("INFO: ストリーミングを確認します...")
	chunks := 0
	for _, err := range client.ChatCompletionStream(ctx, []azure.ChatMessage{{Role: "user", Content: "1から5まで数えてください"}}, 50, 0) {
		if err != nil {
			log.Fatalf("ERROR: ストリーミングに失敗しました: %v", err)
		}
		chunks++
	}
	log.Printf("INFO: %d 個の断片を受信しました", chunks)

	// 3. 埋め込み（アーカイブ用）
	if cfg.AzureOpenAIEmbeddingDeploymentName != "" {
		vec, err := client.CreateEmbedding(ctx, "子育て支援")
		if err != nil {
			log.Fatalf("ERROR: 埋め込みの生成に失敗しました: %v", err)
		}
		log.Printf("INFO: 埋め込みの次元数: %d", len(vec))
	}

	log.Println("SUCCESS: 正常に応答が返ってきました。")
}
