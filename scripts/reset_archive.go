//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/server"

	"github.com/joho/godotenv"
)

func main() {
	log.Println("🧹 政策案アーカイブのリセットを開始します...")

	// .env.localファイルを優先的に読み込み（本番環境用）
	if err := godotenv.Load(".env.local"); err != nil {
		log.Printf("Warning: .env.local file not found, trying .env: %v", err)
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found: %v", err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	log.Printf("接続先Qdrant: %s", cfg.QdrantURL)

	ctx := context.Background()
	pipeline, err := server.NewPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("初期化に失敗: %v", err)
	}
	defer pipeline.Close()
	if pipeline.Archive == nil {
		log.Fatal("政策案アーカイブに接続できませんでした（QDRANT_URL と埋め込みデプロイ名を確認してください）")
	}

	n, err := pipeline.Archive.Count(ctx)
	if err != nil {
		log.Fatalf("件数の取得に失敗: %v", err)
	}
	log.Printf("📋 保存済みの政策案: %d件", n)

	// 確認プロンプト
	fmt.Print("\n❓ すべての政策案を削除してもよろしいですか？ (yes/no): ")
	var response string
	fmt.Scanln(&response)
	if strings.ToLower(response) != "yes" {
		log.Println("❌ 削除をキャンセルしました")
		os.Exit(0)
	}

	if err := pipeline.Archive.Reset(ctx); err != nil {
		log.Printf("⚠️ リセットに失敗: %v", err)
		os.Exit(1)
	}
	log.Println("✅ 政策案アーカイブをリセットしました")
}
