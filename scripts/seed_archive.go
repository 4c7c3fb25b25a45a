//go:build ignore

// seed_archive は保存済みの熟議結果（ResultEnvelope のJSON）を政策案アーカイブに登録します。
//
//	go run scripts/seed_archive.go results/*.json
package main

import (
	"context"
	"log"
	"os"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/server"

	"github.com/joho/godotenv"
)

func main() {
	log.Println("🚀 政策案アーカイブへの登録を開始します...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx := context.Background()
	pipeline, err := server.NewPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("初期化に失敗: %v", err)
	}
	defer pipeline.Close()
	if pipeline.Archive == nil {
		log.Fatal("政策案アーカイブに接続できませんでした（QDRANT_URL と埋め込みデプロイ名を確認してください）")
	}

	saved, failed := 0, 0
	for _, path := range os.Args[1:] {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("  ⚠️ %s を読み込めません: %v", path, err)
			failed++
			continue
		}
		var env models.ResultEnvelope
		if err := jsonutil.UnmarshalFlex(raw, &env); err != nil {
			log.Printf("  ⚠️ %s を解析できません: %v", path, err)
			failed++
			continue
		}
		if !env.ExecutionStatus.Completed {
			log.Printf("  ⏭️ %s は完了していない熟議のためスキップします", path)
			continue
		}
		if err := pipeline.Archive.Save(ctx, env); err != nil {
			log.Printf("  ⚠️ %s の登録に失敗: %v", path, err)
			failed++
			continue
		}
		saved++
	}

	log.Println("==================================================")
	log.Printf("📊 登録完了  成功: %d件  失敗: %d件", saved, failed)
	log.Println("==================================================")
	if failed > 0 {
		os.Exit(1)
	}
}
