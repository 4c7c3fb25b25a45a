package main

import (
	"context"
	"log"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("FATAL: アプリケーションの初期化に失敗しました: %v", err)
	}
	defer app.Close()

	log.Printf("🚀 Starting policy deliberation API server on :%s", cfg.Port)
	if err := app.Router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
