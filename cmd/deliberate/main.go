// deliberate は熟議をコマンドラインから実行し、進捗イベントをJSON Linesで出力します。
//
//	go run ./cmd/deliberate "子育て支援の所得制限を撤廃して欲しい"
//	echo "..." | go run ./cmd/deliberate
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/server"

	"github.com/joho/godotenv"
)

func main() {
	resultOnly := flag.Bool("result", false, "最終結果のみを出力する")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	input := strings.Join(flag.Args(), " ")
	if input == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("FATAL: 標準入力を読み込めませんでした: %v", err)
		}
		input = string(b)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline, err := server.NewPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer pipeline.Close()

	failed := false
	for e := range pipeline.Orchestrator.Run(ctx, input) {
		if e.Type == models.EventError {
			failed = true
		}
		if *resultOnly && e.Type != models.EventComplete && e.Type != models.EventError {
			continue
		}
		b, err := jsonutil.MarshalNoEscape(e)
		if err != nil {
			log.Printf("⚠️ イベントのエンコードに失敗しました (%s): %v", e.Type, err)
			continue
		}
		fmt.Println(string(b))
	}
	if failed {
		pipeline.Close()
		os.Exit(1)
	}
}
