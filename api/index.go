package handler

import (
	"context"
	"log"
	"net/http"
	"sync"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/server"
)

var (
	app      *server.App
	setupErr error
	once     sync.Once
)

// setupApp はアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*server.App, error) {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing policy deliberation API")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg, err := config.LoadConfig()
		if err != nil {
			setupErr = err
			return
		}
		app, setupErr = server.New(context.Background(), cfg)
	})
	return app, setupErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔵 [Handler] Request received: %s %s", r.Method, r.URL.Path)

	a, err := setupApp()
	if err != nil {
		log.Printf("❌ [Handler] 初期化に失敗しました: %v", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	a.Router.ServeHTTP(w, r)
}
