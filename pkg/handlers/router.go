package handlers

import (
	"log"
	"net/http"

	"policy-deliberation-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps はルーターに登録するハンドラ群です。
type RouterDeps struct {
	APIKey            string
	Deliberations     *DeliberationHandler
	Admin             *AdminHandler
	Monitoring        *MonitoringHandler
	MonitoringService *services.MonitoringService
}

// APIKeyAuth は X-API-KEY ヘッダーを確認する認証ミドルウェアです。キーが未設定なら認証しません。
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			log.Printf("❌ [認証] 無効なAPI Key: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter はAPIのルーティングを設定したGinエンジンを返します。
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.Default()

	// ミドルウェアの登録
	r.Use(deps.MonitoringService.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY")
	corsConfig.ExposeHeaders = []string{"X-Run-ID", "Content-Disposition"}
	r.Use(cors.New(corsConfig))

	// ヘルスチェックエンドポイント
	r.GET("/health", deps.Admin.HealthCheck)

	v1 := r.Group("/api/v1")
	v1.Use(APIKeyAuth(deps.APIKey))
	{
		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", deps.Admin.GetHealthStatus)
			admin.POST("/maintenance/start", deps.Admin.StartMaintenance)
			admin.POST("/maintenance/stop", deps.Admin.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", deps.Monitoring.GetLogs)
			monitoring.GET("/runs", deps.Monitoring.GetRuns)
		}

		// 熟議API
		d := v1.Group("/deliberations")
		{
			d.POST("/stream", deps.Admin.MaintenanceGuard(), deps.Deliberations.StreamDeliberation)
			d.POST("", deps.Admin.MaintenanceGuard(), deps.Deliberations.CreateDeliberation)
			d.GET("", deps.Deliberations.ListDeliberations)
			d.GET("/similar", deps.Deliberations.SearchSimilar)
			d.GET("/:id", deps.Deliberations.GetDeliberation)
			d.GET("/:id/report", deps.Deliberations.GetReport)
		}
	}
	return r
}
