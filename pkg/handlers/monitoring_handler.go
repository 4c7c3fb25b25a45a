package handlers

import (
	"net/http"
	"strconv"

	"policy-deliberation-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
	Store   *services.ResultStore
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService, store *services.ResultStore) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
		Store:   store,
	}
}

// GetLogs は集計されたリクエストログを返します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	var hours int
	switch c.DefaultQuery("period", "24h") {
	case "1h":
		hours = 1
	case "7d":
		hours = 24 * 7
	default:
		hours = 24
	}
	c.JSON(http.StatusOK, h.Service.GetDashboardData(hours))
}

// GetRuns は熟議の実行状況と直近の結果を返します。
func (h *MonitoringHandler) GetRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":  h.Service.GetRunStats(),
		"recent": h.Store.Recent(limit),
	})
}
