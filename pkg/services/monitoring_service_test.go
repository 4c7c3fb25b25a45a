package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddlewareSkipsAdminPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	monitoring := NewMonitoringService()

	router := gin.New()
	router.Use(monitoring.LoggingMiddleware())
	router.GET("/api/v1/deliberations/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/api/v1/admin/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/deliberations/x", "/api/v1/admin/status"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	data := monitoring.GetDashboardData(24)
	assert.Equal(t, map[string]int{"/api/v1/deliberations/x": 1}, data.Endpoints)
	assert.Equal(t, 1, data.StatusCodes["4xx Client Error"])
	assert.Len(t, data.RequestsOverTime, 24)
}

func TestDashboardRecentErrors(t *testing.T) {
	monitoring := NewMonitoringService()
	now := time.Now()
	monitoring.LogRequest(LogEntry{Timestamp: now, Path: "/a", StatusCode: 500, ResponseTime: 20 * time.Millisecond})
	monitoring.LogRequest(LogEntry{Timestamp: now, Path: "/a", StatusCode: 200, ResponseTime: 40 * time.Millisecond})
	monitoring.LogRequest(LogEntry{Timestamp: now.Add(-48 * time.Hour), Path: "/old", StatusCode: 500})

	data := monitoring.GetDashboardData(24)
	require.Len(t, data.RecentErrors, 1)
	assert.Equal(t, "/a", data.RecentErrors[0].Path)
	assert.Equal(t, int64(30), data.AvgResponseTimes["/a"])
	assert.NotContains(t, data.Endpoints, "/old")
}

func TestRunStats(t *testing.T) {
	monitoring := NewMonitoringService()
	monitoring.RecordRun(RunRecord{RunID: "1", Outcome: RunCompleted, Duration: 2 * time.Second, FailedEvaluations: 1})
	monitoring.RecordRun(RunRecord{RunID: "2", Outcome: RunCompleted, Duration: 4 * time.Second})
	monitoring.RecordRun(RunRecord{RunID: "3", Outcome: RunFailed, Stage: "demographics", Kind: "ExtractionMiss"})
	monitoring.RecordRun(RunRecord{RunID: "4", Outcome: RunCancelled})

	stats := monitoring.GetRunStats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, int64(3000), stats.AvgDurationMs)
	assert.Equal(t, 1, stats.FailuresByStage["demographics"])
	assert.Equal(t, 1, stats.FailedEvaluations)
	require.Len(t, stats.RecentFailures, 1)
	assert.Equal(t, "3", stats.RecentFailures[0].RunID)
}

func TestAppendBounded(t *testing.T) {
	var items []int
	for i := range 5 {
		items = appendBounded(items, i, 3)
	}
	assert.Equal(t, []int{2, 3, 4}, items)
}
