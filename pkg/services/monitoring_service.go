package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// 保持するログの上限
const (
	maxRequestLogs = 5000
	maxRunRecords  = 1000
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// RunOutcome 熟議の終わり方
type RunOutcome string

const (
	RunCompleted RunOutcome = "complete"
	RunFailed    RunOutcome = "error"
	RunCancelled RunOutcome = "cancelled"
)

// RunRecord は1回の熟議の実行記録です。
type RunRecord struct {
	RunID             string        `json:"runId"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"duration"`
	Outcome           RunOutcome    `json:"outcome"`
	Stage             string        `json:"stage,omitempty"` // 失敗したステージ
	Kind              string        `json:"kind,omitempty"`
	Message           string        `json:"message,omitempty"`
	FailedEvaluations int           `json:"failedEvaluations"`
}

// MonitoringService はAPIと熟議の実行状況を記録します。
type MonitoringService struct {
	logs []LogEntry
	runs []RunRecord
	mu   sync.RWMutex
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0),
		runs: make([]RunRecord, 0),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = appendBounded(s.logs, entry, maxRequestLogs)
}

// RecordRun は熟議の実行結果を記録します。
func (s *MonitoringService) RecordRun(record RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = appendBounded(s.runs, record, maxRunRecords)
}

func appendBounded[T any](items []T, item T, limit int) []T {
	items = append(items, item)
	if len(items) > limit {
		items = append(items[:0:0], items[len(items)-limit:]...)
	}
	return items
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 管理系のパスは記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		})
	}
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]any `json:"requestsOverTime"`
	Endpoints        map[string]int   `json:"endpoints"`
	StatusCodes      map[string]int   `json:"statusCodes"`
	AvgResponseTimes map[string]int64 `json:"avgResponseTimes"` // ミリ秒
	RecentErrors     []LogEntry       `json:"recentErrors"`
}

// GetDashboardData は指定された期間のリクエストログを集計します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if periodHours < 1 {
		periodHours = 1
	}

	// JSTタイムゾーンを取得（取得できない場合はUTC）
	jst, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		jst = time.UTC
	}
	now := time.Now().In(jst)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	data := DashboardData{
		RequestsOverTime: make([]map[string]any, periodHours),
		Endpoints:        make(map[string]int),
		StatusCodes:      map[string]int{"2xx Success": 0, "4xx Client Error": 0, "5xx Server Error": 0},
		AvgResponseTimes: make(map[string]int64),
		RecentErrors:     make([]LogEntry, 0),
	}

	// 時間のバケットを過去から現在の順に用意する
	bucketIndex := make(map[int64]int, periodHours)
	for i := range periodHours {
		target := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[target.Unix()] = i
		data.RequestsOverTime[i] = map[string]any{"time": target.Format("15:00"), "requests": 0}
	}

	totals := make(map[string]time.Duration)
	for _, entry := range s.logs {
		if !entry.Timestamp.After(since) {
			continue
		}
		if i, ok := bucketIndex[entry.Timestamp.In(jst).Truncate(time.Hour).Unix()]; ok {
			data.RequestsOverTime[i]["requests"] = data.RequestsOverTime[i]["requests"].(int) + 1
		}
		data.Endpoints[entry.Path]++
		totals[entry.Path] += entry.ResponseTime
		switch {
		case entry.StatusCode >= 500:
			data.StatusCodes["5xx Server Error"]++
		case entry.StatusCode >= 400:
			data.StatusCodes["4xx Client Error"]++
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			data.StatusCodes["2xx Success"]++
		}
	}
	for path, total := range totals {
		data.AvgResponseTimes[path] = total.Milliseconds() / int64(data.Endpoints[path])
	}

	// 直近の5xxを新しい順に10件
	for i := len(s.logs) - 1; i >= 0 && len(data.RecentErrors) < 10; i-- {
		if s.logs[i].StatusCode >= 500 && s.logs[i].Timestamp.After(since) {
			data.RecentErrors = append(data.RecentErrors, s.logs[i])
		}
	}
	return data
}

// RunStats 熟議の実行状況の集計
type RunStats struct {
	Total             int            `json:"total"`
	Completed         int            `json:"completed"`
	Failed            int            `json:"failed"`
	Cancelled         int            `json:"cancelled"`
	AvgDurationMs     int64          `json:"avgDurationMs"` // 完了した実行のみ
	FailuresByStage   map[string]int `json:"failuresByStage"`
	FailedEvaluations int            `json:"failedEvaluations"`
	RecentFailures    []RunRecord    `json:"recentFailures"`
}

// GetRunStats は記録済みの熟議を集計します。
func (s *MonitoringService) GetRunStats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{
		FailuresByStage: make(map[string]int),
		RecentFailures:  make([]RunRecord, 0),
	}
	var completedTime time.Duration
	for _, r := range s.runs {
		stats.Total++
		stats.FailedEvaluations += r.FailedEvaluations
		switch r.Outcome {
		case RunCompleted:
			stats.Completed++
			completedTime += r.Duration
		case RunFailed:
			stats.Failed++
			stats.FailuresByStage[r.Stage]++
		case RunCancelled:
			stats.Cancelled++
		}
	}
	if stats.Completed > 0 {
		stats.AvgDurationMs = completedTime.Milliseconds() / int64(stats.Completed)
	}
	for i := len(s.runs) - 1; i >= 0 && len(stats.RecentFailures) < 10; i-- {
		if s.runs[i].Outcome == RunFailed {
			stats.RecentFailures = append(stats.RecentFailures, s.runs[i])
		}
	}
	return stats
}
