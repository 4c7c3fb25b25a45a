package handlers

import (
	"context"
	"fmt"
	"iter"
	"log"
	"net/http"
	"strconv"
	"time"

	"policy-deliberation-api/pkg/deliberation"
	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// archiveTimeout アーカイブ保存1件あたりの上限
const archiveTimeout = 30 * time.Second

// Runner は熟議を実行して進捗イベントの列を返します。
type Runner interface {
	RunWithID(ctx context.Context, runID, raw string) iter.Seq[models.ProgressEvent]
}

// Archive は完了した政策案の保存先です。
type Archive interface {
	Save(ctx context.Context, env models.ResultEnvelope) error
	Search(ctx context.Context, query string, topK uint64) ([]services.ArchivedProposal, error)
}

// DeliberationHandler は熟議APIのハンドラです。
type DeliberationHandler struct {
	runner     Runner
	store      *services.ResultStore
	archive    Archive // nil のときはアーカイブしない
	reports    *services.ReportService
	monitoring *services.MonitoringService
}

// NewDeliberationHandler は新しいDeliberationHandlerを生成します。
func NewDeliberationHandler(runner Runner, store *services.ResultStore, archive Archive, reports *services.ReportService, monitoring *services.MonitoringService) *DeliberationHandler {
	return &DeliberationHandler{
		runner:     runner,
		store:      store,
		archive:    archive,
		reports:    reports,
		monitoring: monitoring,
	}
}

// StreamDeliberation は熟議を開始し、進捗を Server-Sent Events で返します。
func (h *DeliberationHandler) StreamDeliberation(c *gin.Context) {
	var req models.DeliberationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input は必須です"})
		return
	}

	runID := uuid.NewString()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Run-ID", runID)
	c.Status(http.StatusOK)

	tracker := h.track(runID)
	defer tracker.close()

	for e := range h.runner.RunWithID(c.Request.Context(), runID, req.Input) {
		tracker.observe(e)
		data, err := jsonutil.MarshalNoEscape(e)
		if err != nil {
			log.Printf("⚠️ イベントのエンコードに失敗しました (%s): %v", e.Type, err)
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			log.Printf("⚠️ クライアントへの送信に失敗しました: %v", err)
			return
		}
		c.Writer.Flush()
	}
}

// CreateDeliberation は熟議を最後まで実行し、結果をまとめて返します。
func (h *DeliberationHandler) CreateDeliberation(c *gin.Context) {
	var req models.DeliberationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input は必須です"})
		return
	}

	runID := uuid.NewString()
	tracker := h.track(runID)
	defer tracker.close()

	c.Header("X-Run-ID", runID)
	for e := range h.runner.RunWithID(c.Request.Context(), runID, req.Input) {
		tracker.observe(e)
		switch e.Type {
		case models.EventComplete:
			c.JSON(http.StatusOK, e.Data)
			return
		case models.EventError:
			payload, _ := e.Data.(models.ErrorPayload)
			c.JSON(statusForKind(payload.Kind), gin.H{
				"error": payload.Message,
				"stage": payload.Stage,
				"kind":  payload.Kind,
				"runId": runID,
			})
			return
		}
	}
	// クライアントが切断した場合はここに来る
	log.Printf("⏹️ 熟議 %s はクライアントの切断により中断されました", runID)
}

// statusForKind はエラー分類に対応するHTTPステータスを返します。
func statusForKind(kind string) int {
	switch deliberation.ErrorKind(kind) {
	case deliberation.KindValidationFailure:
		return http.StatusUnprocessableEntity
	case deliberation.KindExtractionMiss, deliberation.KindGenerationTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ListDeliberations は直近の熟議結果の一覧を返します。
func (h *DeliberationHandler) ListDeliberations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	c.JSON(http.StatusOK, gin.H{"results": h.store.Recent(limit)})
}

// GetDeliberation は保存済みの熟議結果を返します。
func (h *DeliberationHandler) GetDeliberation(c *gin.Context) {
	env, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "熟議結果が見つかりません"})
		return
	}
	c.JSON(http.StatusOK, env)
}

// GetReport は熟議結果をExcelファイルとして返します。
func (h *DeliberationHandler) GetReport(c *gin.Context) {
	id := c.Param("id")
	env, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "熟議結果が見つかりません"})
		return
	}
	buf, err := h.reports.Build(env)
	if err != nil {
		log.Printf("❌ レポートの作成に失敗しました (%s): %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "レポートの作成に失敗しました"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="deliberation-%s.xlsx"`, id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// SearchSimilar は過去の政策案から類似するものを検索します。
func (h *DeliberationHandler) SearchSimilar(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "政策案アーカイブが設定されていません"})
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q は必須です"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 5
	}
	found, err := h.archive.Search(c.Request.Context(), query, uint64(limit))
	if err != nil {
		log.Printf("❌ 類似政策の検索に失敗しました: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "類似政策の検索に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": found})
}

// runTracker は1回の熟議の終わり方を記録し、完了した結果を保存します。
type runTracker struct {
	h        *DeliberationHandler
	runID    string
	started  time.Time
	terminal bool
}

func (h *DeliberationHandler) track(runID string) *runTracker {
	return &runTracker{h: h, runID: runID, started: time.Now()}
}

func (t *runTracker) observe(e models.ProgressEvent) {
	switch e.Type {
	case models.EventComplete:
		t.terminal = true
		env, ok := e.Data.(models.ResultEnvelope)
		if !ok {
			return
		}
		t.h.store.Put(env)
		t.h.monitoring.RecordRun(services.RunRecord{
			RunID:             t.runID,
			StartedAt:         t.started,
			Duration:          time.Since(t.started),
			Outcome:           services.RunCompleted,
			FailedEvaluations: env.ExecutionStatus.FailedEvaluationCount,
		})
		t.h.archiveAsync(env)
	case models.EventError:
		t.terminal = true
		payload, _ := e.Data.(models.ErrorPayload)
		t.h.monitoring.RecordRun(services.RunRecord{
			RunID:     t.runID,
			StartedAt: t.started,
			Duration:  time.Since(t.started),
			Outcome:   services.RunFailed,
			Stage:     payload.Stage,
			Kind:      payload.Kind,
			Message:   payload.Message,
		})
	}
}

func (t *runTracker) close() {
	if t.terminal {
		return
	}
	t.h.monitoring.RecordRun(services.RunRecord{
		RunID:     t.runID,
		StartedAt: t.started,
		Duration:  time.Since(t.started),
		Outcome:   services.RunCancelled,
	})
}

// archiveAsync はリクエストとは独立に政策案をアーカイブします。
func (h *DeliberationHandler) archiveAsync(env models.ResultEnvelope) {
	if h.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := h.archive.Save(ctx, env); err != nil {
			log.Printf("⚠️ 政策案のアーカイブに失敗しました (%s): %v", env.RunID, err)
		}
	}()
}
