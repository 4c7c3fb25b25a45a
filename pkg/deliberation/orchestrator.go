package deliberation

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// Options 熟議の実行設定
type Options struct {
	EvaluationConcurrency int // 市民評価の同時実行数
	FutureEvaluationLimit int // 将来評価を行う市民の人数（0 は全員）
	MaxReviewAttempts     int // 0 のときは MaxReviewAttempts
}

// Orchestrator は各ステージを順に実行し、進捗イベントを1本の列にまとめます。
// 実行ごとの状態は Run の中に閉じており、同じ Orchestrator を並行に使えます。
type Orchestrator struct {
	research     *ResearchStage
	demographics *DemographicsStage
	planner      *ParticipantPlanner
	drafting     *DraftingStage
	loop         *ReviewLoop
	citizens     *CitizenEvaluator
	future       *FutureEvaluator
	scoring      *ScoringStage
	opts         Options
}

// New は Orchestrator を作成します。
func New(agent services.Agent, prompts *config.PromptCatalog, opts Options) *Orchestrator {
	if opts.EvaluationConcurrency < 1 {
		opts.EvaluationConcurrency = 1
	}
	if opts.FutureEvaluationLimit < 0 {
		opts.FutureEvaluationLimit = 0
	}
	r := runner{agent: agent, prompts: prompts}
	drafting := &DraftingStage{runner: r}
	review := &ReviewStage{runner: r}
	return &Orchestrator{
		research:     &ResearchStage{runner: r},
		demographics: &DemographicsStage{runner: r},
		planner:      &ParticipantPlanner{runner: r},
		drafting:     drafting,
		loop:         &ReviewLoop{drafting: drafting, review: review, maxAttempts: opts.MaxReviewAttempts},
		citizens:     &CitizenEvaluator{runner: r},
		future:       &FutureEvaluator{runner: r},
		scoring:      &ScoringStage{runner: r},
		opts:         opts,
	}
}

// WithReferences は調査ステージに過去の提案の検索元を設定します。
func (o *Orchestrator) WithReferences(src ReferenceSource) *Orchestrator {
	o.research.references = src
	return o
}

// Run は熟議を開始し、進捗イベントの列を返します。
func (o *Orchestrator) Run(ctx context.Context, raw string) iter.Seq[models.ProgressEvent] {
	return o.RunWithID(ctx, uuid.NewString(), raw)
}

// RunWithID は実行IDを指定して熟議を開始します。
// 列は complete か error のどちらか1つで終わります。呼び出し元がキャンセルした場合
// （ctx のキャンセル、または range を途中で抜けた場合）はそれ以降イベントを出しません。
func (o *Orchestrator) RunWithID(ctx context.Context, runID, raw string) iter.Seq[models.ProgressEvent] {
	return func(yield func(models.ProgressEvent) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		emit := func(e models.ProgressEvent) {
			if stopped {
				return
			}
			if ctx.Err() != nil {
				stopped = true
				return
			}
			if !yield(e) {
				stopped = true
				cancel()
			}
		}

		env, err := o.execute(ctx, runID, raw, emit)
		if stopped || ctx.Err() != nil {
			log.Printf("⏹️ 熟議 %s は中断されました", runID)
			return
		}
		if err != nil {
			log.Printf("❌ 熟議 %s が失敗しました: %v", runID, err)
			emit(failureEvent(err))
			return
		}
		log.Printf("✅ 熟議 %s が完了しました（総合点 %.0f / %s）", runID, env.FinalAssessment.TotalScore, env.FinalAssessment.Recommendation)
		emit(models.ProgressEvent{Type: models.EventComplete, Data: env})
	}
}

// Execute は熟議を最後まで実行して結果だけを返します。イベントは emit に渡します（nil 可）。
func (o *Orchestrator) Execute(ctx context.Context, runID, raw string, emit Emitter) (models.ResultEnvelope, error) {
	var (
		env    models.ResultEnvelope
		runErr error
	)
	for e := range o.RunWithID(ctx, runID, raw) {
		if emit != nil {
			emit(e)
		}
		switch e.Type {
		case models.EventComplete:
			env = e.Data.(models.ResultEnvelope)
		case models.EventError:
			p := e.Data.(models.ErrorPayload)
			runErr = &StageError{Stage: p.Stage, Kind: ErrorKind(p.Kind), Err: fmt.Errorf("%s", p.Message)}
		}
	}
	if runErr != nil {
		return models.ResultEnvelope{}, runErr
	}
	if err := ctx.Err(); err != nil {
		return models.ResultEnvelope{}, err
	}
	return env, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID, raw string, emit Emitter) (models.ResultEnvelope, error) {
	started := time.Now()
	input := strings.TrimSpace(raw)

	emit(models.ProgressEvent{Type: models.EventStatus, Data: models.StatusPayload{
		Stage: StageStart, Message: "熟議を開始します", RunID: runID,
	}})
	if input == "" {
		return models.ResultEnvelope{}, validationFailure(StageStart, "入力が空です")
	}
	log.Printf("🚀 熟議 %s を開始します: %s", runID, truncateRunes(input, 40))

	research, degraded, err := o.research.Run(ctx, input, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}
	demographics, err := o.demographics.Run(ctx, input, research, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}
	roster, err := o.planner.Run(ctx, input, research, demographics, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}
	draft, err := o.drafting.Draft(ctx, input, research, roster, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}
	reviewed, err := o.loop.Run(ctx, input, draft, roster.ReviewerAgent, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}
	final := reviewed.Draft

	evaluations, failed, err := o.evaluateCitizens(ctx, roster.CitizenAgents, final, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}
	futures, skipped, err := o.evaluateFuture(ctx, roster.CitizenAgents, final, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}

	assessment, err := o.scoring.Assess(ctx, final, evaluations, emit)
	if err != nil {
		return models.ResultEnvelope{}, err
	}

	futureCount := 0
	for _, f := range futures {
		if f.OK() {
			futureCount++
		}
	}
	return models.ResultEnvelope{
		RunID:              runID,
		Input:              input,
		ResearchResult:     research,
		Demographics:       demographics,
		AgentDefinitions:   roster,
		PolicyProposal:     final,
		ReviewResult:       reviewed.Verdict,
		CitizenEvaluations: evaluations,
		FutureEvaluations:  futures,
		FinalAssessment:    assessment,
		ExecutionStatus: models.ExecutionStatus{
			Completed:               true,
			ReviewAttempts:          reviewed.Attempts,
			Approved:                reviewed.Approved(),
			ReviewExhausted:         reviewed.State == StateExhausted,
			CitizenEvaluationCount:  len(evaluations) - failed,
			FailedEvaluationCount:   failed,
			FutureEvaluationCount:   futureCount,
			FutureEvaluationSkipped: skipped,
			ResearchDegraded:        degraded,
		},
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, nil
}

// evaluateCitizens は全市民の評価を並行に集め、名簿順に evaluation イベントを出します。
func (o *Orchestrator) evaluateCitizens(ctx context.Context, citizens []models.CitizenAgent, draft models.PolicyDraft, emit Emitter) ([]models.CitizenOutcome, int, error) {
	emit(models.Status(StageEvaluation, fmt.Sprintf("市民%d人が政策案を評価しています...", len(citizens))))

	outcomes := make([]models.CitizenOutcome, 0, len(citizens))
	failed := 0
	err := FanOut(ctx, len(citizens), o.opts.EvaluationConcurrency,
		func(ctx context.Context, i int, emit Emitter) (models.CitizenEvaluation, error) {
			return o.citizens.Evaluate(ctx, citizens[i], draft, emit)
		}, emit,
		func(i int, v models.CitizenEvaluation, err error) {
			outcome := models.Succeeded(i, v)
			if err != nil {
				failed++
				log.Printf("⚠️ %sの評価に失敗しました: %v", citizens[i].Name, err)
				outcome = models.Failed[models.CitizenEvaluation](i, citizens[i].Name, failureReason(err))
			}
			outcomes = append(outcomes, outcome)
			emit(models.ProgressEvent{Type: models.EventEvaluation, Data: outcome})
		})
	if err != nil {
		return nil, 0, err
	}

	emit(models.Status(StageEvaluation, batchSummary("市民評価", len(outcomes), failed)))
	return outcomes, failed, nil
}

// evaluateFuture は恒久的な施策のときだけ、名簿の先頭から将来評価を行います。
func (o *Orchestrator) evaluateFuture(ctx context.Context, citizens []models.CitizenAgent, draft models.PolicyDraft, emit Emitter) ([]models.FutureOutcome, bool, error) {
	if draft.IsTemporary {
		emit(models.Status(StageFutureEvaluation, "時限的な施策のため、10年後の評価は行いません"))
		return []models.FutureOutcome{}, true, nil
	}
	targets := citizens
	if limit := o.opts.FutureEvaluationLimit; limit > 0 && limit < len(targets) {
		targets = targets[:limit]
	}
	emit(models.Status(StageFutureEvaluation, fmt.Sprintf("%d人が10年後の視点で評価しています...", len(targets))))

	outcomes := make([]models.FutureOutcome, 0, len(targets))
	failed := 0
	err := FanOut(ctx, len(targets), o.opts.EvaluationConcurrency,
		func(ctx context.Context, i int, emit Emitter) (models.FutureEvaluation, error) {
			return o.future.Evaluate(ctx, targets[i], draft, emit)
		}, emit,
		func(i int, v models.FutureEvaluation, err error) {
			outcome := models.Succeeded(i, v)
			if err != nil {
				failed++
				log.Printf("⚠️ %sの将来評価に失敗しました: %v", targets[i].Name, err)
				outcome = models.Failed[models.FutureEvaluation](i, targets[i].Name, failureReason(err))
			}
			outcomes = append(outcomes, outcome)
			emit(models.ProgressEvent{Type: models.EventFutureEvaluation, Data: outcome})
		})
	if err != nil {
		return nil, false, err
	}

	emit(models.Status(StageFutureEvaluation, batchSummary("将来評価", len(outcomes), failed)))
	return outcomes, false, nil
}

func batchSummary(label string, total, failed int) string {
	if failed == 0 {
		return fmt.Sprintf("%sが完了しました（%d件）", label, total)
	}
	return fmt.Sprintf("%sが完了しました（成功%d件、失敗%d件: %s）", label, total-failed, failed, KindPartialBatchFailure)
}

// failureEvent は致命的なエラーを error イベントにします。
func failureEvent(err error) models.ProgressEvent {
	stage := StageOf(err)
	if stage == "" {
		stage = StageStart
	}
	kind := KindOf(err)
	if kind == "" {
		kind = "InternalError"
	}
	return models.Failure(stage, string(kind), err.Error())
}
