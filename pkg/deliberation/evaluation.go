package deliberation

import (
	"context"
	"fmt"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// futureYears 将来評価で想定する経過年数
const futureYears = 10

// CitizenEvaluator 市民による政策案の評価
type CitizenEvaluator struct {
	runner
}

type evaluationPrompt struct {
	Name     string
	Age      int
	Gender   string
	Family   string
	Profile  string
	Affected bool
	Draft    string
}

// Evaluate は1人の市民として政策案を評価します。
// 評価者名と影響の有無は参加者一覧の値を正とします。
func (s *CitizenEvaluator) Evaluate(ctx context.Context, citizen models.CitizenAgent, draft models.PolicyDraft, emit Emitter) (models.CitizenEvaluation, error) {
	persona := s.participant(services.RoleEvaluation, citizen.Name, citizen.Briefing)
	resp, err := s.generate(ctx, StageEvaluation, persona, "evaluation", evaluationPrompt{
		Name:     citizen.Name,
		Age:      citizen.Age.Int(),
		Gender:   citizen.Gender,
		Family:   citizen.Family,
		Profile:  citizen.Profile,
		Affected: citizen.IsDirectlyAffected.Bool(),
		Draft:    draftDigest(draft),
	}, emit)
	if err != nil {
		return models.CitizenEvaluation{}, err
	}

	var eval models.CitizenEvaluation
	if !jsonutil.ExtractInto(resp.Text, &eval) {
		return models.CitizenEvaluation{}, extractionMiss(StageEvaluation)
	}
	eval.EvaluatorName = citizen.Name
	eval.IsDirectlyAffected = citizen.IsDirectlyAffected
	eval.OverallRating = clampRating(eval.OverallRating)
	return eval, nil
}

// FutureEvaluator 10年後の視点からの評価
type FutureEvaluator struct {
	runner
}

type futureEvaluationPrompt struct {
	Name    string
	AgeNow  int
	Family  string
	Profile string
	Draft   string
}

// Evaluate は10年後の立場で政策案を評価します。
func (s *FutureEvaluator) Evaluate(ctx context.Context, citizen models.CitizenAgent, draft models.PolicyDraft, emit Emitter) (models.FutureEvaluation, error) {
	ageNow := citizen.Age.Int() + futureYears
	persona := s.participant(services.RoleFutureEvaluation, citizen.Name, citizen.Briefing)
	resp, err := s.generate(ctx, StageFutureEvaluation, persona, "futureEvaluation", futureEvaluationPrompt{
		Name:    citizen.Name,
		AgeNow:  ageNow,
		Family:  citizen.Family,
		Profile: citizen.Profile,
		Draft:   draftDigest(draft),
	}, emit)
	if err != nil {
		return models.FutureEvaluation{}, err
	}

	var eval models.FutureEvaluation
	if !jsonutil.ExtractInto(resp.Text, &eval) {
		return models.FutureEvaluation{}, extractionMiss(StageFutureEvaluation)
	}
	eval.EvaluatorName = citizen.Name
	eval.AgeNow = models.FlexInt(ageNow)
	eval.IsDirectlyAffected = citizen.IsDirectlyAffected
	eval.OverallRating = clampRating(eval.OverallRating)
	return eval, nil
}

// failureReason は評価失敗をクライアント向けの文言にします。
func failureReason(err error) string {
	switch KindOf(err) {
	case KindExtractionMiss:
		return "評価結果を解析できませんでした"
	case KindGenerationTransport:
		return fmt.Sprintf("評価の生成に失敗しました: %v", err)
	default:
		return err.Error()
	}
}
