package deliberation

import (
	"context"
	"fmt"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// ReviewStage 法令適合性・実現可能性の審査
type ReviewStage struct {
	runner
}

type reviewPrompt struct {
	Draft   string
	Attempt int
}

// Run は政策案を審査します。抽出できなければ承認しない（fail-closed）。
func (s *ReviewStage) Run(ctx context.Context, draft models.PolicyDraft, reviewer models.ReviewerAgent, attempt int, emit Emitter) (models.ReviewVerdict, error) {
	emit(models.Status(StageReview, fmt.Sprintf("%sが政策案を審査しています（第%d回）...", reviewer.Name, attempt)))

	persona := s.participant(services.RoleReview, reviewer.Name, reviewer.Briefing)
	resp, err := s.generate(ctx, StageReview, persona, "review", reviewPrompt{Draft: toJSON(draft), Attempt: attempt}, emit)
	if err != nil {
		return models.ReviewVerdict{}, err
	}

	var verdict models.ReviewVerdict
	if !jsonutil.ExtractInto(resp.Text, &verdict) {
		verdict = models.ReviewVerdict{
			OverallAssessment:      "審査結果を解析できなかったため、承認されていません。",
			Approved:               false,
			ImprovementSuggestions: []string{},
		}
	}
	verdict.LegalCompliance.Score = clampRating(verdict.LegalCompliance.Score)
	verdict.Feasibility.Score = clampRating(verdict.Feasibility.Score)
	verdict.Attempt = attempt

	emit(models.ProgressEvent{Type: models.EventReview, Data: verdict})
	return verdict, nil
}

// clampRating は 1〜5 の範囲外を 0（未評価）にします。
func clampRating(v models.FlexInt) models.FlexInt {
	if v < 1 || v > 5 {
		return 0
	}
	return v
}
