package deliberation

import (
	"context"
	"fmt"
	"math"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// 各観点の重み（合計 0.95 で、総合点はこの合計で正規化する）
const (
	WeightEquity               = 0.25
	WeightEffectiveness        = 0.25
	WeightTransparency         = 0.20
	WeightSustainability       = 0.15
	WeightEthicalAcceptability = 0.10

	weightSum = WeightEquity + WeightEffectiveness + WeightTransparency + WeightSustainability + WeightEthicalAcceptability

	neutralScore    = 50.0
	fallbackComment = "評価を取得できなかったため中立値を用いています"
)

// Effectiveness は有効な（1〜5の）市民評価の平均 × 20 を返します。有効な評価がなければ 50 です。
func Effectiveness(evals []models.CitizenOutcome) float64 {
	sum, n := 0, 0
	for _, o := range evals {
		if !o.OK() {
			continue
		}
		r := o.Value.OverallRating.Int()
		if r < 1 || r > 5 {
			continue
		}
		sum += r
		n++
	}
	if n == 0 {
		return neutralScore
	}
	return float64(sum) / float64(n) * 20
}

// TotalScore は重み付き合計を重みの合計で正規化し、整数点に丸めます。
func TotalScore(a models.FinalAssessment) float64 {
	weighted := WeightEquity*a.Equity.Score +
		WeightEffectiveness*a.Effectiveness.Score +
		WeightTransparency*a.Transparency.Score +
		WeightSustainability*a.Sustainability.Score +
		WeightEthicalAcceptability*a.EthicalAcceptability.Score
	return math.Round(weighted / weightSum)
}

// Recommend は総合点から推奨区分を決めます。
func Recommend(total float64) models.Recommendation {
	switch {
	case total >= 70:
		return models.RecommendationAdopt
	case total >= 50:
		return models.RecommendationConditional
	default:
		return models.RecommendationReconsider
	}
}

// ScoringStage 総合評価
type ScoringStage struct {
	runner
}

type scoringPrompt struct {
	Effectiveness float64
	Draft         string
	Evaluations   []string
}

// scoringReply 生成結果のうち採用する観点（有効性は受け取っても使わない）
type scoringReply struct {
	Equity               *dimensionReply `json:"equity"`
	Transparency         *dimensionReply `json:"transparency"`
	Sustainability       *dimensionReply `json:"sustainability"`
	EthicalAcceptability *dimensionReply `json:"ethicalAcceptability"`
}

// dimensionReply は score の有無を区別する（"80" のような文字列も受け付ける）
type dimensionReply struct {
	Score   *models.FlexFloat `json:"score"`
	Comment string            `json:"comment"`
}

// Assess は総合評価を算出します。有効性は市民評価から計算した値で固定します。
func (s *ScoringStage) Assess(ctx context.Context, draft models.PolicyDraft, evals []models.CitizenOutcome, emit Emitter) (models.FinalAssessment, error) {
	emit(models.Status(StageScoring, "総合評価を算出しています..."))

	eff := Effectiveness(evals)
	lines := make([]string, 0, len(evals))
	for _, o := range evals {
		if !o.OK() {
			continue
		}
		e := o.Value
		lines = append(lines, fmt.Sprintf("%s（評価%d）: 期待「%s」 懸念「%s」",
			e.EvaluatorName, e.OverallRating.Int(), truncateRunes(e.Expectations, 80), truncateRunes(e.Concerns, 80)))
	}

	resp, err := s.generate(ctx, StageScoring, s.persona(services.RoleScoring), "scoring", scoringPrompt{
		Effectiveness: eff,
		Draft:         draftDigest(draft),
		Evaluations:   lines,
	}, emit)
	if err != nil {
		return models.FinalAssessment{}, err
	}

	var reply scoringReply
	jsonutil.ExtractInto(resp.Text, &reply)

	a := models.FinalAssessment{
		Equity: dimension(reply.Equity),
		Effectiveness: models.DimensionScore{
			Score:   eff,
			Comment: fmt.Sprintf("市民%d人中%d人の評価から算出", len(evals), countValid(evals)),
		},
		Transparency:         dimension(reply.Transparency),
		Sustainability:       dimension(reply.Sustainability),
		EthicalAcceptability: dimension(reply.EthicalAcceptability),
	}
	a.TotalScore = TotalScore(a)
	a.Recommendation = Recommend(a.TotalScore)

	emit(models.ProgressEvent{Type: models.EventFinalAssessment, Data: a})
	return a, nil
}

// dimension は観点または score が欠けていれば中立値を返します。
func dimension(d *dimensionReply) models.DimensionScore {
	if d == nil || d.Score == nil {
		return models.DimensionScore{Score: neutralScore, Comment: fallbackComment}
	}
	return models.DimensionScore{Score: math.Max(0, math.Min(100, d.Score.Float())), Comment: d.Comment}
}

func countValid(evals []models.CitizenOutcome) int {
	n := 0
	for _, o := range evals {
		if o.OK() {
			if r := o.Value.OverallRating.Int(); r >= 1 && r <= 5 {
				n++
			}
		}
	}
	return n
}
