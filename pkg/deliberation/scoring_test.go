package deliberation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-deliberation-api/internal/agenttest"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

func citizenOutcomes(ratings ...int) []models.CitizenOutcome {
	out := make([]models.CitizenOutcome, len(ratings))
	for i, r := range ratings {
		out[i] = models.Succeeded(i, models.CitizenEvaluation{
			EvaluatorName: agenttest.CitizenName(i),
			OverallRating: models.FlexInt(r),
		})
	}
	return out
}

func TestEffectiveness(t *testing.T) {
	tests := []struct {
		name  string
		evals []models.CitizenOutcome
		want  float64
	}{
		{"平均×20", citizenOutcomes(5, 4, 3), 80},
		{"評価なし", nil, 50},
		{"範囲外のみ", citizenOutcomes(0, 6), 50},
		{"範囲外は除外", citizenOutcomes(5, 0, 3), 80},
		{"失敗は除外", append(citizenOutcomes(2), models.Failed[models.CitizenEvaluation](1, "市民01", "timeout")), 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Effectiveness(tt.evals), 1e-9)
		})
	}
}

func TestTotalScoreNormalisesByWeightSum(t *testing.T) {
	a := models.FinalAssessment{
		Equity:               models.DimensionScore{Score: 80},
		Effectiveness:        models.DimensionScore{Score: 80},
		Transparency:         models.DimensionScore{Score: 70},
		Sustainability:       models.DimensionScore{Score: 60},
		EthicalAcceptability: models.DimensionScore{Score: 90},
	}
	total := TotalScore(a)
	assert.Equal(t, 76.0, total)
	assert.Equal(t, models.RecommendationAdopt, Recommend(total))

	// 全観点が同じ点なら総合点も同じ
	for _, s := range []float64{0, 50, 100} {
		same := models.FinalAssessment{
			Equity: models.DimensionScore{Score: s}, Effectiveness: models.DimensionScore{Score: s},
			Transparency: models.DimensionScore{Score: s}, Sustainability: models.DimensionScore{Score: s},
			EthicalAcceptability: models.DimensionScore{Score: s},
		}
		assert.Equal(t, s, TotalScore(same))
	}
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, models.RecommendationAdopt, Recommend(100))
	assert.Equal(t, models.RecommendationAdopt, Recommend(70))
	assert.Equal(t, models.RecommendationConditional, Recommend(69))
	assert.Equal(t, models.RecommendationConditional, Recommend(50))
	assert.Equal(t, models.RecommendationReconsider, Recommend(49))
	assert.Equal(t, models.RecommendationReconsider, Recommend(0))
}

func TestAssessIgnoresAgentEffectiveness(t *testing.T) {
	agent := agenttest.New(func(p services.Persona, _ string) agenttest.Reply {
		return agenttest.Reply{Text: agenttest.Fence(agenttest.ScoringJSON(80, 70, 60, 90))}
	})
	stage := &ScoringStage{runner: testRunner(t, agent)}
	rec := &recorder{}

	a, err := stage.Assess(context.Background(), models.PolicyDraft{Title: "案"}, citizenOutcomes(5, 4, 3), rec.emit)
	require.NoError(t, err)

	assert.Equal(t, 80.0, a.Effectiveness.Score)
	assert.Equal(t, 80.0, a.Equity.Score)
	assert.Equal(t, 76.0, a.TotalScore)
	assert.Equal(t, models.RecommendationAdopt, a.Recommendation)
	require.Len(t, rec.ofType(models.EventFinalAssessment), 1)

	// 有効性の算出値がプロンプトに含まれる
	calls := agent.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instruction, "80")
}

func TestAssessFallsBackToNeutralScores(t *testing.T) {
	agent := agenttest.New(func(services.Persona, string) agenttest.Reply {
		return agenttest.Reply{Text: "採点できませんでした"}
	})
	stage := &ScoringStage{runner: testRunner(t, agent)}

	a, err := stage.Assess(context.Background(), models.PolicyDraft{}, nil, func(models.ProgressEvent) {})
	require.NoError(t, err)

	for _, d := range []models.DimensionScore{a.Equity, a.Effectiveness, a.Transparency, a.Sustainability, a.EthicalAcceptability} {
		assert.Equal(t, 50.0, d.Score)
	}
	assert.Equal(t, fallbackComment, a.Equity.Comment)
	assert.Equal(t, 50.0, a.TotalScore)
	assert.Equal(t, models.RecommendationConditional, a.Recommendation)
}

func TestAssessDimensionWithoutScoreIsNeutral(t *testing.T) {
	reply := `{"equity": {"comment": "判断材料が不足"}, "transparency": {"score": null}, "sustainability": {"score": 80, "comment": "継続性あり"}}`
	agent := agenttest.New(func(services.Persona, string) agenttest.Reply {
		return agenttest.Reply{Text: agenttest.Fence(reply)}
	})
	stage := &ScoringStage{runner: testRunner(t, agent)}

	a, err := stage.Assess(context.Background(), models.PolicyDraft{}, nil, func(models.ProgressEvent) {})
	require.NoError(t, err)

	assert.Equal(t, 50.0, a.Equity.Score)
	assert.Equal(t, fallbackComment, a.Equity.Comment)
	assert.Equal(t, 50.0, a.Transparency.Score)
	assert.Equal(t, 80.0, a.Sustainability.Score)
	assert.Equal(t, "継続性あり", a.Sustainability.Comment)
	assert.Equal(t, 50.0, a.EthicalAcceptability.Score)
}

func TestAssessAcceptsStringScores(t *testing.T) {
	reply := `{
		"equity": {"score": "80", "comment": "公平"},
		"transparency": {"score": "70点", "comment": "明確"},
		"sustainability": {"score": 60, "comment": "継続"},
		"ethicalAcceptability": {"score": "90", "comment": "妥当"}
	}`
	agent := agenttest.New(func(services.Persona, string) agenttest.Reply {
		return agenttest.Reply{Text: agenttest.Fence(reply)}
	})
	stage := &ScoringStage{runner: testRunner(t, agent)}

	a, err := stage.Assess(context.Background(), models.PolicyDraft{}, citizenOutcomes(4, 4), func(models.ProgressEvent) {})
	require.NoError(t, err)

	assert.Equal(t, 80.0, a.Equity.Score)
	assert.Equal(t, "公平", a.Equity.Comment)
	assert.Equal(t, 70.0, a.Transparency.Score)
	assert.Equal(t, 60.0, a.Sustainability.Score)
	assert.Equal(t, 90.0, a.EthicalAcceptability.Score)
	assert.Equal(t, 80.0, a.Effectiveness.Score)
	// (0.25*80 + 0.25*80 + 0.20*70 + 0.15*60 + 0.10*90) / 0.95 = 72/0.95
	assert.Equal(t, 76.0, a.TotalScore)
	assert.Equal(t, models.RecommendationAdopt, a.Recommendation)
}

func TestAssessClampsScores(t *testing.T) {
	agent := agenttest.New(func(services.Persona, string) agenttest.Reply {
		return agenttest.Reply{Text: agenttest.Fence(agenttest.ScoringJSON(150, -20, 60, 90))}
	})
	stage := &ScoringStage{runner: testRunner(t, agent)}

	a, err := stage.Assess(context.Background(), models.PolicyDraft{}, citizenOutcomes(4), func(models.ProgressEvent) {})
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.Equity.Score)
	assert.Equal(t, 0.0, a.Transparency.Score)
}
