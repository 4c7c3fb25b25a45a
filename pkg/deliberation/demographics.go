package deliberation

import (
	"context"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// DemographicsStage 対象地域の人口構成の推定
type DemographicsStage struct {
	runner
}

type demographicsPrompt struct {
	Input    string
	Research string
}

// Run は人口構成を推定します。抽出できなければ実行全体が失敗します。
func (s *DemographicsStage) Run(ctx context.Context, input string, research models.ResearchResult, emit Emitter) (models.DemographicProfile, error) {
	emit(models.Status(StageDemographics, "対象地域の人口構成を分析しています..."))

	resp, err := s.generate(ctx, StageDemographics, s.persona(services.RoleDemographics), "demographics",
		demographicsPrompt{Input: input, Research: toJSON(research)}, emit)
	if err != nil {
		return models.DemographicProfile{}, err
	}

	var profile models.DemographicProfile
	if !jsonutil.ExtractInto(resp.Text, &profile) {
		return models.DemographicProfile{}, extractionMiss(StageDemographics)
	}
	if profile.DataScope == "" {
		profile.DataScope = models.DataScopeEstimated
	}

	emit(models.ProgressEvent{Type: models.EventDemographics, Data: profile})
	return profile, nil
}
