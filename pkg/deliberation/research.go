package deliberation

import (
	"context"
	"log"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// ReferenceSource は過去に検討した類似提案を返します。
type ReferenceSource interface {
	SimilarProposals(ctx context.Context, text string, limit int) ([]string, error)
}

// ResearchStage 類似政策の調査
type ResearchStage struct {
	runner
	references ReferenceSource
}

type researchPrompt struct {
	Input string
	Hints []string
}

// Run は類似政策を調査します。抽出に失敗した場合は既定値で続行し、degraded を true にします。
func (s *ResearchStage) Run(ctx context.Context, input string, emit Emitter) (result models.ResearchResult, degraded bool, err error) {
	emit(models.Status(StageResearch, "類似政策を調査しています..."))

	var hints []string
	if s.references != nil {
		hints, err = s.references.SimilarProposals(ctx, input, 3)
		if err != nil {
			log.Printf("⚠️ 過去の提案の検索に失敗しました（調査は続行）: %v", err)
			hints = nil
		}
	}

	resp, err := s.generate(ctx, StageResearch, s.persona(services.RoleResearch), "research", researchPrompt{Input: input, Hints: hints}, emit)
	if err != nil {
		return models.ResearchResult{}, false, err
	}

	result = models.DefaultResearchResult()
	if !jsonutil.ExtractInto(resp.Text, &result) {
		log.Printf("⚠️ 調査結果を解析できませんでした。参考事例なしとして続行します")
		result = models.DefaultResearchResult()
		degraded = true
	}
	result = normalizeResearch(result)

	emit(models.ProgressEvent{Type: models.EventResearchResult, Data: result})
	return result, degraded, nil
}

func normalizeResearch(r models.ResearchResult) models.ResearchResult {
	out := models.ResearchResult{
		SimilarPolicies: make([]models.SimilarPolicy, 0, len(r.SimilarPolicies)),
		HasReferences:   r.HasReferences,
		SearchScope:     r.SearchScope,
	}
	for _, p := range r.SimilarPolicies {
		if p.PolicyName == "" && p.Municipality == "" {
			continue
		}
		out.SimilarPolicies = append(out.SimilarPolicies, p)
	}
	if len(out.SimilarPolicies) == 0 {
		out.HasReferences = false
	}
	switch out.SearchScope {
	case models.SearchScopeNational, models.SearchScopePrefecture, models.SearchScopeMunicipality, models.SearchScopeNone:
	default:
		if out.HasReferences {
			out.SearchScope = models.SearchScopeNational
		} else {
			out.SearchScope = models.SearchScopeNone
		}
	}
	return out
}
