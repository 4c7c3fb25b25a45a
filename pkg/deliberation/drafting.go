package deliberation

import (
	"context"
	"fmt"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// DraftingStage 政策案の起草と改訂
type DraftingStage struct {
	runner
}

type draftingPrompt struct {
	Input        string
	Research     string
	PolicyAgents []models.PolicyAgent
}

type revisionPrompt struct {
	Input         string
	PreviousDraft string
	Assessment    string
	Suggestions   []string
	Attempt       int
}

// Draft は最初の政策案を起草します。
func (s *DraftingStage) Draft(ctx context.Context, input string, research models.ResearchResult, roster models.ParticipantRoster, emit Emitter) (models.PolicyDraft, error) {
	emit(models.Status(StageDrafting, "専門家が政策案を起草しています..."))

	resp, err := s.generate(ctx, StageDrafting, s.persona(services.RoleDrafting), "drafting", draftingPrompt{
		Input:        input,
		Research:     toJSON(research),
		PolicyAgents: roster.PolicyAgents,
	}, emit)
	if err != nil {
		return models.PolicyDraft{}, err
	}
	return parseDraft(resp.Text, 1, false, nil), nil
}

// Revise は審査結果を踏まえた新しい政策案を作ります。prev は変更しません。
func (s *DraftingStage) Revise(ctx context.Context, input string, prev models.PolicyDraft, verdict models.ReviewVerdict, emit Emitter) (models.PolicyDraft, error) {
	attempt := prev.Attempt + 1
	emit(models.Status(StageDrafting, fmt.Sprintf("審査の指摘を反映して政策案を改訂しています（第%d版）...", attempt)))

	suggestions := verdict.ImprovementSuggestions
	if len(suggestions) == 0 {
		suggestions = append(append([]string{}, verdict.LegalCompliance.Recommendations...), verdict.Feasibility.Recommendations...)
	}
	resp, err := s.generate(ctx, StageDrafting, s.persona(services.RoleDrafting), "revision", revisionPrompt{
		Input:         input,
		PreviousDraft: toJSON(prev),
		Assessment:    verdict.OverallAssessment,
		Suggestions:   suggestions,
		Attempt:       attempt,
	}, emit)
	if err != nil {
		return models.PolicyDraft{}, err
	}
	return parseDraft(resp.Text, attempt, true, &prev), nil
}

// parseDraft は生成結果を政策案にします。抽出できない場合は本文をそのまま包んだ非構造の案にします。
func parseDraft(text string, attempt int, improved bool, prev *models.PolicyDraft) models.PolicyDraft {
	var draft models.PolicyDraft
	if !jsonutil.ExtractInto(text, &draft) {
		draft = models.PolicyDraft{
			Title:        "政策案（非構造化）",
			Summary:      truncateRunes(text, 200),
			Detail:       text,
			Unstructured: true,
			RawText:      text,
		}
		if prev != nil {
			draft.Title = prev.Title
			draft.IsTemporary = prev.IsTemporary
		}
	}
	if draft.Title == "" && prev != nil {
		draft.Title = prev.Title
	}
	if draft.ReferencedPolicies == nil {
		draft.ReferencedPolicies = []string{}
	}
	draft.Attempt = attempt
	draft.Improved = improved
	return draft
}
