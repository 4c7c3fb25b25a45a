package deliberation

import (
	"context"
	"fmt"
	"strings"

	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// ParticipantPlanner 熟議参加者の設計
type ParticipantPlanner struct {
	runner
}

type plannerPrompt struct {
	Input        string
	Research     string
	Demographics string
	MinCitizens  int
}

// Run は参加者一覧を生成します。市民が MinCitizenAgents 人未満なら実行全体が失敗します（再試行しない）。
func (s *ParticipantPlanner) Run(ctx context.Context, input string, research models.ResearchResult, demographics models.DemographicProfile, emit Emitter) (models.ParticipantRoster, error) {
	emit(models.Status(StageParticipants, "熟議の参加者を選定しています..."))

	resp, err := s.generate(ctx, StageParticipants, s.persona(services.RolePlanner), "planner", plannerPrompt{
		Input:        input,
		Research:     toJSON(research),
		Demographics: toJSON(demographics),
		MinCitizens:  models.MinCitizenAgents,
	}, emit)
	if err != nil {
		return models.ParticipantRoster{}, err
	}

	var roster models.ParticipantRoster
	if !jsonutil.ExtractInto(resp.Text, &roster) {
		return models.ParticipantRoster{}, extractionMiss(StageParticipants)
	}
	if err := ValidateRoster(roster); err != nil {
		return models.ParticipantRoster{}, err
	}
	roster = normalizeRoster(roster)

	emit(models.ProgressEvent{Type: models.EventAgentDefs, Data: roster})
	return roster, nil
}

// ValidateRoster は参加者一覧の前提条件を確認します。
func ValidateRoster(roster models.ParticipantRoster) error {
	if n := len(roster.CitizenAgents); n < models.MinCitizenAgents {
		return validationFailure(StageParticipants, "市民エージェントが%d人しかいません（%d人以上が必要）", n, models.MinCitizenAgents)
	}
	return nil
}

// normalizeRoster は名前の欠けた参加者を補います。
func normalizeRoster(in models.ParticipantRoster) models.ParticipantRoster {
	out := models.ParticipantRoster{
		PolicyAgents:  make([]models.PolicyAgent, len(in.PolicyAgents)),
		CitizenAgents: make([]models.CitizenAgent, len(in.CitizenAgents)),
		ReviewerAgent: in.ReviewerAgent,
	}
	copy(out.PolicyAgents, in.PolicyAgents)
	for i, c := range in.CitizenAgents {
		if strings.TrimSpace(c.Name) == "" {
			c.Name = fmt.Sprintf("市民%d", i+1)
		}
		out.CitizenAgents[i] = c
	}
	if strings.TrimSpace(out.ReviewerAgent.Name) == "" {
		out.ReviewerAgent.Name = "審査担当"
	}
	return out
}
