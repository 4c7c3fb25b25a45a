package deliberation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/internal/agenttest"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

const sampleInput = "子育て支援の所得制限を撤廃して欲しい"

func testPrompts(t *testing.T) *config.PromptCatalog {
	t.Helper()
	catalog, err := config.LoadPrompts("")
	require.NoError(t, err)
	return catalog
}

func testRunner(t *testing.T, agent services.Agent) runner {
	t.Helper()
	return runner{agent: agent, prompts: testPrompts(t)}
}

func testOrchestrator(t *testing.T, agent services.Agent) *Orchestrator {
	t.Helper()
	return New(agent, testPrompts(t), Options{EvaluationConcurrency: 4, FutureEvaluationLimit: 5})
}

// recorder は Emitter に渡されたイベントを記録します。
type recorder struct {
	events []models.ProgressEvent
}

func (r *recorder) emit(e models.ProgressEvent) {
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t models.EventType) []models.ProgressEvent {
	var out []models.ProgressEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func collect(ctx context.Context, o *Orchestrator, input string) []models.ProgressEvent {
	var events []models.ProgressEvent
	for e := range o.Run(ctx, input) {
		events = append(events, e)
	}
	return events
}

// milestones は status と stream を除いたイベント種別の列を返します。
func milestones(events []models.ProgressEvent) []models.EventType {
	var out []models.EventType
	for _, e := range events {
		if e.Type == models.EventStatus || e.Type == models.EventStream {
			continue
		}
		out = append(out, e.Type)
	}
	return out
}

func countType(events []models.ProgressEvent, t models.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func lastEvent(t *testing.T, events []models.ProgressEvent) models.ProgressEvent {
	t.Helper()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func roster(n int) models.ParticipantRoster {
	citizens := make([]models.CitizenAgent, n)
	for i := range citizens {
		citizens[i] = models.CitizenAgent{
			Name:     agenttest.CitizenName(i),
			Age:      models.FlexInt(30 + i),
			Family:   "単身",
			Profile:  "会社員",
			Briefing: "区内在住",
		}
	}
	return models.ParticipantRoster{
		PolicyAgents:  []models.PolicyAgent{{Name: "財政専門家", Expertise: "自治体財政"}},
		CitizenAgents: citizens,
		ReviewerAgent: models.ReviewerAgent{Name: "法務審査官"},
	}
}
