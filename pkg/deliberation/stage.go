package deliberation

import (
	"context"
	"fmt"
	"strings"

	config "policy-deliberation-api/configs"
	"policy-deliberation-api/pkg/jsonutil"
	"policy-deliberation-api/pkg/models"
	"policy-deliberation-api/pkg/services"
)

// Emitter は進捗イベントを外側のストリームへ送ります。
type Emitter func(models.ProgressEvent)

// ステージ名（イベントとエラーに載せる）
const (
	StageStart            = "start"
	StageResearch         = "research"
	StageDemographics     = "demographics"
	StageParticipants     = "participants"
	StageDrafting         = "drafting"
	StageReview           = "review"
	StageEvaluation       = "evaluation"
	StageFutureEvaluation = "futureEvaluation"
	StageScoring          = "scoring"
)

// runner はステージ共通の生成呼び出しをまとめたものです。
type runner struct {
	agent   services.Agent
	prompts *config.PromptCatalog
}

// persona は固定ペルソナを作ります。
func (r runner) persona(role string) services.Persona {
	p := r.prompts.Persona(role)
	return services.Persona{Role: role, Name: p.Name, Briefing: p.Briefing}
}

// participant は参加者固有のブリーフィングでペルソナを作ります。
func (r runner) participant(role, name, briefing string) services.Persona {
	return services.Persona{Role: role, Name: name, Briefing: r.prompts.Briefing(briefing)}
}

// generate は指示を展開して生成を呼び出し、断片を stream イベントとして流します。
func (r runner) generate(ctx context.Context, stage string, persona services.Persona, template string, data any, emit Emitter) (services.Response, error) {
	instruction, err := r.prompts.Render(template, data)
	if err != nil {
		return services.Response{}, fmt.Errorf("%s: %w", stage, err)
	}
	resp, err := services.Collect(ctx, r.agent, persona, instruction, func(chunk string) {
		emit(models.Stream(stage, persona.Name, chunk))
	})
	if err != nil {
		return services.Response{}, stageFailure(stage, err)
	}
	return resp, nil
}

// toJSON はプロンプトに埋め込むためにJSON文字列化します。
func toJSON(v any) string {
	b, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// truncateRunes は n 文字を超える部分を切り詰めます。
func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// draftDigest は評価・審査に渡す政策案の要約です。
func draftDigest(d models.PolicyDraft) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "タイトル: %s\n", d.Title)
	fmt.Fprintf(&sb, "概要: %s\n", d.Summary)
	if d.ProblemAnalysis != "" {
		fmt.Fprintf(&sb, "課題分析: %s\n", d.ProblemAnalysis)
	}
	if d.Detail != "" {
		fmt.Fprintf(&sb, "詳細: %s\n", d.Detail)
	}
	if d.ImplementationPlan != "" {
		fmt.Fprintf(&sb, "実施計画: %s\n", d.ImplementationPlan)
	}
	if d.ExpectedEffects != "" {
		fmt.Fprintf(&sb, "期待される効果: %s\n", d.ExpectedEffects)
	}
	if d.IsTemporary {
		sb.WriteString("期間: 時限的な施策\n")
	} else {
		sb.WriteString("期間: 恒久的な施策\n")
	}
	return sb.String()
}
