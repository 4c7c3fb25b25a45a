package agenttest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"policy-deliberation-api/pkg/services"
)

// Scenario は一連の熟議を再現するための台本です。
type Scenario struct {
	Citizens      int            // 生成する市民エージェント数
	Approvals     []bool         // 審査の回ごとの承認可否（不足分は最後の値を使う）
	IsTemporary   bool           // 起草される政策案が時限的かどうか
	Ratings       []int          // 市民ごとの総合評価（不足分は 4）
	FailCitizens  map[int]bool   // 評価に失敗させる市民のインデックス
	CitizenDelays map[int]time.Duration
	Research      string // 空なら既定の調査結果
	Demographics  string // 空なら既定の人口統計
	Scoring       string // 空なら既定の総合評価
}

// NewScenarioAgent は台本どおりに応答する Agent を作成します。
func NewScenarioAgent(s Scenario) *Agent {
	var reviews atomic.Int32
	return New(func(p services.Persona, instruction string) Reply {
		switch p.Role {
		case services.RoleResearch:
			if s.Research != "" {
				return Reply{Text: s.Research}
			}
			return Reply{Text: Fence(ResearchJSON())}
		case services.RoleDemographics:
			if s.Demographics != "" {
				return Reply{Text: s.Demographics}
			}
			return Reply{Text: Fence(DemographicsJSON())}
		case services.RolePlanner:
			return Reply{Text: Fence(RosterJSON(s.Citizens))}
		case services.RoleDrafting:
			return Reply{Text: Fence(DraftJSON("子育て支援の所得制限撤廃", s.IsTemporary))}
		case services.RoleReview:
			n := int(reviews.Add(1))
			approved := false
			if len(s.Approvals) > 0 {
				idx := n - 1
				if idx >= len(s.Approvals) {
					idx = len(s.Approvals) - 1
				}
				approved = s.Approvals[idx]
			}
			return Reply{Text: Fence(ReviewJSON(approved))}
		case services.RoleEvaluation, services.RoleFutureEvaluation:
			idx := CitizenIndex(p.Name)
			reply := Reply{Delay: s.CitizenDelays[idx]}
			if s.FailCitizens[idx] {
				reply.Err = errors.New("connection reset by peer")
				return reply
			}
			rating := 4
			if idx >= 0 && idx < len(s.Ratings) {
				rating = s.Ratings[idx]
			}
			reply.Text = Fence(EvaluationJSON(p.Name, rating))
			return reply
		case services.RoleScoring:
			if s.Scoring != "" {
				return Reply{Text: s.Scoring}
			}
			return Reply{Text: Fence(ScoringJSON(80, 70, 60, 90))}
		}
		return Reply{Text: "unknown role"}
	})
}

// Fence は ```json フェンスで囲みます。
func Fence(body string) string {
	return "検討結果は次のとおりです。\n```json\n" + body + "\n```\n"
}

// CitizenName はインデックスから市民名を作ります。
func CitizenName(i int) string {
	return fmt.Sprintf("市民%02d", i)
}

// CitizenIndex は CitizenName の逆変換です。該当しなければ -1 を返します。
func CitizenIndex(name string) int {
	var i int
	if _, err := fmt.Sscanf(strings.TrimPrefix(name, "市民"), "%d", &i); err != nil {
		return -1
	}
	return i
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// ResearchJSON 既定の調査結果
func ResearchJSON() string {
	return mustJSON(map[string]any{
		"similarPolicies": []map[string]any{
			{"municipality": "明石市", "policyName": "5つの無料化", "summary": "所得制限なしの子育て支援", "results": "人口増加"},
		},
		"hasReferences": true,
		"searchScope":   "national",
	})
}

// DemographicsJSON 既定の人口統計
func DemographicsJSON() string {
	return mustJSON(map[string]any{
		"targetArea":      "東京都世田谷区",
		"ageDistribution": map[string]float64{"0-19": 18, "20-39": 30, "40-64": 33, "65+": 19},
		"genderRatio":     map[string]float64{"male": 48, "female": 52},
		"familyTypes":     []map[string]any{{"type": "夫婦と子", "percentage": 25}, {"type": "単身", "percentage": 45}},
		"dataSource":      "国勢調査",
		"dataScope":       "municipality",
	})
}

// RosterJSON 市民 n 人の参加者一覧
func RosterJSON(n int) string {
	citizens := make([]map[string]any, n)
	for i := range citizens {
		citizens[i] = map[string]any{
			"name":               CitizenName(i),
			"age":                fmt.Sprintf("%d歳", 25+i*3),
			"gender":             "女性",
			"family":             "夫婦と子ども1人",
			"profile":            "会社員",
			"isDirectlyAffected": i%2 == 0,
			"briefing":           "あなたは区内在住の会社員です。",
		}
	}
	return mustJSON(map[string]any{
		"policyAgents": []map[string]any{
			{"name": "福祉政策専門家", "expertise": "児童福祉", "briefing": "福祉の専門家として"},
			{"name": "財政専門家", "expertise": "自治体財政", "briefing": "財政の専門家として"},
		},
		"citizenAgents": citizens,
		"reviewerAgent": map[string]any{"name": "法務審査官", "expertise": "行政法", "briefing": "法務の観点から"},
	})
}

// DraftJSON 政策案
func DraftJSON(title string, temporary bool) string {
	return mustJSON(map[string]any{
		"title":              title,
		"summary":            "児童手当などの所得制限を撤廃する",
		"referencedPolicies": []string{"明石市 5つの無料化"},
		"problemAnalysis":    "所得制限により中間層が支援から外れている",
		"detail":             "区独自の上乗せ給付を所得に関係なく支給する",
		"implementationPlan": "来年度から段階的に実施",
		"expectedEffects":    "子育て世帯の定住促進",
		"isTemporary":        temporary,
	})
}

// ReviewJSON 審査結果
func ReviewJSON(approved bool) string {
	return mustJSON(map[string]any{
		"legalCompliance":        map[string]any{"score": 4, "issues": []string{}, "recommendations": []string{"条例改正が必要"}},
		"feasibility":            map[string]any{"score": "3", "issues": []string{"財源"}, "recommendations": []string{"財源の明示"}},
		"overallAssessment":      "概ね妥当",
		"approved":               approved,
		"improvementSuggestions": []string{"財源確保策を具体化する"},
	})
}

// EvaluationJSON 市民評価
func EvaluationJSON(name string, rating int) string {
	return mustJSON(map[string]any{
		"evaluatorName":    name,
		"overallRating":    rating,
		"personalImpact":   "家計の負担が軽くなる",
		"expectations":     "手続きの簡素化",
		"concerns":         "財源",
		"recommendations":  "周知を徹底する",
		"futureImpact":     "子どもの進学に備えられる",
		"longTermBenefits": "定住",
		"longTermConcerns": "将来の増税",
	})
}

// ScoringJSON 総合評価（有効性以外）
func ScoringJSON(equity, transparency, sustainability, ethical int) string {
	dim := func(score int) map[string]any {
		return map[string]any{"score": score, "comment": "評価コメント"}
	}
	return mustJSON(map[string]any{
		"equity":               dim(equity),
		"effectiveness":        dim(10),
		"transparency":         dim(transparency),
		"sustainability":       dim(sustainability),
		"ethicalAcceptability": dim(ethical),
	})
}
