package models

import "time"

// MinCitizenAgents 市民エージェントの最低人数
const MinCitizenAgents = 10

// DeliberationRequest 熟議の開始リクエスト
type DeliberationRequest struct {
	Input string `json:"input" binding:"required"` // 市民の自由記述
}

// SearchScope 類似政策の調査範囲
type SearchScope string

const (
	SearchScopeNational     SearchScope = "national"     // 全国
	SearchScopePrefecture   SearchScope = "prefecture"   // 都道府県
	SearchScopeMunicipality SearchScope = "municipality" // 市区町村
	SearchScopeNone         SearchScope = "none"         // 参考事例なし
)

// SimilarPolicy 他自治体の類似政策
type SimilarPolicy struct {
	Municipality string `json:"municipality"` // 自治体名
	PolicyName   string `json:"policyName"`   // 政策名
	Summary      string `json:"summary"`      // 概要
	Results      string `json:"results"`      // 実施結果
}

// ResearchResult 類似政策調査の結果
type ResearchResult struct {
	SimilarPolicies []SimilarPolicy `json:"similarPolicies"`
	HasReferences   FlexBool        `json:"hasReferences"`
	SearchScope     SearchScope     `json:"searchScope"`
}

// DefaultResearchResult 調査結果を取得できなかった場合の既定値
func DefaultResearchResult() ResearchResult {
	return ResearchResult{
		SimilarPolicies: []SimilarPolicy{},
		HasReferences:   false,
		SearchScope:     SearchScopeNone,
	}
}

// DataScope 人口統計データの粒度
type DataScope string

const (
	DataScopeMunicipality DataScope = "municipality"
	DataScopePrefecture   DataScope = "prefecture"
	DataScopeNational     DataScope = "national"
	DataScopeEstimated    DataScope = "estimated"
)

// FamilyType 世帯構成の内訳
type FamilyType struct {
	Type       string    `json:"type"`
	Percentage FlexFloat `json:"percentage"`
}

// DemographicProfile 対象地域の人口構成（割合は目安であり合計100を保証しない）
type DemographicProfile struct {
	TargetArea      string               `json:"targetArea"`
	AgeDistribution map[string]FlexFloat `json:"ageDistribution"`
	GenderRatio     map[string]FlexFloat `json:"genderRatio"`
	FamilyTypes     []FamilyType         `json:"familyTypes"`
	DataSource      string               `json:"dataSource"`
	DataScope       DataScope            `json:"dataScope"`
}

// PolicyAgent 政策立案に参加する専門家
type PolicyAgent struct {
	Name      string `json:"name"`
	Expertise string `json:"expertise"`
	Briefing  string `json:"briefing"`
}

// CitizenAgent 評価に参加する市民
type CitizenAgent struct {
	Name               string   `json:"name"`
	Age                FlexInt  `json:"age"`
	Gender             string   `json:"gender"`
	Family             string   `json:"family"`
	Profile            string   `json:"profile"`
	IsDirectlyAffected FlexBool `json:"isDirectlyAffected"`
	Briefing           string   `json:"briefing"`
}

// ReviewerAgent 法務・実現可能性の審査担当
type ReviewerAgent struct {
	Name      string `json:"name"`
	Expertise string `json:"expertise"`
	Briefing  string `json:"briefing"`
}

// ParticipantRoster 熟議の参加者一覧
type ParticipantRoster struct {
	PolicyAgents  []PolicyAgent  `json:"policyAgents"`
	CitizenAgents []CitizenAgent `json:"citizenAgents"`
	ReviewerAgent ReviewerAgent  `json:"reviewerAgent"`
}

// PolicyDraft 政策案
type PolicyDraft struct {
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	ReferencedPolicies []string `json:"referencedPolicies"`
	ProblemAnalysis    string   `json:"problemAnalysis"`
	Detail             string   `json:"detail"`
	ImplementationPlan string   `json:"implementationPlan"`
	ExpectedEffects    string   `json:"expectedEffects"`
	IsTemporary        FlexBool `json:"isTemporary"` // 時限的な施策かどうか
	Attempt            int      `json:"attempt"`     // 何回目の起草か（1始まり）
	Improved           bool     `json:"improved"`    // 審査指摘を反映した改訂版か
	Unstructured       bool     `json:"unstructured,omitempty"`
	RawText            string   `json:"rawText,omitempty"`
}

// ReviewAspect 審査観点ごとの評価
type ReviewAspect struct {
	Score           FlexInt  `json:"score"` // 1-5
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ReviewVerdict 審査結果
type ReviewVerdict struct {
	LegalCompliance        ReviewAspect `json:"legalCompliance"`
	Feasibility            ReviewAspect `json:"feasibility"`
	OverallAssessment      string       `json:"overallAssessment"`
	Approved               FlexBool     `json:"approved"`
	ImprovementSuggestions []string     `json:"improvementSuggestions"`
	Attempt                int          `json:"attempt"`
}

// CitizenEvaluation 市民による評価
type CitizenEvaluation struct {
	EvaluatorName      string   `json:"evaluatorName"`
	OverallRating      FlexInt  `json:"overallRating"` // 1-5
	PersonalImpact     string   `json:"personalImpact"`
	Expectations       string   `json:"expectations"`
	Concerns           string   `json:"concerns"`
	Recommendations    string   `json:"recommendations"`
	IsDirectlyAffected FlexBool `json:"isDirectlyAffected"`
}

// FutureEvaluation 10年後の視点からの評価
type FutureEvaluation struct {
	EvaluatorName      string   `json:"evaluatorName"`
	AgeNow             FlexInt  `json:"ageNow"` // 評価時点の年齢 + 10
	OverallRating      FlexInt  `json:"overallRating"`
	FutureImpact       string   `json:"futureImpact"`
	LongTermBenefits   string   `json:"longTermBenefits"`
	LongTermConcerns   string   `json:"longTermConcerns"`
	Recommendations    string   `json:"recommendations"`
	IsDirectlyAffected FlexBool `json:"isDirectlyAffected"`
}

// DimensionScore 総合評価の各観点（0-100）
type DimensionScore struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// Recommendation 総合評価に基づく推奨区分
type Recommendation string

const (
	RecommendationAdopt       Recommendation = "推奨"
	RecommendationConditional Recommendation = "条件付き推奨"
	RecommendationReconsider  Recommendation = "再検討推奨"
)

// FinalAssessment 総合評価
type FinalAssessment struct {
	Equity               DimensionScore `json:"equity"`
	Effectiveness        DimensionScore `json:"effectiveness"`
	Transparency         DimensionScore `json:"transparency"`
	Sustainability       DimensionScore `json:"sustainability"`
	EthicalAcceptability DimensionScore `json:"ethicalAcceptability"`
	TotalScore           float64        `json:"totalScore"`
	Recommendation       Recommendation `json:"recommendation"`
}

// ExecutionStatus 実行状況のサマリー
type ExecutionStatus struct {
	Completed               bool `json:"completed"`
	ReviewAttempts          int  `json:"reviewAttempts"`
	Approved                bool `json:"approved"`
	ReviewExhausted         bool `json:"reviewExhausted"`
	CitizenEvaluationCount  int  `json:"citizenEvaluationCount"`
	FailedEvaluationCount   int  `json:"failedEvaluationCount"`
	FutureEvaluationCount   int  `json:"futureEvaluationCount"`
	FutureEvaluationSkipped bool `json:"futureEvaluationSkipped"`
	ResearchDegraded        bool `json:"researchDegraded"`
}

// ResultEnvelope 熟議の最終成果物
type ResultEnvelope struct {
	RunID              string             `json:"runId"`
	Input              string             `json:"input"`
	ResearchResult     ResearchResult     `json:"researchResult"`
	Demographics       DemographicProfile `json:"demographics"`
	AgentDefinitions   ParticipantRoster  `json:"agentDefinitions"`
	PolicyProposal     PolicyDraft        `json:"policyProposal"`
	ReviewResult       ReviewVerdict      `json:"reviewResult"`
	CitizenEvaluations []CitizenOutcome   `json:"citizenEvaluations"`
	FutureEvaluations  []FutureOutcome    `json:"futureEvaluations"`
	FinalAssessment    FinalAssessment    `json:"finalAssessment"`
	ExecutionStatus    ExecutionStatus    `json:"executionStatus"`
	StartedAt          time.Time          `json:"startedAt"`
	FinishedAt         time.Time          `json:"finishedAt"`
}
