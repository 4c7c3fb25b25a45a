package models

// EventType 進捗イベントの種別
type EventType string

const (
	EventStatus           EventType = "status"
	EventStream           EventType = "stream"
	EventResearchResult   EventType = "researchResult"
	EventDemographics     EventType = "demographics"
	EventAgentDefs        EventType = "agentDefs"
	EventPolicy           EventType = "policy"
	EventReview           EventType = "review"
	EventReviewFinal      EventType = "reviewFinal"
	EventEvaluation       EventType = "evaluation"
	EventFutureEvaluation EventType = "futureEvaluation"
	EventFinalAssessment  EventType = "finalAssessment"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"
)

// ProgressEvent はクライアントへ順番に送られる進捗イベントです。
// ネットワーク越しには {"type": ..., "data": ...} の1オブジェクトとして送ります。
type ProgressEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// StatusPayload 進捗メッセージ
type StatusPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	RunID   string `json:"runId,omitempty"` // 最初のイベントにのみ付与
}

// StreamPayload エージェントの生成テキスト断片
type StreamPayload struct {
	Stage   string `json:"stage"`
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// ErrorPayload 致命的なエラー
type ErrorPayload struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Status 進捗イベントを作成
func Status(stage, message string) ProgressEvent {
	return ProgressEvent{Type: EventStatus, Data: StatusPayload{Stage: stage, Message: message}}
}

// Stream 生成テキスト断片のイベントを作成
func Stream(stage, agent, content string) ProgressEvent {
	return ProgressEvent{Type: EventStream, Data: StreamPayload{Stage: stage, Agent: agent, Content: content}}
}

// Failure エラーイベントを作成
func Failure(stage, kind, message string) ProgressEvent {
	return ProgressEvent{Type: EventError, Data: ErrorPayload{Stage: stage, Kind: kind, Message: message}}
}

// Terminal は complete / error のどちらかであれば true を返します。
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
