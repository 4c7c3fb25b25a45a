package models

import "encoding/json"

// EvaluationError 評価に失敗した参加者のプレースホルダー
type EvaluationError struct {
	EvaluatorName string `json:"evaluatorName"`
	Error         string `json:"error"`
}

// Outcome は参加者ごとの評価結果で、Value と Failure のどちらか一方だけを持ちます。
type Outcome[T any] struct {
	Index   int
	Value   *T
	Failure *EvaluationError
}

// Succeeded 成功した評価を包む
func Succeeded[T any](index int, v T) Outcome[T] {
	return Outcome[T]{Index: index, Value: &v}
}

// Failed 失敗した評価を包む
func Failed[T any](index int, evaluatorName, reason string) Outcome[T] {
	return Outcome[T]{Index: index, Failure: &EvaluationError{EvaluatorName: evaluatorName, Error: reason}}
}

// OK は評価が成功したかを返します。
func (o Outcome[T]) OK() bool {
	return o.Value != nil
}

// MarshalJSON は成功時は評価本体、失敗時は {evaluatorName, error} を出力します。
func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Value != nil {
		return json.Marshal(o.Value)
	}
	if o.Failure != nil {
		return json.Marshal(o.Failure)
	}
	return []byte("null"), nil
}

// UnmarshalJSON は "error" キーの有無で成功・失敗を判別します。
func (o *Outcome[T]) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, isErr := probe["error"]; isErr {
		var f EvaluationError
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		o.Value, o.Failure = nil, &f
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value, o.Failure = &v, nil
	return nil
}

// CitizenOutcome 市民評価の結果
type CitizenOutcome = Outcome[CitizenEvaluation]

// FutureOutcome 将来評価の結果
type FutureOutcome = Outcome[FutureEvaluation]
