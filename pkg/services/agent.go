package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"policy-deliberation-api/pkg/jsonutil"
)

// Persona は生成呼び出しの役割（誰として答えるか）を表します。
type Persona struct {
	Role     string // 呼び出し元のステージ（research, review など）
	Name     string
	Briefing string
}

// Agent は外部のテキスト生成機能です。
// Generate が返すシーケンスは一度だけ消費でき、完了通知で終わります。
// 途中でループを抜けると下位のトランスポートは解放されます。
type Agent interface {
	Generate(ctx context.Context, persona Persona, instruction string) iter.Seq2[string, error]
}

// ErrGeneration は GenerationError を errors.Is で判定するための番兵です。
var ErrGeneration = errors.New("generation failed")

// GenerationError は生成機能に到達できない、タイムアウトした、またはトランスポートエラーを返したことを表します。
type GenerationError struct {
	Persona string
	Timeout bool
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("生成呼び出しがタイムアウトしました (%s): %v", e.Persona, e.Err)
	}
	return fmt.Sprintf("生成呼び出しに失敗しました (%s): %v", e.Persona, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is は ErrGeneration との比較を可能にします。
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// ResponseKind 生成結果の形
type ResponseKind int

const (
	PlainText ResponseKind = iota
	StructuredEnvelope
)

// Response は呼び出し直後に一度だけ解決された生成結果です。
type Response struct {
	Kind ResponseKind
	Text string
	Raw  string
}

// ResolveResponse はAPIレスポンス形式（エンベロープ）か素のテキストかを判別します。
func ResolveResponse(raw string) Response {
	if inner, ok := jsonutil.UnwrapEnvelope(raw); ok {
		return Response{Kind: StructuredEnvelope, Text: inner, Raw: raw}
	}
	return Response{Kind: PlainText, Text: raw, Raw: raw}
}

// Collect は生成結果を最後まで読み、断片ごとに onChunk を呼びます。
// エラーは常に *GenerationError として返します（呼び出し元のキャンセルを除く）。
func Collect(ctx context.Context, agent Agent, persona Persona, instruction string, onChunk func(string)) (Response, error) {
	var sb strings.Builder
	for chunk, err := range agent.Generate(ctx, persona, instruction) {
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			var genErr *GenerationError
			if errors.As(err, &genErr) {
				return Response{}, err
			}
			return Response{}, &GenerationError{Persona: persona.Name, Err: err}
		}
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return ResolveResponse(sb.String()), nil
}

// 生成呼び出しのロール
const (
	RoleResearch         = "research"
	RoleDemographics     = "demographics"
	RolePlanner          = "planner"
	RoleDrafting         = "drafting"
	RoleReview           = "review"
	RoleEvaluation       = "evaluation"
	RoleFutureEvaluation = "futureEvaluation"
	RoleScoring          = "scoring"
)
