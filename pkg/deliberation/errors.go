package deliberation

import (
	"context"
	"errors"
	"fmt"

	"policy-deliberation-api/pkg/services"
)

// ErrorKind はパイプラインのエラー分類です。
type ErrorKind string

const (
	KindExtractionMiss      ErrorKind = "ExtractionMiss"
	KindValidationFailure   ErrorKind = "ValidationFailure"
	KindGenerationTransport ErrorKind = "GenerationTransportError"
	KindPartialBatchFailure ErrorKind = "PartialBatchFailure"
)

var (
	// ErrExtractionMiss 生成結果から構造化データを取り出せなかった
	ErrExtractionMiss = errors.New("構造化データを抽出できませんでした")
	// ErrValidation 生成結果が前提条件を満たさなかった
	ErrValidation = errors.New("検証に失敗しました")
	// ErrGenerationTransport 生成機能への呼び出しが失敗した
	ErrGenerationTransport = services.ErrGeneration
)

// StageError はステージ単位の致命的なエラーです。
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func extractionMiss(stage string) error {
	return &StageError{Stage: stage, Kind: KindExtractionMiss, Err: ErrExtractionMiss}
}

func validationFailure(stage, format string, args ...any) error {
	return &StageError{Stage: stage, Kind: KindValidationFailure, Err: fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)}
}

// stageFailure は生成呼び出しのエラーをステージエラーに変換します。
// 呼び出し元のキャンセルはそのまま返します。
func stageFailure(stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var genErr *services.GenerationError
		if !errors.As(err, &genErr) {
			return err
		}
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	kind := KindGenerationTransport
	if !errors.Is(err, services.ErrGeneration) {
		err = &services.GenerationError{Persona: stage, Err: err}
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf はエラーの分類を返します。分類できない場合は空文字です。
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, services.ErrGeneration) {
		return KindGenerationTransport
	}
	return ""
}

// StageOf はエラーが発生したステージ名を返します。
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
