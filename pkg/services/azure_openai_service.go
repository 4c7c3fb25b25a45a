package services

import (
	"context"
	"errors"
	"iter"
	"time"

	"policy-deliberation-api/pkg/azure"
)

// AzureOpenAIService Azure OpenAI を使ったAgent実装
type AzureOpenAIService struct {
	client      *azure.OpenAIClient
	timeout     time.Duration
	maxTokens   int
	temperature float32
	limiter     *rpsLimiter
}

// AzureOpenAIOptions 生成呼び出しの調整項目
type AzureOpenAIOptions struct {
	Timeout     time.Duration // 1回の生成呼び出しの上限時間
	MaxTokens   int
	Temperature float32
	RPS         float64 // 0以下なら流量制限なし
}

// NewAzureOpenAIService 新しいAzure OpenAI サービスを作成
func NewAzureOpenAIService(client *azure.OpenAIClient, opts AzureOpenAIOptions) *AzureOpenAIService {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	return &AzureOpenAIService{
		client:      client,
		timeout:     opts.Timeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		limiter:     newRPSLimiter(opts.RPS, 1),
	}
}

// Generate はペルソナをsystem、指示をuserとしてストリーミング生成します。
func (aos *AzureOpenAIService) Generate(ctx context.Context, persona Persona, instruction string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := aos.limiter.Acquire(ctx); err != nil {
			yield("", err)
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, aos.timeout)
		defer cancel()

		messages := []azure.ChatMessage{
			{Role: "system", Content: persona.Briefing},
			{Role: "user", Content: instruction},
		}
		for chunk, err := range aos.client.ChatCompletionStream(callCtx, messages, aos.maxTokens, aos.temperature) {
			if err != nil {
				if ctx.Err() != nil {
					yield("", ctx.Err())
					return
				}
				yield("", &GenerationError{
					Persona: persona.Name,
					Timeout: errors.Is(callCtx.Err(), context.DeadlineExceeded),
					Err:     err,
				})
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		// ストリームが途中で切れた場合もタイムアウトとして扱う
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			yield("", &GenerationError{Persona: persona.Name, Timeout: true, Err: callCtx.Err()})
		}
	}
}

// CreateEmbedding はテキストのベクトル表現を生成します。
func (aos *AzureOpenAIService) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return aos.client.CreateEmbedding(callCtx, text)
}

// Close は流量制限のgoroutineを停止します。
func (aos *AzureOpenAIService) Close() {
	aos.limiter.Stop()
}
