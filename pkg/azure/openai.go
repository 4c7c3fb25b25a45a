package azure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIClient はAzure OpenAI REST APIへのリクエストを管理します。
// endpointにはAzure OpenAIの実エンドポイント、またはリクエストを転送するプロキシのURLを設定します。
type OpenAIClient struct {
	endpoint                string
	apiKey                  string
	apiVersion              string
	chatDeploymentName      string
	embeddingDeploymentName string
	httpClient              *http.Client
	streamClient            *http.Client
}

// NewOpenAIClient は新しいAzure OpenAIクライアントを作成します。
func NewOpenAIClient(endpoint, apiKey, apiVersion, chatDeploymentName, embeddingDeploymentName, proxyURL string) *OpenAIClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxy)
			log.Println("HTTPクライアントにプロキシを設定しました:", proxyURL)
		} else {
			log.Printf("警告: 無効なプロキシURLです。プロキシは使用されません: %v", err)
		}
	}

	return &OpenAIClient{
		endpoint:                endpoint,
		apiKey:                  apiKey,
		apiVersion:              apiVersion,
		chatDeploymentName:      chatDeploymentName,
		embeddingDeploymentName: embeddingDeploymentName,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
		// ストリーミングは呼び出し側のcontextで時間を区切る
		streamClient: &http.Client{Transport: transport},
	}
}

// --- データ構造定義 ---

// ChatMessage チャットメッセージ
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest チャット補完リクエスト
type ChatCompletionRequest struct {
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatCompletionResponse チャット補完レスポンス
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatCompletionChunk ストリーミング時の差分レスポンス
type ChatCompletionChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// EmbeddingRequest Embedding APIリクエスト
type EmbeddingRequest struct {
	Input string `json:"input"`
}

// EmbeddingResponse Embedding APIレスポンス
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StatusError はAPIが200以外を返したことを表します。
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Azure OpenAI API エラー (status: %d): %s", e.StatusCode, e.Message)
}

// --- メソッド定義 ---

func (c *OpenAIClient) chatURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(c.endpoint, "/"), c.chatDeploymentName, c.apiVersion)
}

// ChatCompletion チャット補完を実行
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32, topP float32) (*ChatCompletionResponse, error) {
	request := ChatCompletionRequest{
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	var response ChatCompletionResponse
	if err := c.doRequest(ctx, c.httpClient, c.chatURL(), request, &response); err != nil {
		return nil, fmt.Errorf("Azure OpenAI API 呼び出しに失敗: %w", err)
	}
	return &response, nil
}

// ChatCompletionStream はストリーミングでチャット補完を実行し、テキスト断片を順に返します。
// 呼び出し側がループを途中で抜けた場合もレスポンスボディは閉じられます。
func (c *OpenAIClient) ChatCompletionStream(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		request := ChatCompletionRequest{
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        0.95,
			Stream:      true,
		}
		resp, err := c.send(ctx, c.streamClient, c.chatURL(), request)
		if err != nil {
			yield("", fmt.Errorf("Azure OpenAI API 呼び出しに失敗: %w", err))
			return
		}
		defer resp.Body.Close()

		// 非ストリーミング応答（JSON1件）が返る実装もあるため、その場合は本文を1断片として返す
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				yield("", fmt.Errorf("レスポンスの読み取りに失敗: %w", err))
				return
			}
			yield(completionContent(body), nil)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var chunk ChatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", fmt.Errorf("ストリームのJSON解析に失敗: %w", err))
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("ストリームの読み取りに失敗: %w", err))
		}
	}
}

// CreateEmbedding テキストのベクトル表現を生成
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if c.embeddingDeploymentName == "" {
		return nil, fmt.Errorf("Embedding deployment name が設定されていません")
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		strings.TrimSuffix(c.endpoint, "/"), c.embeddingDeploymentName, c.apiVersion)

	var embeddingResp EmbeddingResponse
	if err := c.doRequest(ctx, c.httpClient, url, EmbeddingRequest{Input: text}, &embeddingResp); err != nil {
		return nil, err
	}

	if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("APIから有効なEmbeddingが返されませんでした")
	}

	return embeddingResp.Data[0].Embedding, nil
}

// doRequest はHTTPリクエストの実行とJSONレスポンスの解析を行う共通メソッドです。
func (c *OpenAIClient) doRequest(ctx context.Context, client *http.Client, url string, requestData any, responseData any) error {
	resp, err := c.send(ctx, client, url, requestData)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	if err := json.Unmarshal(body, responseData); err != nil {
		return fmt.Errorf("レスポンスのJSON解析に失敗: %w", err)
	}
	return nil
}

// send はリクエストを送信し、200以外のステータスをStatusErrorに変換します。
func (c *OpenAIClient) send(ctx context.Context, client *http.Client, url string, requestData any) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key が設定されていません")
	}

	requestBody, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("リクエストのJSON化に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの実行に失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorResp.Error.Message}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return resp, nil
}

// completionContent は非ストリーミング応答の最初の本文を返します。形式が違えばそのまま返します。
func completionContent(body []byte) string {
	var completion ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil || len(completion.Choices) == 0 {
		return string(body)
	}
	return completion.Choices[0].Message.Content
}
