package jsonutil

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// 最初に現れる ```json ... ``` ブロック
var fencePattern = regexp.MustCompile("(?s)```(?i:json)[ \\t]*\\r?\\n?(.*?)```")

// Extract はノイズを含むテキストからJSONオブジェクトを1つ取り出します。
// 見つからない場合は (nil, false) を返し、エラーにはしません。
func Extract(text string) (map[string]any, bool) {
	body := text
	if inner, ok := UnwrapEnvelope(text); ok {
		body = inner
	}
	if obj, ok := FromFence(body); ok {
		return obj, true
	}
	if obj, ok := Verbatim(body); ok {
		return obj, true
	}
	return nil, false
}

// ExtractInto は Extract の結果を v にデコードします。
// 一部フィールドの型が合わないだけなら、残りのフィールドを埋めた状態で成功扱いにします。
func ExtractInto(text string, v any) bool {
	obj, ok := Extract(text)
	if !ok {
		return false
	}
	err := Decode(obj, v)
	var typeErr *json.UnmarshalTypeError
	return err == nil || errors.As(err, &typeErr)
}

// UnwrapEnvelope はチャット補完APIのレスポンス形式であれば最初のテキストを返します。
// choices → content → トップレベルの text の順に最初に見つかったものを使います。
func UnwrapEnvelope(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	var env struct {
		Choices []struct {
			Message *struct {
				Content string `json:"content"`
			} `json:"message"`
			Delta *struct {
				Content string `json:"content"`
			} `json:"delta"`
			Text string `json:"text"`
		} `json:"choices"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return "", false
	}
	if len(env.Choices) > 0 {
		c := env.Choices[0]
		switch {
		case c.Message != nil:
			return c.Message.Content, true
		case c.Delta != nil:
			return c.Delta.Content, true
		case c.Text != "":
			return c.Text, true
		}
	}
	for _, part := range env.Content {
		if part.Type == "text" || part.Type == "" {
			return part.Text, true
		}
	}
	if env.Text != "" {
		return env.Text, true
	}
	return "", false
}

// FromFence は ```json フェンス内のオブジェクトを解析します。
func FromFence(text string) (map[string]any, bool) {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return Verbatim(m[1])
}

// Verbatim はテキスト全体をJSONオブジェクトとして解析します。
func Verbatim(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	var obj map[string]any
	if err := UnmarshalFlex([]byte(trimmed), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
