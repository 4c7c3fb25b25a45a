package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedBlock(t *testing.T) {
	obj, ok := Extract("```json\n{\"a\":1}\n```")
	require.True(t, ok)
	assert.Equal(t, float64(1), obj["a"])
}

func TestExtractFencedBlockWithSurroundingProse(t *testing.T) {
	text := "以下が結果です。\n```JSON\n{\"title\": \"子育て支援\"}\n```\nご確認ください。```json\n{\"title\": \"second\"}\n```"
	obj, ok := Extract(text)
	require.True(t, ok)
	// 最初に見つかったブロックを採用する
	assert.Equal(t, "子育て支援", obj["title"])
}

func TestExtractPlainObject(t *testing.T) {
	obj, ok := Extract(`{"a":1}`)
	require.True(t, ok)
	assert.Equal(t, float64(1), obj["a"])
}

func TestExtractNotJSON(t *testing.T) {
	assert.NotPanics(t, func() {
		obj, ok := Extract("not json at all")
		assert.False(t, ok)
		assert.Nil(t, obj)
	})
}

func TestExtractMalformedInputs(t *testing.T) {
	inputs := []string{
		"",
		"```json\n{broken\n```",
		"```json",
		"[1,2,3]",
		`"just a string"`,
		"{\"a\": 1",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_, ok := Extract(in)
			assert.False(t, ok, "input: %q", in)
		})
	}
}

func TestExtractUnwrapsChatCompletionEnvelope(t *testing.T) {
	envelope := `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"` +
		"```json\\n{\\\"approved\\\": true}\\n```" + `"}}]}`
	obj, ok := Extract(envelope)
	require.True(t, ok)
	assert.Equal(t, true, obj["approved"])
}

func TestExtractUnwrapsTextEnvelope(t *testing.T) {
	envelope := `{"text":"` + "```json\\n{\\\"a\\\": 1}\\n```" + `"}`
	obj, ok := Extract(envelope)
	require.True(t, ok)
	assert.Equal(t, float64(1), obj["a"])
}

func TestUnwrapEnvelopePrecedence(t *testing.T) {
	inner, ok := UnwrapEnvelope(`{"choices":[{"message":{"content":"choice"}}],"text":"top"}`)
	require.True(t, ok)
	assert.Equal(t, "choice", inner)

	inner, ok = UnwrapEnvelope(`{"content":[{"type":"text","text":"part"}],"text":"top"}`)
	require.True(t, ok)
	assert.Equal(t, "part", inner)

	inner, ok = UnwrapEnvelope(`{"text":"top"}`)
	require.True(t, ok)
	assert.Equal(t, "top", inner)
}

func TestUnwrapEnvelopeIgnoresOrdinaryObjects(t *testing.T) {
	_, ok := UnwrapEnvelope(`{"a":1}`)
	assert.False(t, ok)

	_, ok = UnwrapEnvelope(`{"content":"plain"}`)
	assert.False(t, ok)

	_, ok = UnwrapEnvelope(`{"text":""}`)
	assert.False(t, ok)
}

func TestFromFenceRequiresFence(t *testing.T) {
	_, ok := FromFence(`{"a":1}`)
	assert.False(t, ok)
}

func TestExtractInto(t *testing.T) {
	var v struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	ok := ExtractInto("```json\n{\"name\":\"佐藤\",\"age\":42}\n```", &v)
	require.True(t, ok)
	assert.Equal(t, "佐藤", v.Name)
	assert.Equal(t, 42, v.Age)

	assert.False(t, ExtractInto("no object here", &v))
}

func TestExtractIntoKeepsFieldsOnTypeMismatch(t *testing.T) {
	var v struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	ok := ExtractInto("```json\n{\"name\":\"佐藤\",\"age\":\"42歳\"}\n```", &v)
	require.True(t, ok)
	assert.Equal(t, "佐藤", v.Name)
	assert.Equal(t, 0, v.Age)
}

func TestMarshalNoEscape(t *testing.T) {
	out, err := MarshalNoEscape(map[string]string{"q": "<所得制限> & 撤廃"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"<所得制限> & 撤廃"}`, string(out))
}
