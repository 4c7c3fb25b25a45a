package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIntAcceptsDecoratedStrings(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`35`, 35},
		{`34.6`, 35},
		{`"35歳"`, 35},
		{`"1,200人"`, 1200},
		{`"不明"`, 0},
		{`null`, 0},
		{`{"x":1}`, 0},
	}
	for _, tc := range cases {
		var v FlexInt
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &v), tc.raw)
		assert.Equal(t, tc.want, v.Int(), tc.raw)
	}
}

func TestFlexFloatAcceptsPercentStrings(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`11`, 11},
		{`12.5`, 12.5},
		{`"11%"`, 11},
		{`"約12.5%"`, 12.5},
		{`"80"`, 80},
		{`"-3.5"`, -3.5},
		{`"なし"`, 0},
		{`null`, 0},
		{`true`, 0},
	}
	for _, tc := range cases {
		var v FlexFloat
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &v), tc.raw)
		assert.InDelta(t, tc.want, v.Float(), 1e-9, tc.raw)
	}
}

func TestFlexBoolAcceptsWordsAndNumbers(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"Yes"`, true},
		{`"はい"`, true},
		{`" 該当 "`, true},
		{`"いいえ"`, false},
		{`"対象外"`, false},
		{`"×"`, false},
		{`""`, false},
		{`1`, true},
		{`0`, false},
		{`null`, false},
	}
	for _, tc := range cases {
		var v FlexBool
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &v), tc.raw)
		assert.Equal(t, tc.want, v.Bool(), tc.raw)
	}
}

func TestDemographicProfileDecodesLooseValues(t *testing.T) {
	raw := `{
		"familyTypes":[{"type":"共働き世帯","percentage":"38%"}],
		"ageDistribution":{"30代":"14.5%","40代":16},
		"genderRatio":{"男性":"49%","女性":"51"}
	}`
	var p DemographicProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Len(t, p.FamilyTypes, 1)
	assert.Equal(t, 38.0, p.FamilyTypes[0].Percentage.Float())
	assert.Equal(t, 14.5, p.AgeDistribution["30代"].Float())
	assert.Equal(t, 16.0, p.AgeDistribution["40代"].Float())
	assert.Equal(t, 51.0, p.GenderRatio["女性"].Float())
}
