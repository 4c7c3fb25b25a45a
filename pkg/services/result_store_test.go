package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-deliberation-api/pkg/models"
)

func TestResultStoreEvictsOldest(t *testing.T) {
	store, err := NewResultStore(2)
	require.NoError(t, err)

	for i := range 3 {
		store.Put(models.ResultEnvelope{RunID: fmt.Sprintf("run-%d", i)})
	}

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("run-0")
	assert.False(t, ok)
	env, ok := store.Get("run-2")
	require.True(t, ok)
	assert.Equal(t, "run-2", env.RunID)
}

func TestResultStoreRecent(t *testing.T) {
	store, err := NewResultStore(10)
	require.NoError(t, err)

	for i := range 4 {
		env := sampleEnvelope()
		env.RunID = fmt.Sprintf("run-%d", i)
		store.Put(env)
	}

	recent := store.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-3", recent[0].RunID)
	assert.Equal(t, "run-2", recent[1].RunID)
	assert.Equal(t, "子育て支援の所得制限撤廃", recent[0].Title)
	assert.Equal(t, models.RecommendationAdopt, recent[0].Recommendation)
}

func TestNewResultStoreInvalidSize(t *testing.T) {
	_, err := NewResultStore(0)
	assert.Error(t, err)
}
