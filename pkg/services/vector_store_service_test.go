package services

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"policy-deliberation-api/pkg/models"
)

type fakeEmbedder struct {
	texts []string
	err   error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakePoints struct {
	qdrant.PointsClient
	upserts  []*qdrant.UpsertPoints
	searches []*qdrant.SearchPoints
	results  []*qdrant.ScoredPoint
}

func (f *fakePoints) Upsert(_ context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.upserts = append(f.upserts, in)
	return &qdrant.PointsOperationResponse{}, nil
}

func (f *fakePoints) Count(context.Context, *qdrant.CountPoints, ...grpc.CallOption) (*qdrant.CountResponse, error) {
	return &qdrant.CountResponse{Result: &qdrant.CountResult{Count: uint64(len(f.upserts))}}, nil
}

func (f *fakePoints) Search(_ context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	f.searches = append(f.searches, in)
	return &qdrant.SearchResponse{Result: f.results}, nil
}

type fakeCollections struct {
	qdrant.CollectionsClient
	existing []string
	created  []string
	deleted  []string
}

func (f *fakeCollections) List(context.Context, *qdrant.ListCollectionsRequest, ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error) {
	res := &qdrant.ListCollectionsResponse{}
	for _, name := range f.existing {
		res.Collections = append(res.Collections, &qdrant.CollectionDescription{Name: name})
	}
	return res, nil
}

func (f *fakeCollections) Delete(_ context.Context, in *qdrant.DeleteCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.deleted = append(f.deleted, in.CollectionName)
	f.existing = nil
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *qdrant.CreateCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.created = append(f.created, in.CollectionName)
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func sampleEnvelope() models.ResultEnvelope {
	return models.ResultEnvelope{
		RunID: "6f1c2a8e-5d0b-4f4e-9a51-3f0f2b9b7c11",
		Input: "子育て支援の所得制限を撤廃して欲しい",
		PolicyProposal: models.PolicyDraft{
			Title:   "子育て支援の所得制限撤廃",
			Summary: "児童手当などの所得制限を撤廃する",
		},
		FinalAssessment: models.FinalAssessment{TotalScore: 76, Recommendation: models.RecommendationAdopt},
		ExecutionStatus: models.ExecutionStatus{Completed: true, Approved: true},
	}
}

func TestProposalArchiveEnsureCollection(t *testing.T) {
	collections := &fakeCollections{}
	archive := newProposalArchive(&fakePoints{}, collections, &fakeEmbedder{})

	require.NoError(t, archive.ensureCollection(context.Background()))
	assert.Equal(t, []string{proposalCollection}, collections.created)

	// 既にあれば作成しない
	collections = &fakeCollections{existing: []string{proposalCollection}}
	archive = newProposalArchive(&fakePoints{}, collections, &fakeEmbedder{})
	require.NoError(t, archive.ensureCollection(context.Background()))
	assert.Empty(t, collections.created)
}

func TestProposalArchiveSave(t *testing.T) {
	points := &fakePoints{}
	embedder := &fakeEmbedder{}
	archive := newProposalArchive(points, &fakeCollections{}, embedder)
	env := sampleEnvelope()

	require.NoError(t, archive.Save(context.Background(), env))

	require.Len(t, points.upserts, 1)
	upsert := points.upserts[0]
	assert.Equal(t, proposalCollection, upsert.CollectionName)
	require.Len(t, upsert.Points, 1)
	point := upsert.Points[0]
	assert.Equal(t, env.RunID, point.Id.GetUuid())
	assert.Equal(t, "子育て支援の所得制限撤廃", point.Payload["title"].GetStringValue())
	assert.Equal(t, 76.0, point.Payload["total_score"].GetDoubleValue())
	assert.True(t, point.Payload["approved"].GetBoolValue())
	assert.Contains(t, embedder.texts[0], env.Input)
}

func TestProposalArchiveSaveNonUUIDRunID(t *testing.T) {
	points := &fakePoints{}
	archive := newProposalArchive(points, &fakeCollections{}, &fakeEmbedder{})
	env := sampleEnvelope()
	env.RunID = "run-1"

	require.NoError(t, archive.Save(context.Background(), env))
	id := points.upserts[0].Points[0].Id.GetUuid()
	assert.NotEqual(t, "run-1", id)
	assert.Equal(t, "run-1", points.upserts[0].Points[0].Payload["run_id"].GetStringValue())
}

func TestProposalArchiveSaveEmbeddingError(t *testing.T) {
	points := &fakePoints{}
	archive := newProposalArchive(points, &fakeCollections{}, &fakeEmbedder{err: errors.New("quota exceeded")})

	err := archive.Save(context.Background(), sampleEnvelope())
	require.Error(t, err)
	assert.Empty(t, points.upserts)
}

func TestProposalArchiveSimilarProposals(t *testing.T) {
	points := &fakePoints{results: []*qdrant.ScoredPoint{
		{
			Score: 0.92,
			Payload: toPayload(map[string]any{
				"run_id":         "r1",
				"title":          "給食費の無償化",
				"summary":        "小中学校の給食費を無償にする",
				"total_score":    71.0,
				"recommendation": "推奨",
			}),
		},
	}}
	archive := newProposalArchive(points, &fakeCollections{}, &fakeEmbedder{})

	found, err := archive.Search(context.Background(), "給食", 3)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "r1", found[0].RunID)
	assert.Equal(t, models.RecommendationAdopt, found[0].Recommendation)
	assert.InDelta(t, 0.92, found[0].Similarity, 1e-6)
	assert.Equal(t, uint64(3), points.searches[0].Limit)

	hints, err := archive.SimilarProposals(context.Background(), "給食", 3)
	require.NoError(t, err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "給食費の無償化")
	assert.Contains(t, hints[0], "71点")
}

func TestProposalArchiveResetAndCount(t *testing.T) {
	points := &fakePoints{}
	collections := &fakeCollections{existing: []string{proposalCollection}}
	archive := newProposalArchive(points, collections, &fakeEmbedder{})

	require.NoError(t, archive.Save(context.Background(), sampleEnvelope()))
	n, err := archive.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	require.NoError(t, archive.Reset(context.Background()))
	assert.Equal(t, []string{proposalCollection}, collections.deleted)
	assert.Equal(t, []string{proposalCollection}, collections.created)
}
