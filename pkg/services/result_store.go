package services

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"policy-deliberation-api/pkg/models"
)

// RunSummary 一覧表示用の熟議結果の要約
type RunSummary struct {
	RunID          string                `json:"runId"`
	Title          string                `json:"title"`
	TotalScore     float64               `json:"totalScore"`
	Recommendation models.Recommendation `json:"recommendation"`
	Approved       bool                  `json:"approved"`
	FinishedAt     time.Time             `json:"finishedAt"`
}

// ResultStore は直近の熟議結果をメモリに保持します。上限を超えると古いものから破棄します。
type ResultStore struct {
	cache *lru.Cache[string, models.ResultEnvelope]
}

// NewResultStore は最大 size 件を保持する ResultStore を作成します。
func NewResultStore(size int) (*ResultStore, error) {
	cache, err := lru.New[string, models.ResultEnvelope](size)
	if err != nil {
		return nil, fmt.Errorf("結果キャッシュの作成に失敗: %w", err)
	}
	return &ResultStore{cache: cache}, nil
}

// Put は結果を保存します。
func (s *ResultStore) Put(env models.ResultEnvelope) {
	s.cache.Add(env.RunID, env)
}

// Get は実行IDの結果を返します。
func (s *ResultStore) Get(runID string) (models.ResultEnvelope, bool) {
	return s.cache.Get(runID)
}

// Len は保持している件数です。
func (s *ResultStore) Len() int {
	return s.cache.Len()
}

// Recent は新しい順に最大 limit 件の要約を返します。
func (s *ResultStore) Recent(limit int) []RunSummary {
	keys := s.cache.Keys() // 古い順
	out := make([]RunSummary, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		env, ok := s.cache.Peek(keys[i])
		if !ok {
			continue
		}
		out = append(out, RunSummary{
			RunID:          env.RunID,
			Title:          env.PolicyProposal.Title,
			TotalScore:     env.FinalAssessment.TotalScore,
			Recommendation: env.FinalAssessment.Recommendation,
			Approved:       env.ExecutionStatus.Approved,
			FinishedAt:     env.FinishedAt,
		})
	}
	return out
}
