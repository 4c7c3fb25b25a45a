package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"time"

	"policy-deliberation-api/pkg/models"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	proposalCollection = "deliberation_proposals"
	embeddingSize      = uint64(1536) // text-embedding-3-smallの次元数
)

// Embedder はテキストをベクトル化します。
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ArchivedProposal アーカイブ済みの政策案
type ArchivedProposal struct {
	RunID          string                `json:"runId"`
	Input          string                `json:"input"`
	Title          string                `json:"title"`
	Summary        string                `json:"summary"`
	TotalScore     float64               `json:"totalScore"`
	Recommendation models.Recommendation `json:"recommendation"`
	Approved       bool                  `json:"approved"`
	ArchivedAt     string                `json:"archivedAt"`
	Similarity     float32               `json:"similarity"`
}

// ProposalArchive は完了した熟議の政策案をQdrantに保存し、類似検索します。
type ProposalArchive struct {
	qdrantClient            qdrant.PointsClient
	qdrantCollectionsClient qdrant.CollectionsClient
	embedder                Embedder
	conn                    *grpc.ClientConn
}

// NewProposalArchive はQdrantに接続し、コレクションを準備します。
func NewProposalArchive(ctx context.Context, embedder Embedder, qdrantURL, qdrantAPIKey string) (*ProposalArchive, error) {
	if qdrantURL == "" {
		return nil, errors.New("QDRANT_URL が設定されていません")
	}

	// 接続オプション
	var dialOpts []grpc.DialOption

	// APIキーの有無で、Cloud接続(TLS+APIキー)とローカル接続(非セキュア)を切り替える
	if qdrantAPIKey != "" {
		log.Println("Qdrant Cloud (TLS) への接続を準備します...")
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))

		// APIキー認証インターセプタを追加
		authInterceptor := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", qdrantAPIKey)
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(authInterceptor))
	} else {
		log.Println("ローカルのQdrant (非TLS) への接続を準備します...")
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(qdrantURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("QdrantへのgRPCクライアント作成に失敗しました: %w", err)
	}

	archive := newProposalArchive(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), embedder)
	archive.conn = conn

	// Qdrantサーバーが起動するまでリトライしながらコレクションを準備する
	const maxRetries = 5
	retryInterval := 2 * time.Second
	for i := range maxRetries {
		if err = archive.ensureCollection(ctx); err == nil {
			return archive, nil
		}
		log.Printf("Qdrantサーバーの準備確認に失敗しました (試行 %d/%d)。%v後に再試行します...", i+1, maxRetries, retryInterval)
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	conn.Close()
	return nil, fmt.Errorf("Qdrantのコレクション準備に失敗しました（リトライ上限到達）: %w", err)
}

func newProposalArchive(points qdrant.PointsClient, collections qdrant.CollectionsClient, embedder Embedder) *ProposalArchive {
	return &ProposalArchive{
		qdrantClient:            points,
		qdrantCollectionsClient: collections,
		embedder:                embedder,
	}
}

// Close はgRPC接続を閉じます。
func (s *ProposalArchive) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// ensureCollection コレクションが存在することを確認し、なければ作成
func (s *ProposalArchive) ensureCollection(ctx context.Context) error {
	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.qdrantCollectionsClient.List(listCtx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("コレクションリストの取得に失敗: %w", err)
	}
	for _, collection := range res.GetCollections() {
		if collection.GetName() == proposalCollection {
			log.Printf("コレクション '%s' は既に存在します。", proposalCollection)
			return nil
		}
	}

	log.Printf("コレクション '%s' が存在しないため、新規作成します。", proposalCollection)
	createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = s.qdrantCollectionsClient.Create(createCtx, &qdrant.CreateCollection{
		CollectionName: proposalCollection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     embeddingSize,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("Qdrantのコレクション作成に失敗しました: %w", err)
	}
	log.Printf("コレクション '%s' を作成しました。", proposalCollection)
	return nil
}

// Reset はコレクションを削除して作り直します。保存済みの政策案はすべて失われます。
func (s *ProposalArchive) Reset(ctx context.Context) error {
	_, err := s.qdrantCollectionsClient.Delete(ctx, &qdrant.DeleteCollection{CollectionName: proposalCollection})
	if err != nil {
		return fmt.Errorf("コレクション '%s' の削除に失敗: %w", proposalCollection, err)
	}
	log.Printf("🗑️ コレクション '%s' を削除しました。", proposalCollection)
	return s.ensureCollection(ctx)
}

// Count は保存済みの政策案の件数を返します。
func (s *ProposalArchive) Count(ctx context.Context) (uint64, error) {
	exact := true
	res, err := s.qdrantClient.Count(ctx, &qdrant.CountPoints{CollectionName: proposalCollection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("政策案の件数取得に失敗: %w", err)
	}
	return res.GetResult().GetCount(), nil
}

// Save は熟議結果の政策案をベクトル化して保存します。ポイントIDは実行IDです。
func (s *ProposalArchive) Save(ctx context.Context, env models.ResultEnvelope) error {
	text := proposalText(env)
	vector, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("テキストのベクトル化に失敗: %w", err)
	}

	pointID := env.RunID
	if _, err := uuid.Parse(pointID); err != nil {
		pointID = uuid.NewString()
	}

	payload := toPayload(map[string]any{
		"run_id":         env.RunID,
		"input":          env.Input,
		"title":          env.PolicyProposal.Title,
		"summary":        env.PolicyProposal.Summary,
		"total_score":    env.FinalAssessment.TotalScore,
		"recommendation": string(env.FinalAssessment.Recommendation),
		"approved":       env.ExecutionStatus.Approved,
		"archived_at":    time.Now().Format(time.RFC3339),
	})

	waitUpsert := true
	_, err = s.qdrantClient.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: proposalCollection,
		Wait:           &waitUpsert,
		Points: []*qdrant.PointStruct{
			{
				Id: &qdrant.PointId{
					PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID},
				},
				Vectors: &qdrant.Vectors{
					VectorsOptions: &qdrant.Vectors_Vector{
						Vector: &qdrant.Vector{Data: vector},
					},
				},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("Qdrantへの政策案保存に失敗: %w", err)
	}

	log.Printf("政策案 '%s' をアーカイブしました（ID: %s）", env.PolicyProposal.Title, pointID)
	return nil
}

// Search はクエリに類似した過去の政策案を返します。
func (s *ProposalArchive) Search(ctx context.Context, query string, topK uint64) ([]ArchivedProposal, error) {
	queryVector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("クエリテキストのベクトル化に失敗: %w", err)
	}

	withPayload := true
	res, err := s.qdrantClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: proposalCollection,
		Vector:         queryVector,
		Limit:          topK,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, fmt.Errorf("Qdrantでのベクトル検索に失敗: %w", err)
	}

	proposals := make([]ArchivedProposal, 0, len(res.GetResult()))
	for _, point := range res.GetResult() {
		payload := point.GetPayload()
		proposals = append(proposals, ArchivedProposal{
			RunID:          getStringFromPayload(payload, "run_id"),
			Input:          getStringFromPayload(payload, "input"),
			Title:          getStringFromPayload(payload, "title"),
			Summary:        getStringFromPayload(payload, "summary"),
			TotalScore:     payload["total_score"].GetDoubleValue(),
			Recommendation: models.Recommendation(getStringFromPayload(payload, "recommendation")),
			Approved:       payload["approved"].GetBoolValue(),
			ArchivedAt:     getStringFromPayload(payload, "archived_at"),
			Similarity:     point.GetScore(),
		})
	}
	log.Printf("'%s' に類似した %d 件の政策案をQdrantから取得しました。", query, len(proposals))
	return proposals, nil
}

// SimilarProposals は調査ステージ向けに類似提案を1行ずつの文字列で返します。
func (s *ProposalArchive) SimilarProposals(ctx context.Context, text string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	proposals, err := s.Search(ctx, text, uint64(limit))
	if err != nil {
		return nil, err
	}
	hints := make([]string, 0, len(proposals))
	for _, p := range proposals {
		hints = append(hints, fmt.Sprintf("%s（%s、総合%.0f点・%s）", p.Title, p.Summary, p.TotalScore, p.Recommendation))
	}
	return hints, nil
}

func proposalText(env models.ResultEnvelope) string {
	return fmt.Sprintf("市民の声: %s\n政策名: %s\n概要: %s\n期待される効果: %s",
		env.Input, env.PolicyProposal.Title, env.PolicyProposal.Summary, env.PolicyProposal.ExpectedEffects)
}

// toPayload はメタデータをQdrantのペイロードに変換します。
func toPayload(values map[string]any) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case string:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		case int:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
		case float64:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
		case bool:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
		}
	}
	return payload
}

// getStringFromPayload ペイロードから文字列値を取得するヘルパー関数
func getStringFromPayload(payload map[string]*qdrant.Value, key string) string {
	if val, ok := payload[key]; ok {
		return val.GetStringValue()
	}
	return ""
}
