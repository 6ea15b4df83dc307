package retrieval

import (
	"context"
	"fmt"
	"time"

	"ragchat/internal/adapter/pgvector"
	"ragchat/internal/embedding"
	"ragchat/internal/middleware"
)

// Embedder is the query-embedding capability the engine needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string, mode embedding.Mode) ([]float32, error)
}

// ChunkStore answers similarity queries over stored chunks.
type ChunkStore interface {
	Search(ctx context.Context, embedding []float32, scope []int64, k int) ([]pgvector.SearchResult, error)
}

const (
	DefaultTopK = 5
	MaxTopK     = 20
)

// Service embeds a question and fetches the most similar chunks. An empty
// result set is a valid answer; provider or storage failures surface as
// errors so callers never mistake an outage for "no relevant documents".
type Service struct {
	embedder Embedder
	store    ChunkStore
	logger   *QueryLogger
	topK     int
	maxTopK  int
}

func NewService(e Embedder, s ChunkStore, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, logger: l, topK: DefaultTopK, maxTopK: MaxTopK}
}

// WithTopK overrides the default and maximum result counts.
func (s *Service) WithTopK(topK, maxTopK int) *Service {
	if topK > 0 {
		s.topK = topK
	}
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	return s
}

// Retrieve returns up to k chunks ordered by ascending cosine distance to
// the query, optionally scoped to a set of document ids. k <= 0 selects the
// default; k is capped to bound prompt size downstream.
func (s *Service) Retrieve(ctx context.Context, query string, scope []int64, k int) ([]pgvector.SearchResult, error) {
	start := time.Now()

	if k <= 0 {
		k = s.topK
	}
	if k > s.maxTopK {
		k = s.maxTopK
	}

	vec, err := s.embedder.EmbedOne(ctx, query, embedding.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vec, scope, k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			ScopedDocs:    len(scope),
			TopK:          k,
			NumResults:    len(results),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}

	return results, nil
}
