package chat

import (
	"context"
	"fmt"

	"ragchat/internal/adapter/pgvector"
	"ragchat/internal/retrieval"
)

// NoContextAnswer is returned verbatim when retrieval finds nothing to
// ground an answer on. The generation model is not called in that case.
const NoContextAnswer = "No relevant information found in documents."

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, scope []int64, k int) ([]pgvector.SearchResult, error)
}

// Generator produces grounded answers, either whole or as a token stream.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan string, error)
}

// Source describes one retrieved chunk backing an answer.
type Source struct {
	DocumentID int64   `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type Service struct {
	retriever Retriever
	generator Generator
}

func NewService(retriever Retriever, generator Generator) *Service {
	return &Service{retriever: retriever, generator: generator}
}

// Ask retrieves context for the query and generates a grounded answer.
// documentIDs scopes retrieval to those documents; empty means all.
func (s *Service) Ask(ctx context.Context, query string, documentIDs []int64, topK int) (*Answer, error) {
	results, err := s.retriever.Retrieve(ctx, query, documentIDs, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Answer: NoContextAnswer, Sources: []Source{}}, nil
	}

	prompt := retrieval.BuildPrompt(query, results)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{Answer: answer, Sources: toSources(results)}, nil
}

// AskStream is the streaming variant of Ask. When retrieval finds nothing
// the returned channel yields NoContextAnswer as a single item.
func (s *Service) AskStream(ctx context.Context, query string, documentIDs []int64, topK int) (<-chan string, []Source, error) {
	results, err := s.retriever.Retrieve(ctx, query, documentIDs, topK)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		ch := make(chan string, 1)
		ch <- NoContextAnswer
		close(ch)
		return ch, []Source{}, nil
	}

	prompt := retrieval.BuildPrompt(query, results)
	stream, err := s.generator.GenerateStream(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("generate answer: %w", err)
	}
	return stream, toSources(results), nil
}

func toSources(results []pgvector.SearchResult) []Source {
	sources := make([]Source, len(results))
	for i, res := range results {
		sources[i] = Source{
			DocumentID: res.Chunk.DocumentID,
			ChunkIndex: res.Chunk.ChunkIndex,
			Content:    res.Chunk.Content,
			Distance:   res.Distance,
		}
	}
	return sources
}
