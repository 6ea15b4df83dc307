package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"ragchat/internal/embedding"
	"ragchat/internal/provider"
	"ragchat/internal/retry"
)

const (
	embeddingModel  = "embedding-001"
	generationModel = "gemini-1.5-flash"
)

// Client is the Gemini-backed embedding and generation provider. One client
// is constructed at process start and injected everywhere a provider is
// needed.
type Client struct {
	client *genai.Client
	policy retry.Policy
}

func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		client: client,
		policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    8 * time.Second,
			Retryable:   provider.IsRetryable,
		},
	}, nil
}

func (c *Client) Close() error { return c.client.Close() }

// Embed implements embedding.Provider. One vector per input text, in input
// order; the task type follows the requested mode.
func (c *Client) Embed(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	em := c.client.EmbeddingModel(embeddingModel)
	em.TaskType = genai.TaskTypeRetrievalDocument
	if mode == embedding.ModeQuery {
		em.TaskType = genai.TaskTypeRetrievalQuery
	}

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, provider.Classify("embed", err)
	}

	vecs := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		if e == nil {
			return nil, provider.Errorf(provider.KindContract, "embed", "nil embedding in response")
		}
		vecs = append(vecs, e.Values)
	}
	return vecs, nil
}

// Generate produces a grounded answer for the prompt, retrying transient
// provider errors.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(generationModel)

	var out string
	err := c.policy.Do(ctx, func() error {
		res, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return provider.Classify("generate", err)
		}
		text, err := responseText(res)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// GenerateStream yields answer fragments as they arrive. The returned
// channel is closed when the stream ends; cancelling ctx stops the pull and
// releases the underlying transport. Nothing is buffered ahead of the
// consumer beyond the channel's small window.
func (c *Client) GenerateStream(ctx context.Context, prompt string) (<-chan string, error) {
	model := c.client.GenerativeModel(generationModel)
	iter := model.GenerateContentStream(ctx, genai.Text(prompt))

	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		for {
			res, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				slog.ErrorContext(ctx, "generation stream interrupted", "error", err)
				return
			}
			text, err := responseText(res)
			if err != nil {
				slog.WarnContext(ctx, "skipping malformed stream fragment", "error", err)
				continue
			}
			select {
			case ch <- text:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func responseText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", provider.Errorf(provider.KindContract, "generate", "empty candidate in response")
	}
	var out string
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out, nil
}
