package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragchat/internal/provider"
	"ragchat/internal/retry"
)

// Dim is the embedding dimensionality used across the whole corpus. The
// model is fixed for the lifetime of a deployment; mixing dimensionalities
// within one corpus is disallowed.
const Dim = 768

// Mode selects the provider-side task type. It affects embedding quality,
// not shape.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeQuery    Mode = "query"
)

// ErrBlankText is returned for empty or whitespace-only input. Never
// retried.
var ErrBlankText = errors.New("cannot embed blank text")

// Provider is the outbound embedding capability. Implementations must
// return exactly one vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
}

// Options tune the batch algorithm. Zero values fall back to defaults.
type Options struct {
	BatchSize     int
	BatchDelay    time.Duration
	MaxRetries    int
	FallbackDelay time.Duration
}

const (
	defaultBatchSize     = 32
	defaultBatchDelay    = 200 * time.Millisecond
	defaultMaxRetries    = 3
	defaultFallbackDelay = time.Second

	// maxBatchDelay caps the escalating inter-batch delay.
	maxBatchDelay = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = defaultBatchDelay
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.FallbackDelay <= 0 {
		o.FallbackDelay = defaultFallbackDelay
	}
	return o
}

// Client wraps an embedding provider with rate limiting, batching and
// retry/fallback policy. All transient provider errors are absorbed here;
// callers only see them once every recovery path is exhausted.
type Client struct {
	provider Provider
	limiter  *RateLimiter
	policy   retry.Policy
	opts     Options
}

func NewClient(p Provider, limiter *RateLimiter, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		provider: p,
		limiter:  limiter,
		policy: retry.Policy{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
			Retryable:   provider.IsRetryable,
		},
		opts: opts,
	}
}

// EmbedOne embeds a single text, retrying transient provider errors with
// exponential backoff. Invalid input fails immediately.
func (c *Client) EmbedOne(ctx context.Context, text string, mode Mode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrBlankText
	}

	var vec []float32
	err := c.policy.Do(ctx, func() error {
		vecs, err := c.call(ctx, []string{text}, mode)
		if err != nil {
			return err
		}
		vec = vecs[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts in document mode, preserving input order: the
// i-th output vector corresponds to the i-th input text. The batch is
// partitioned into groups; on quota/overload errors the group is retried
// once in place, then the whole pass restarts with a halved group size and
// a longer inter-group delay. After MaxRetries passes the client falls back
// to one-at-a-time embedding. Any failure there fails the entire call;
// partial results are never returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrBlankText)
		}
	}

	batchSize := c.opts.BatchSize
	delay := c.opts.BatchDelay

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		vecs, err := c.embedPass(ctx, texts, batchSize, delay)
		if err == nil {
			return vecs, nil
		}
		if !provider.IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		// Shrink pressure on the provider before the next pass.
		if batchSize > 1 {
			batchSize /= 2
		}
		delay *= 2
		if delay > maxBatchDelay {
			delay = maxBatchDelay
		}

		slog.WarnContext(ctx, "embedding pass failed, backing off",
			"attempt", attempt, "next_batch_size", batchSize, "next_delay", delay, "error", err)

		if werr := retry.Sleep(ctx, c.policy.Backoff(attempt)); werr != nil {
			return nil, werr
		}
	}

	slog.WarnContext(ctx, "batch embedding exhausted retries, falling back to single items",
		"texts", len(texts), "error", lastErr)
	return c.embedOneByOne(ctx, texts)
}

// embedPass runs one full pass over texts in groups of at most batchSize.
func (c *Client) embedPass(ctx context.Context, texts []string, batchSize int, delay time.Duration) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += batchSize {
		if start > 0 {
			if err := retry.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		group := texts[start:end]

		vecs, err := c.call(ctx, group, ModeDocument)
		if err != nil && provider.IsRetryable(err) {
			// One in-place retry for this group before giving up on the pass.
			if werr := retry.Sleep(ctx, c.policy.Backoff(1)); werr != nil {
				return nil, werr
			}
			vecs, err = c.call(ctx, group, ModeDocument)
		}
		if err != nil {
			return nil, err
		}

		out = append(out, vecs...)
	}
	return out, nil
}

// embedOneByOne is the last-resort path: each text individually, with a
// fixed larger delay between requests. All-or-nothing.
func (c *Client) embedOneByOne(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		if i > 0 {
			if err := retry.Sleep(ctx, c.opts.FallbackDelay); err != nil {
				return nil, err
			}
		}
		vec, err := c.EmbedOne(ctx, t, ModeDocument)
		if err != nil {
			return nil, fmt.Errorf("fallback embedding of text %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// call issues one rate-limited provider request and validates the response
// shape against the group it was asked for.
func (c *Client) call(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vecs, err := c.provider.Embed(ctx, texts, mode)
	if err != nil {
		return nil, provider.Classify("embed", err)
	}
	if len(vecs) != len(texts) {
		return nil, provider.Errorf(provider.KindContract, "embed",
			"expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != Dim {
			return nil, provider.Errorf(provider.KindContract, "embed",
				"vector %d has dimension %d, want %d", i, len(v), Dim)
		}
	}
	return vecs, nil
}
