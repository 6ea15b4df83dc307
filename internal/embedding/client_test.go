package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/provider"
)

// fakeProvider returns deterministic vectors so order preservation is
// checkable: vector i for input text "t<i>" carries i in its first element.
type fakeProvider struct {
	calls      [][]string
	failures   int // fail the first n calls
	failKind   provider.Kind
	dim        int
	shortCount bool
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.failures > 0 {
		f.failures--
		return nil, provider.NewError(f.failKind, "embed", errors.New("simulated"))
	}

	n := len(texts)
	if f.shortCount {
		n--
	}
	dim := f.dim
	if dim == 0 {
		dim = Dim
	}
	out := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		var idx int
		fmt.Sscanf(texts[i], "t%d", &idx)
		vec[0] = float32(idx)
		out = append(out, vec)
	}
	return out, nil
}

func fastOptions() Options {
	return Options{
		BatchSize:     2,
		BatchDelay:    time.Millisecond,
		MaxRetries:    3,
		FallbackDelay: time.Millisecond,
	}
}

func newTestClient(p Provider) *Client {
	c := NewClient(p, NewRateLimiter(0), fastOptions())
	// Keep backoff waits out of unit tests.
	c.policy.BaseDelay = time.Millisecond
	c.policy.MaxDelay = time.Millisecond
	return c
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(p)

	in := texts(7)
	vecs, err := c.EmbedBatch(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, vecs, 7)

	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0], "vector %d out of order", i)
		assert.Len(t, v, Dim)
	}

	// Batch size 2 means four groups.
	assert.Len(t, p.calls, 4)
}

func TestEmbedBatch_Empty(t *testing.T) {
	c := newTestClient(&fakeProvider{})
	vecs, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedBatch_BlankTextRejected(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(p)

	_, err := c.EmbedBatch(context.Background(), []string{"t0", "   ", "t2"})
	assert.ErrorIs(t, err, ErrBlankText)
	assert.Empty(t, p.calls, "provider must not be called for invalid input")
}

func TestEmbedBatch_CountMismatchIsContractError(t *testing.T) {
	p := &fakeProvider{shortCount: true}
	c := newTestClient(p)

	_, err := c.EmbedBatch(context.Background(), texts(2))
	assert.True(t, provider.IsContract(err), "got %v", err)
}

func TestEmbedBatch_WrongDimensionIsContractError(t *testing.T) {
	p := &fakeProvider{dim: 64}
	c := newTestClient(p)

	_, err := c.EmbedBatch(context.Background(), texts(2))
	assert.True(t, provider.IsContract(err), "got %v", err)
}

func TestEmbedBatch_RecoversFromTransientOverload(t *testing.T) {
	// First call fails with 429, the in-place group retry succeeds.
	p := &fakeProvider{failures: 1, failKind: provider.KindOverloaded}
	c := newTestClient(p)

	vecs, err := c.EmbedBatch(context.Background(), texts(4))
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestEmbedBatch_FallsBackToSingleItems(t *testing.T) {
	// Each pass fails on its first group twice (initial call plus the
	// in-place retry); three passes consume six failures, then the
	// one-at-a-time fallback succeeds.
	p := &fakeProvider{failures: 6, failKind: provider.KindOverloaded}
	c := newTestClient(p)

	vecs, err := c.EmbedBatch(context.Background(), texts(3))
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}

	// The tail of the call log must be single-item requests.
	last := p.calls[len(p.calls)-1]
	assert.Len(t, last, 1)
}

func TestEmbedBatch_NonRetryableFailsFast(t *testing.T) {
	p := &fakeProvider{failures: 1, failKind: provider.KindInvalidInput}
	c := newTestClient(p)

	_, err := c.EmbedBatch(context.Background(), texts(4))
	assert.True(t, provider.IsInvalidInput(err), "got %v", err)
	assert.Len(t, p.calls, 1, "invalid input must not be retried")
}

func TestEmbedBatch_AllOrNothing(t *testing.T) {
	// Every call fails; the caller sees an error, never partial vectors.
	p := &fakeProvider{failures: 1000, failKind: provider.KindUnavailable}
	c := newTestClient(p)

	vecs, err := c.EmbedBatch(context.Background(), texts(3))
	assert.Error(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedOne(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(p)

	vec, err := c.EmbedOne(context.Background(), "t5", ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, float32(5), vec[0])
	assert.Len(t, vec, Dim)
}

func TestEmbedOne_Blank(t *testing.T) {
	c := newTestClient(&fakeProvider{})
	_, err := c.EmbedOne(context.Background(), "  \n ", ModeQuery)
	assert.ErrorIs(t, err, ErrBlankText)
}

func TestEmbedOne_RetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{failures: 2, failKind: provider.KindUnavailable}
	c := newTestClient(p)

	vec, err := c.EmbedOne(context.Background(), "t1", ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, float32(1), vec[0])
	assert.Len(t, p.calls, 3)
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultBatchSize, o.BatchSize)
	assert.Equal(t, defaultBatchDelay, o.BatchDelay)
	assert.Equal(t, defaultMaxRetries, o.MaxRetries)
	assert.Equal(t, defaultFallbackDelay, o.FallbackDelay)
}
