package tokens

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
)

func newTestClassifier(t *testing.T, client *stubClient) *Classifier {
	t.Helper()
	gw := gateway.New(3, time.Millisecond, nil)
	t.Cleanup(gw.Close)

	typeCache := cache.New[domain.TokenType]("type_", 0, nil, nil)
	c := NewClassifier(client, gw, typeCache, nil)
	c.chunkInterval = time.Millisecond
	return c
}

func TestClassifier_ClassifyAndCache(t *testing.T) {
	var calls atomic.Int64
	client := &stubClient{
		guessTokenTypeFn: func(ctx context.Context, tokenID string) (string, error) {
			calls.Add(1)
			return domain.TokenTypeNonFungible, nil
		},
	}
	c := newTestClassifier(t, client)
	ctx := context.Background()

	result := c.Classify(ctx, "t1")
	assert.True(t, result.IsNFT)
	assert.Equal(t, domain.TokenTypeNonFungible, result.ClassifiedAs)

	// Warm cache: the second call issues zero upstream calls.
	result = c.Classify(ctx, "t1")
	assert.True(t, result.IsNFT)
	assert.Equal(t, int64(1), calls.Load())
}

func TestClassifier_NotFoundCachedAsStableNegative(t *testing.T) {
	var calls atomic.Int64
	client := &stubClient{
		guessTokenTypeFn: func(ctx context.Context, tokenID string) (string, error) {
			calls.Add(1)
			return "", domain.ErrNotFound
		},
	}
	c := newTestClassifier(t, client)
	ctx := context.Background()

	result := c.Classify(ctx, "gone")
	assert.False(t, result.IsNFT)
	assert.Equal(t, domain.TokenTypeNonExistent, result.ClassifiedAs)

	c.Classify(ctx, "gone")
	assert.Equal(t, int64(1), calls.Load(), "not-found must be cached")
}

func TestClassifier_TransientErrorNotCached(t *testing.T) {
	var calls atomic.Int64
	client := &stubClient{
		guessTokenTypeFn: func(ctx context.Context, tokenID string) (string, error) {
			calls.Add(1)
			return "", fmt.Errorf("%w: connection reset", domain.ErrUpstreamUnavailable)
		},
	}
	c := newTestClassifier(t, client)
	ctx := context.Background()

	result := c.Classify(ctx, "t1")
	assert.False(t, result.IsNFT)
	assert.Equal(t, domain.TokenTypeUnknown, result.ClassifiedAs)

	// A transient failure is not a fact about the token; retry happens.
	c.Classify(ctx, "t1")
	assert.Equal(t, int64(2), calls.Load())
}

func TestClassifier_BatchMergesCachedAndFetched(t *testing.T) {
	var calls atomic.Int64
	client := &stubClient{
		guessTokenTypeFn: func(ctx context.Context, tokenID string) (string, error) {
			calls.Add(1)
			if tokenID == "nft1" {
				return domain.TokenTypeNonFungible, nil
			}
			return domain.TokenTypeFungible, nil
		},
	}
	c := newTestClassifier(t, client)
	ctx := context.Background()

	// Warm one entry.
	c.Classify(ctx, "warm")
	require.Equal(t, int64(1), calls.Load())

	ids := []string{"warm", "nft1", "t2", "t3", "t4", "t5", "t6"}
	results := c.ClassifyBatch(ctx, ids)

	require.Len(t, results, len(ids))
	assert.True(t, results["nft1"].IsNFT)
	assert.False(t, results["t2"].IsNFT)
	// Six uncached ids, one call each; the warm one costs nothing.
	assert.Equal(t, int64(7), calls.Load())
}
