package tokens

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
	"alephium-gateway/internal/node"
)

// Batch classification pacing. Chunks are small and spaced out so a
// cold wallet with hundreds of tokens does not burst the node even
// under the gateway's own pacing.
const (
	classifyChunkSize    = 5
	defaultChunkInterval = 200 * time.Millisecond
)

// Classifier determines fungible-vs-non-fungible type for token ids.
// Classifications are permanent facts, so the type cache never expires;
// only transient classification failures stay uncached.
type Classifier struct {
	client        node.Client
	gw            *gateway.Gateway
	cache         *cache.Cache[domain.TokenType]
	logger        *log.Logger
	chunkInterval time.Duration
}

// NewClassifier creates a classifier. The cache should be configured
// with an indefinite TTL.
func NewClassifier(client node.Client, gw *gateway.Gateway, typeCache *cache.Cache[domain.TokenType], logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Classifier{
		client:        client,
		gw:            gw,
		cache:         typeCache,
		logger:        logger,
		chunkInterval: defaultChunkInterval,
	}
}

// Classify returns the token's type, consulting the cache first.
// Failures never propagate: a transient error yields an uncached
// "unknown", while an authoritative not-found is cached as a stable
// negative.
func (c *Classifier) Classify(ctx context.Context, tokenID string) domain.TokenType {
	if cached, ok := c.cache.Get(ctx, tokenID); ok {
		return cached
	}

	typ, err := gateway.Do(c.gw, ctx, func(ctx context.Context) (string, error) {
		return c.client.GuessTokenType(ctx, tokenID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// "Does not exist" is a stable fact, cacheable forever.
			result := domain.TokenType{
				TokenID:      tokenID,
				IsNFT:        false,
				ClassifiedAs: domain.TokenTypeNonExistent,
			}
			c.cache.Set(ctx, tokenID, result)
			return result
		}
		c.logger.Printf("classifier: %s: %v", TruncateID(tokenID), err)
		return domain.TokenType{
			TokenID:      tokenID,
			IsNFT:        false,
			ClassifiedAs: domain.TokenTypeUnknown,
		}
	}

	result := domain.TokenType{
		TokenID:      tokenID,
		IsNFT:        typ == domain.TokenTypeNonFungible,
		ClassifiedAs: typ,
	}
	c.cache.Set(ctx, tokenID, result)
	return result
}

// ClassifyBatch classifies a set of token ids. Cached ids are answered
// immediately; the rest are processed in chunks of five with a short
// delay between chunks.
func (c *Classifier) ClassifyBatch(ctx context.Context, tokenIDs []string) map[string]domain.TokenType {
	results := make(map[string]domain.TokenType, len(tokenIDs))

	var uncached []string
	for _, id := range tokenIDs {
		if cached, ok := c.cache.Get(ctx, id); ok {
			results[id] = cached
		} else {
			uncached = append(uncached, id)
		}
	}

	for start := 0; start < len(uncached); start += classifyChunkSize {
		end := start + classifyChunkSize
		if end > len(uncached) {
			end = len(uncached)
		}
		chunk := uncached[start:end]

		chunkResults := make([]domain.TokenType, len(chunk))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range chunk {
			g.Go(func() error {
				chunkResults[i] = c.Classify(gctx, id)
				return nil
			})
		}
		// Classify never returns an error; the group only propagates
		// context cancellation.
		_ = g.Wait()

		for i, id := range chunk {
			results[id] = chunkResults[i]
		}

		if end < len(uncached) {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(c.chunkInterval):
			}
		}
	}

	return results
}
