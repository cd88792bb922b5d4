// Package service is the application surface: address token portfolios,
// balance history, network stats and cache administration. It composes
// the classifier, enricher and history orchestrator behind input
// validation and request deduplication.
package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/dedupe"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
	"alephium-gateway/internal/history"
	"alephium-gateway/internal/node"
	"alephium-gateway/internal/observability"
	"alephium-gateway/internal/storage"
	"alephium-gateway/internal/tokens"
)

// networkStatsKey is the single cache key for chain-wide stats.
const networkStatsKey = "network"

// Options carries the service dependencies. Metrics, Blocks and
// Archive are optional; everything else is required.
type Options struct {
	Client     node.Client
	Gateway    *gateway.Gateway
	Classifier *tokens.Classifier
	Enricher   *tokens.Enricher
	History    *history.Orchestrator
	TypeCache  *cache.Cache[domain.TokenType]
	MetaCache  *cache.Cache[domain.TokenMetadata]
	StatsCache *cache.Cache[domain.NetworkStats]
	Archive    storage.BalanceHistoryArchive
	Metrics    *observability.Metrics
	Blocks     <-chan node.BlockEvent
	Logger     *log.Logger
}

// CacheStats summarizes the token caches for the admin surface.
type CacheStats struct {
	Types    cache.Stats `json:"types"`
	Metadata cache.Stats `json:"metadata"`
}

// Service implements the public operations.
type Service struct {
	client     node.Client
	gw         *gateway.Gateway
	classifier *tokens.Classifier
	enricher   *tokens.Enricher
	history    *history.Orchestrator
	typeCache  *cache.Cache[domain.TokenType]
	metaCache  *cache.Cache[domain.TokenMetadata]
	statsCache *cache.Cache[domain.NetworkStats]
	archive    storage.BalanceHistoryArchive
	metrics    *observability.Metrics
	logger     *log.Logger

	portfolio dedupe.Group[[]domain.EnrichedToken]
	stats     dedupe.Group[*domain.NetworkStats]

	watcherDone chan struct{}
}

// New creates the service and, when a block feed is supplied, starts
// the watcher that invalidates the network-stats cache on new blocks.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Service{
		client:      opts.Client,
		gw:          opts.Gateway,
		classifier:  opts.Classifier,
		enricher:    opts.Enricher,
		history:     opts.History,
		typeCache:   opts.TypeCache,
		metaCache:   opts.MetaCache,
		statsCache:  opts.StatsCache,
		archive:     opts.Archive,
		metrics:     opts.Metrics,
		logger:      logger,
		watcherDone: make(chan struct{}),
	}

	if opts.Blocks != nil {
		go s.watchBlocks(opts.Blocks)
	} else {
		close(s.watcherDone)
	}

	return s
}

// Close waits for the block watcher to drain. The feed owner must have
// closed the feed first (BlockSubscriber.Close does that); caches and
// the gateway are owned by the caller.
func (s *Service) Close() {
	<-s.watcherDone
}

// watchBlocks drops the stats cache entry whenever a block lands, so
// the next FetchNetworkStats reflects the new height immediately.
func (s *Service) watchBlocks(events <-chan node.BlockEvent) {
	defer close(s.watcherDone)
	for range events {
		s.statsCache.Clear(context.Background(), networkStatsKey)
	}
}

// validateAddress checks that address is plausible base58. Full
// checksum verification belongs to the node; this only rejects input
// that cannot possibly be an address.
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty address", domain.ErrInvalidInput)
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: address %q is not base58", domain.ErrInvalidInput, address)
	}
	if len(decoded) < 2 {
		return fmt.Errorf("%w: address %q too short", domain.ErrInvalidInput, address)
	}
	return nil
}

// GetAddressTokens returns the enriched fungible tokens held by an
// address. Tokens the node says do not exist are dropped; tokens whose
// classification is transiently unknown are treated as fungible so the
// holder still sees them.
func (s *Service) GetAddressTokens(ctx context.Context, address string) ([]domain.EnrichedToken, error) {
	all, err := s.addressPortfolio(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EnrichedToken, 0, len(all))
	for _, t := range all {
		if !t.IsNFT {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetAddressNFTs returns the enriched non-fungible tokens held by an
// address.
func (s *Service) GetAddressNFTs(ctx context.Context, address string) ([]domain.EnrichedToken, error) {
	all, err := s.addressPortfolio(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EnrichedToken, 0, len(all))
	for _, t := range all {
		if t.IsNFT {
			out = append(out, t)
		}
	}
	return out, nil
}

// addressPortfolio aggregates an address's token balances across its
// UTXOs, classifies and enriches them. Concurrent requests for the
// same address share one pass.
func (s *Service) addressPortfolio(ctx context.Context, address string) ([]domain.EnrichedToken, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	return s.portfolio.Do("portfolio_"+address, func() ([]domain.EnrichedToken, error) {
		utxos, err := gateway.Do(s.gw, ctx, func(ctx context.Context) ([]domain.UTXO, error) {
			return s.client.GetUTXOs(ctx, address)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch utxos for %s: %w", address, err)
		}

		amounts := aggregateTokenAmounts(utxos, s.logger)
		if len(amounts) == 0 {
			return nil, nil
		}

		ids := make([]string, 0, len(amounts))
		for id := range amounts {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		types := s.classifier.ClassifyBatch(ctx, ids)

		out := make([]domain.EnrichedToken, 0, len(ids))
		for _, id := range ids {
			typ := types[id]
			if typ.ClassifiedAs == domain.TokenTypeNonExistent {
				continue
			}
			out = append(out, s.enricher.Enrich(ctx, id, amounts[id], typ.IsNFT))
		}
		return out, nil
	})
}

// aggregateTokenAmounts sums per-token amounts across UTXOs. Amounts
// are integer strings that routinely exceed 2^53, so the sums stay in
// decimal form end to end. Malformed amounts are skipped.
func aggregateTokenAmounts(utxos []domain.UTXO, logger *log.Logger) map[string]string {
	sums := make(map[string]decimal.Decimal)
	for _, u := range utxos {
		for _, t := range u.Tokens {
			amount, err := decimal.NewFromString(t.Amount)
			if err != nil {
				logger.Printf("portfolio: bad token amount %q for %s: %v", t.Amount, tokens.TruncateID(t.ID), err)
				continue
			}
			sums[t.ID] = sums[t.ID].Add(amount)
		}
	}

	out := make(map[string]string, len(sums))
	for id, sum := range sums {
		out[id] = sum.String()
	}
	return out
}

// FetchBalanceHistory returns a daily balance series for an address.
func (s *Service) FetchBalanceHistory(ctx context.Context, address string, days int) ([]domain.BalanceHistoryPoint, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	points, err := s.history.Fetch(ctx, address, days)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil && len(points) > 0 {
		s.metrics.RecordHistoryResolution(points[len(points)-1].Source)
	}
	return points, nil
}

// FetchArchivedHistory reads the long-term archive for an address over
// [fromTs, toTs] in unix milliseconds. Unlike FetchBalanceHistory it
// never re-resolves: it serves exactly what past resolutions persisted,
// which is how charts reach further back than the live cache window.
func (s *Service) FetchArchivedHistory(ctx context.Context, address string, fromTs, toTs int64) ([]domain.BalanceHistoryPoint, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	if fromTs < 0 || toTs < fromTs {
		return nil, fmt.Errorf("%w: bad time range [%d, %d]", domain.ErrInvalidInput, fromTs, toTs)
	}
	if s.archive == nil {
		return nil, fmt.Errorf("%w: no history archive configured", domain.ErrNotFound)
	}

	points, err := s.archive.GetByAddress(ctx, address, fromTs, toTs)
	if err != nil {
		return nil, fmt.Errorf("read archive for %s: %w", address, err)
	}
	return points, nil
}

// FetchNetworkStats returns chain health stats, cached briefly and
// deduplicated so dashboard refreshes cannot stampede the node.
func (s *Service) FetchNetworkStats(ctx context.Context) (*domain.NetworkStats, error) {
	if cached, ok := s.statsCache.Get(ctx, networkStatsKey); ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit("network_stats")
		}
		return &cached, nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss("network_stats")
	}

	return s.stats.Do(networkStatsKey, func() (*domain.NetworkStats, error) {
		if cached, ok := s.statsCache.Get(ctx, networkStatsKey); ok {
			return &cached, nil
		}
		stats, err := gateway.Do(s.gw, ctx, func(ctx context.Context) (*domain.NetworkStats, error) {
			return s.client.GetNetworkStats(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch network stats: %w", err)
		}
		s.statsCache.Set(ctx, networkStatsKey, *stats)
		return stats, nil
	})
}

// ClearTokenCache drops cached classifications and metadata for the
// given token ids, or for every token when called with none.
func (s *Service) ClearTokenCache(ctx context.Context, tokenIDs ...string) {
	s.typeCache.Clear(ctx, tokenIDs...)
	s.metaCache.Clear(ctx, tokenIDs...)
}

// RefreshTokenMetadata forces a token's classification and metadata to
// be re-fetched, bypassing cached values.
func (s *Service) RefreshTokenMetadata(ctx context.Context, tokenID string) (domain.TokenMetadata, error) {
	if tokenID == "" {
		return domain.TokenMetadata{}, fmt.Errorf("%w: empty token id", domain.ErrInvalidInput)
	}

	s.ClearTokenCache(ctx, tokenID)

	typ := s.classifier.Classify(ctx, tokenID)
	if typ.ClassifiedAs == domain.TokenTypeNonExistent {
		return domain.TokenMetadata{}, fmt.Errorf("%w: token %s", domain.ErrNotFound, tokens.TruncateID(tokenID))
	}

	enriched := s.enricher.Enrich(ctx, tokenID, "0", typ.IsNFT)
	return enriched.Metadata, nil
}

// TokenCacheStats reports the contents of both token caches.
func (s *Service) TokenCacheStats(ctx context.Context) CacheStats {
	return CacheStats{
		Types:    s.typeCache.Stats(ctx),
		Metadata: s.metaCache.Stats(ctx),
	}
}
