package tokens

import (
	"context"
	"errors"
	"io"
	"log"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
	"alephium-gateway/internal/node"
)

// Enricher merges on-chain metadata, the community token list and
// graceful fallback synthesis into one normalized record per token.
type Enricher struct {
	client    node.Client
	gw        *gateway.Gateway
	cache     *cache.Cache[domain.TokenMetadata]
	tokenList map[string]domain.TokenListEntry
	logger    *log.Logger
}

// NewEnricher creates an enricher. The metadata cache should be
// configured with an indefinite TTL; tokenList may be nil.
func NewEnricher(client node.Client, gw *gateway.Gateway, metaCache *cache.Cache[domain.TokenMetadata], tokenList map[string]domain.TokenListEntry, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Enricher{
		client:    client,
		gw:        gw,
		cache:     metaCache,
		tokenList: tokenList,
		logger:    logger,
	}
}

// Enrich combines a raw balance amount with the token's metadata.
// It never fails: every error path degrades to a placeholder record.
func (e *Enricher) Enrich(ctx context.Context, tokenID, rawAmount string, isNFT bool) domain.EnrichedToken {
	var meta domain.TokenMetadata
	if isNFT {
		meta = e.nftMetadata(ctx, tokenID)
	} else {
		meta = e.fungibleMetadata(ctx, tokenID)
	}

	return domain.EnrichedToken{
		TokenID:         tokenID,
		Amount:          rawAmount,
		FormattedAmount: FormatTokenAmount(rawAmount, meta.Decimals),
		IsNFT:           isNFT,
		Metadata:        meta,
	}
}

// fungibleMetadata resolves metadata for a fungible token: cache, then
// on-chain fetch through the gateway, then the token list, then a
// synthesized placeholder.
func (e *Enricher) fungibleMetadata(ctx context.Context, tokenID string) domain.TokenMetadata {
	if cached, ok := e.cache.Get(ctx, tokenID); ok {
		return cached
	}

	meta, err := gateway.Do(e.gw, ctx, func(ctx context.Context) (*domain.TokenMetadata, error) {
		return e.client.GetTokenMetadata(ctx, tokenID)
	})
	if err != nil {
		e.logger.Printf("enricher: on-chain metadata for %s: %v", TruncateID(tokenID), err)

		if entry, ok := e.tokenList[tokenID]; ok {
			fallback := metadataFromListEntry(entry)
			if errors.Is(err, domain.ErrNotFound) {
				e.cache.Set(ctx, tokenID, fallback)
			}
			return fallback
		}
		placeholder := placeholderMetadata(tokenID)
		if errors.Is(err, domain.ErrNotFound) {
			e.cache.Set(ctx, tokenID, placeholder)
		}
		// Transient failures stay uncached so a later call can retry.
		return placeholder
	}

	result := domain.TokenMetadata{
		ID:          tokenID,
		Name:        DecodeHexString(meta.RawName),
		Symbol:      DecodeHexString(meta.RawSymbol),
		Decimals:    meta.Decimals,
		RawName:     meta.RawName,
		RawSymbol:   meta.RawSymbol,
		TotalSupply: meta.TotalSupply,
	}

	// The curated list contributes presentation fields the chain
	// cannot carry.
	if entry, ok := e.tokenList[tokenID]; ok {
		result.LogoURI = entry.LogoURI
		result.Description = entry.Description
	}

	e.cache.Set(ctx, tokenID, result)
	return result
}

// nftMetadata resolves metadata for a non-fungible token via its
// on-chain tokenURI pointer and the off-chain document behind it.
func (e *Enricher) nftMetadata(ctx context.Context, tokenID string) domain.TokenMetadata {
	if cached, ok := e.cache.Get(ctx, tokenID); ok {
		return cached
	}

	ptr, err := gateway.Do(e.gw, ctx, func(ctx context.Context) (*domain.NFTPointer, error) {
		return e.client.GetNFTMetadata(ctx, tokenID)
	})
	if err != nil {
		e.logger.Printf("enricher: nft pointer for %s: %v", TruncateID(tokenID), err)
		placeholder := placeholderMetadata(tokenID)
		if errors.Is(err, domain.ErrNotFound) {
			e.cache.Set(ctx, tokenID, placeholder)
		}
		return placeholder
	}

	meta, restricted := e.resolveNFTDocument(ctx, tokenID, ptr.TokenURI)
	if restricted {
		// A refused host is an expected, stable condition.
		e.cache.Set(ctx, tokenID, meta)
		return meta
	}
	if meta.Name != "" || meta.LogoURI != "" {
		e.cache.Set(ctx, tokenID, meta)
	}
	return meta
}

// resolveNFTDocument fetches the off-chain metadata document, walking
// the gateway candidates in order. The second return value reports a
// restricted host.
func (e *Enricher) resolveNFTDocument(ctx context.Context, tokenID, tokenURI string) (domain.TokenMetadata, bool) {
	meta := domain.TokenMetadata{
		ID:       tokenID,
		TokenURI: tokenURI,
	}

	for _, u := range resolveTokenURI(tokenURI) {
		var doc map[string]any
		err := e.client.FetchJSON(ctx, u, &doc)
		if err != nil {
			if errors.Is(err, domain.ErrRestricted) {
				meta.Name = TruncateID(tokenID)
				meta.Symbol = "NFT"
				meta.Description = "Metadata restricted by host"
				return meta, true
			}
			e.logger.Printf("enricher: fetch %s: %v", u, err)
			continue
		}

		if name, ok := doc["name"].(string); ok {
			meta.Name = name
		}
		if desc, ok := doc["description"].(string); ok {
			meta.Description = desc
		}
		meta.LogoURI = extractImageURL(doc)
		if meta.Name == "" {
			meta.Name = TruncateID(tokenID)
		}
		meta.Symbol = "NFT"
		return meta, false
	}

	// Every gateway failed; synthesize without caching.
	meta.Name = TruncateID(tokenID)
	meta.Symbol = "NFT"
	return meta, false
}

// metadataFromListEntry builds a metadata record from the community
// token list alone.
func metadataFromListEntry(entry domain.TokenListEntry) domain.TokenMetadata {
	return domain.TokenMetadata{
		ID:          entry.ID,
		Name:        entry.Name,
		Symbol:      entry.Symbol,
		Decimals:    entry.Decimals,
		LogoURI:     entry.LogoURI,
		Description: entry.Description,
	}
}

// placeholderMetadata synthesizes a record for a token nothing knows
// about: the truncated id stands in for name and symbol.
func placeholderMetadata(tokenID string) domain.TokenMetadata {
	return domain.TokenMetadata{
		ID:     tokenID,
		Name:   TruncateID(tokenID),
		Symbol: TruncateID(tokenID),
	}
}
