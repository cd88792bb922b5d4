// Package node wraps the remote node and explorer APIs behind a small
// client interface. Everything above this package works with domain
// types; the wire formats stay in here.
package node

import (
	"context"

	"alephium-gateway/internal/domain"
)

// Client is the remote data source consumed by the service layer.
// Implementations map transport failures onto the domain error
// taxonomy: domain.ErrNotFound for authoritative negatives,
// domain.ErrRestricted for refused metadata hosts and
// domain.ErrUpstreamUnavailable for everything transient.
type Client interface {
	// GetBalance returns the current balance of an address.
	GetBalance(ctx context.Context, address string) (*domain.AddressBalance, error)

	// GetUTXOs returns the unspent outputs held by an address.
	GetUTXOs(ctx context.Context, address string) ([]domain.UTXO, error)

	// GuessTokenType asks the node to classify a token's standard.
	GuessTokenType(ctx context.Context, tokenID string) (string, error)

	// GetTokenMetadata fetches on-chain fungible-token metadata.
	// Name and symbol arrive hex-encoded.
	GetTokenMetadata(ctx context.Context, tokenID string) (*domain.TokenMetadata, error)

	// GetNFTMetadata fetches the on-chain pointer to an NFT's
	// off-chain metadata document.
	GetNFTMetadata(ctx context.Context, tokenID string) (*domain.NFTPointer, error)

	// GetAddressTransactions pages through an address's confirmed
	// transactions, newest first.
	GetAddressTransactions(ctx context.Context, address string, page, limit int) ([]domain.Transaction, error)

	// GetBalanceHistory tries the candidate authoritative history
	// endpoints in order. Returns domain.ErrNotFound if none serves a
	// well-formed, non-empty series.
	GetBalanceHistory(ctx context.Context, address string, fromTs, toTs int64) ([]domain.HistoryAPIPoint, error)

	// GetNetworkStats returns a chain health summary.
	GetNetworkStats(ctx context.Context) (*domain.NetworkStats, error)

	// FetchJSON fetches an arbitrary HTTPS metadata document into v.
	FetchJSON(ctx context.Context, url string, v any) error
}
