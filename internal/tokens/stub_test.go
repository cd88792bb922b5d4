package tokens

import (
	"context"
	"fmt"

	"alephium-gateway/internal/domain"
)

// stubClient implements node.Client with overridable behavior per call.
type stubClient struct {
	guessTokenTypeFn   func(ctx context.Context, tokenID string) (string, error)
	getTokenMetadataFn func(ctx context.Context, tokenID string) (*domain.TokenMetadata, error)
	getNFTMetadataFn   func(ctx context.Context, tokenID string) (*domain.NFTPointer, error)
	fetchJSONFn        func(ctx context.Context, url string, v any) error
}

func (s *stubClient) GetBalance(ctx context.Context, address string) (*domain.AddressBalance, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GetUTXOs(ctx context.Context, address string) ([]domain.UTXO, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GuessTokenType(ctx context.Context, tokenID string) (string, error) {
	if s.guessTokenTypeFn == nil {
		return "", fmt.Errorf("not implemented")
	}
	return s.guessTokenTypeFn(ctx, tokenID)
}

func (s *stubClient) GetTokenMetadata(ctx context.Context, tokenID string) (*domain.TokenMetadata, error) {
	if s.getTokenMetadataFn == nil {
		return nil, fmt.Errorf("not implemented")
	}
	return s.getTokenMetadataFn(ctx, tokenID)
}

func (s *stubClient) GetNFTMetadata(ctx context.Context, tokenID string) (*domain.NFTPointer, error) {
	if s.getNFTMetadataFn == nil {
		return nil, fmt.Errorf("not implemented")
	}
	return s.getNFTMetadataFn(ctx, tokenID)
}

func (s *stubClient) GetAddressTransactions(ctx context.Context, address string, page, limit int) ([]domain.Transaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GetBalanceHistory(ctx context.Context, address string, fromTs, toTs int64) ([]domain.HistoryAPIPoint, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GetNetworkStats(ctx context.Context) (*domain.NetworkStats, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) FetchJSON(ctx context.Context, url string, v any) error {
	if s.fetchJSONFn == nil {
		return fmt.Errorf("not implemented")
	}
	return s.fetchJSONFn(ctx, url, v)
}
