package history

import (
	"context"
	"fmt"

	"alephium-gateway/internal/domain"
)

// stubClient implements node.Client with overridable behavior per call.
type stubClient struct {
	getBalanceFn             func(ctx context.Context, address string) (*domain.AddressBalance, error)
	getAddressTransactionsFn func(ctx context.Context, address string, page, limit int) ([]domain.Transaction, error)
	getBalanceHistoryFn      func(ctx context.Context, address string, fromTs, toTs int64) ([]domain.HistoryAPIPoint, error)
}

func (s *stubClient) GetBalance(ctx context.Context, address string) (*domain.AddressBalance, error) {
	if s.getBalanceFn == nil {
		return nil, fmt.Errorf("not implemented")
	}
	return s.getBalanceFn(ctx, address)
}

func (s *stubClient) GetUTXOs(ctx context.Context, address string) ([]domain.UTXO, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GuessTokenType(ctx context.Context, tokenID string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (s *stubClient) GetTokenMetadata(ctx context.Context, tokenID string) (*domain.TokenMetadata, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GetNFTMetadata(ctx context.Context, tokenID string) (*domain.NFTPointer, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) GetAddressTransactions(ctx context.Context, address string, page, limit int) ([]domain.Transaction, error) {
	if s.getAddressTransactionsFn == nil {
		return nil, fmt.Errorf("not implemented")
	}
	return s.getAddressTransactionsFn(ctx, address, page, limit)
}

func (s *stubClient) GetBalanceHistory(ctx context.Context, address string, fromTs, toTs int64) ([]domain.HistoryAPIPoint, error) {
	if s.getBalanceHistoryFn == nil {
		return nil, fmt.Errorf("not implemented")
	}
	return s.getBalanceHistoryFn(ctx, address, fromTs, toTs)
}

func (s *stubClient) GetNetworkStats(ctx context.Context) (*domain.NetworkStats, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubClient) FetchJSON(ctx context.Context, url string, v any) error {
	return fmt.Errorf("not implemented")
}
