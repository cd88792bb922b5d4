// Package storage defines the long-term archive interface for balance
// history series, beyond the short freshness window of the KV cache.
package storage

import (
	"context"

	"alephium-gateway/internal/domain"
)

// BalanceHistoryArchive stores resolved history points per address for
// long-range charting. Writes are idempotent per (address, timestamp):
// a later write for the same day replaces the earlier one.
type BalanceHistoryArchive interface {
	// InsertBulk stores a resolved series for an address.
	InsertBulk(ctx context.Context, address string, points []domain.BalanceHistoryPoint) error

	// GetByAddress retrieves archived points within [fromTs, toTs]
	// (inclusive, Unix milliseconds), ordered by timestamp ASC.
	GetByAddress(ctx context.Context, address string, fromTs, toTs int64) ([]domain.BalanceHistoryPoint, error)
}
