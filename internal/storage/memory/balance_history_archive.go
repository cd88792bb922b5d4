package memory

import (
	"context"
	"sort"
	"sync"

	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/storage"
)

// BalanceHistoryArchive is an in-memory implementation of
// storage.BalanceHistoryArchive.
type BalanceHistoryArchive struct {
	mu     sync.RWMutex
	byAddr map[string]map[int64]domain.BalanceHistoryPoint // keyed by address, then timestamp
}

// NewBalanceHistoryArchive creates a new in-memory archive.
func NewBalanceHistoryArchive() *BalanceHistoryArchive {
	return &BalanceHistoryArchive{
		byAddr: make(map[string]map[int64]domain.BalanceHistoryPoint),
	}
}

// Compile-time interface check.
var _ storage.BalanceHistoryArchive = (*BalanceHistoryArchive)(nil)

// InsertBulk stores a series, replacing points that share a timestamp.
func (a *BalanceHistoryArchive) InsertBulk(_ context.Context, address string, points []domain.BalanceHistoryPoint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	days, ok := a.byAddr[address]
	if !ok {
		days = make(map[int64]domain.BalanceHistoryPoint, len(points))
		a.byAddr[address] = days
	}
	for _, p := range points {
		days[p.Timestamp] = p
	}
	return nil
}

// GetByAddress retrieves points within [fromTs, toTs], ordered by
// timestamp ASC.
func (a *BalanceHistoryArchive) GetByAddress(_ context.Context, address string, fromTs, toTs int64) ([]domain.BalanceHistoryPoint, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []domain.BalanceHistoryPoint
	for ts, p := range a.byAddr[address] {
		if ts >= fromTs && ts <= toTs {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}
