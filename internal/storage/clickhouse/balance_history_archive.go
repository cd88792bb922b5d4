package clickhouse

import (
	"context"
	"fmt"

	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/storage"
)

// BalanceHistoryArchive implements storage.BalanceHistoryArchive using
// ClickHouse.
type BalanceHistoryArchive struct {
	conn *Conn
}

// NewBalanceHistoryArchive creates a new BalanceHistoryArchive.
func NewBalanceHistoryArchive(conn *Conn) *BalanceHistoryArchive {
	return &BalanceHistoryArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.BalanceHistoryArchive = (*BalanceHistoryArchive)(nil)

// InsertBulk stores a resolved series for an address. The
// ReplacingMergeTree engine collapses repeated writes for the same
// (address, timestamp) to the latest one.
func (a *BalanceHistoryArchive) InsertBulk(ctx context.Context, address string, points []domain.BalanceHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO balance_history (address, timestamp_ms, date, balance, source)
	`)
	if err != nil {
		return fmt.Errorf("prepare balance history batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(address, p.Timestamp, p.Date, p.Balance, p.Source); err != nil {
			return fmt.Errorf("append balance history point: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send balance history batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves archived points within [fromTs, toTs],
// ordered by timestamp ASC.
func (a *BalanceHistoryArchive) GetByAddress(ctx context.Context, address string, fromTs, toTs int64) ([]domain.BalanceHistoryPoint, error) {
	rows, err := a.conn.Query(ctx, `
		SELECT timestamp_ms, date, balance, source
		FROM balance_history FINAL
		WHERE address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`, address, fromTs, toTs)
	if err != nil {
		return nil, fmt.Errorf("query balance history: %w", err)
	}
	defer rows.Close()

	var points []domain.BalanceHistoryPoint
	for rows.Next() {
		var p domain.BalanceHistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.Date, &p.Balance, &p.Source); err != nil {
			return nil, fmt.Errorf("scan balance history point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance history: %w", err)
	}
	return points, nil
}
