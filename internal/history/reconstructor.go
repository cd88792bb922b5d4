package history

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
	"alephium-gateway/internal/node"
)

// Transaction window sizing. The window must be deep enough that the
// oldest requested day sits inside it, or the early points degrade.
const (
	minTxWindow = 200
	txsPerDay   = 10
	txPageLimit = 100
	maxTxPages  = 20
	dayMillis   = int64(24 * time.Hour / time.Millisecond)
)

// MaxHistoryDays bounds the requested range. Every stage materializes
// days+1 points, so an unbounded value is an allocation hazard.
const MaxHistoryDays = 365

// ReconstructionTolerance is the accepted discrepancy, in whole base
// units, between the forward-validated series and the live balance.
// One central epsilon: 0.001 of the base asset.
var ReconstructionTolerance = decimal.RequireFromString("0.001")

// Reconstructor synthesizes a daily balance series by walking the
// transaction log backward from the live balance.
type Reconstructor struct {
	client node.Client
	gw     *gateway.Gateway
	logger *log.Logger
	nowFn  func() time.Time
}

// NewReconstructor creates a reconstructor.
func NewReconstructor(client node.Client, gw *gateway.Gateway, logger *log.Logger) *Reconstructor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Reconstructor{
		client: client,
		gw:     gw,
		logger: logger,
		nowFn:  time.Now,
	}
}

// Reconstruct returns days+1 points ordered oldest to newest, the last
// one being today. The balance at each calendar day equals the live
// balance minus every delta that happened strictly after that day's
// end. Negative intermediate balances indicate missing upstream data
// and are clamped to zero.
func (r *Reconstructor) Reconstruct(ctx context.Context, address string, days int) ([]domain.BalanceHistoryPoint, error) {
	if days < 1 || days > MaxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, MaxHistoryDays)
	}

	balance, err := gateway.Do(r.gw, ctx, func(ctx context.Context) (*domain.AddressBalance, error) {
		return r.client.GetBalance(ctx, address)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch current balance: %w", err)
	}
	current := parseAttoBalance(balance.Balance, r.logger)

	txs, err := r.fetchTransactionWindow(ctx, address, days)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction window: %w", err)
	}

	// Precompute deltas once; the backward walk consumes them from the
	// newest end.
	deltas := make([]decimal.Decimal, len(txs))
	for i, tx := range txs {
		deltas[i] = TransactionDelta(&tx, address, r.logger)
	}

	now := r.nowFn().UTC()
	points := make([]domain.BalanceHistoryPoint, days+1)

	bal := current
	txIdx := len(txs) - 1
	for back := 0; back <= days; back++ {
		day := now.AddDate(0, 0, -back)
		end := endOfDayMillis(day)

		// Today's point anchors at the live balance; every earlier
		// day unwinds the deltas that happened after its end.
		for txIdx >= 0 && txs[txIdx].Timestamp > end {
			bal = bal.Sub(deltas[txIdx])
			txIdx--
		}

		val := bal
		if val.IsNegative() {
			// A negative balance means the window missed deposits.
			val = decimal.Zero
		}

		points[days-back] = domain.BalanceHistoryPoint{
			Date:      day.Format("2006-01-02"),
			Balance:   val.InexactFloat64(),
			Timestamp: end,
			Source:    domain.SourceCalculated,
		}
	}

	r.validate(address, points, txs, current)

	return points, nil
}

// fetchTransactionWindow pages through the address's history until the
// window is at least 10×days transactions deep (minimum 200), sorted
// ascending by time.
func (r *Reconstructor) fetchTransactionWindow(ctx context.Context, address string, days int) ([]domain.Transaction, error) {
	target := days * txsPerDay
	if target < minTxWindow {
		target = minTxWindow
	}

	var txs []domain.Transaction
	for page := 1; page <= maxTxPages && len(txs) < target; page++ {
		batch, err := gateway.Do(r.gw, ctx, func(ctx context.Context) ([]domain.Transaction, error) {
			return r.client.GetAddressTransactions(ctx, address, page, txPageLimit)
		})
		if err != nil {
			if len(txs) > 0 {
				// A partial window still reconstructs the recent days.
				r.logger.Printf("reconstructor: %s: page %d failed, using %d txs: %v",
					address, page, len(txs), err)
				break
			}
			return nil, err
		}
		txs = append(txs, batch...)
		if len(batch) < txPageLimit {
			break
		}
	}

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp < txs[j].Timestamp
	})
	return txs, nil
}

// validate replays the series forward from its oldest point and
// compares the result against the live balance. A discrepancy beyond
// the tolerance flags reduced confidence (multi-hop swaps the delta
// calculator cannot fully attribute, or a too-shallow window); the
// output stays usable.
func (r *Reconstructor) validate(address string, points []domain.BalanceHistoryPoint, txs []domain.Transaction, current decimal.Decimal) {
	if len(points) == 0 {
		return
	}

	replayed := decimal.NewFromFloat(points[0].Balance)
	oldestEnd := points[0].Timestamp
	for i := range txs {
		if txs[i].Timestamp > oldestEnd {
			replayed = replayed.Add(TransactionDelta(&txs[i], address, r.logger))
		}
	}

	diff := replayed.Sub(current).Abs()
	if diff.GreaterThan(ReconstructionTolerance) {
		r.logger.Printf("reconstructor: %s: replayed balance %s differs from live %s by %s (reduced confidence)",
			address, replayed, current, diff)
	}
}

// endOfDayMillis returns the last millisecond of t's UTC calendar day.
func endOfDayMillis(t time.Time) int64 {
	t = t.UTC()
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return dayStart.UnixMilli() + dayMillis - 1
}
