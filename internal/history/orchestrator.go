package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/dedupe"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
	"alephium-gateway/internal/node"
	"alephium-gateway/internal/storage"
)

// OrchestratorOptions carries the dependencies for the history
// orchestrator. Archive is optional; everything else is required.
type OrchestratorOptions struct {
	Client        node.Client
	Gateway       *gateway.Gateway
	Cache         *cache.Cache[domain.CachedBalanceHistory]
	Reconstructor *Reconstructor
	Simulator     *Simulator
	Archive       storage.BalanceHistoryArchive
	Logger        *log.Logger
}

// Orchestrator resolves a balance history series through a fixed
// fallback chain: cached series, authoritative endpoint, transaction
// reconstruction, simulation. Whatever stage produces the series, the
// result is cached and archived so repeat requests short-circuit.
type Orchestrator struct {
	client  node.Client
	gw      *gateway.Gateway
	cache   *cache.Cache[domain.CachedBalanceHistory]
	recon   *Reconstructor
	sim     *Simulator
	archive storage.BalanceHistoryArchive
	logger  *log.Logger
	nowFn   func() time.Time

	inflight dedupe.Group[[]domain.BalanceHistoryPoint]
}

// NewOrchestrator creates an orchestrator from opts.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		client:  opts.Client,
		gw:      opts.Gateway,
		cache:   opts.Cache,
		recon:   opts.Reconstructor,
		sim:     opts.Simulator,
		archive: opts.Archive,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// Fetch returns days+1 daily points for address, oldest to newest.
// Concurrent calls for the same (address, days) share one resolution.
// The returned error is only non-nil for invalid input: the chain
// bottoms out at simulation, which cannot fail.
func (o *Orchestrator) Fetch(ctx context.Context, address string, days int) ([]domain.BalanceHistoryPoint, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", domain.ErrInvalidInput)
	}
	if days < 1 || days > MaxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, MaxHistoryDays)
	}

	key := fmt.Sprintf("%s_%d", address, days)

	if cached, ok := o.cache.Get(ctx, key); ok && len(cached.Data) > 0 {
		return cached.Data, nil
	}

	return o.inflight.Do(key, func() ([]domain.BalanceHistoryPoint, error) {
		// Another waiter may have populated the cache while we queued.
		if cached, ok := o.cache.Get(ctx, key); ok && len(cached.Data) > 0 {
			return cached.Data, nil
		}
		points := o.resolve(ctx, address, days)
		o.persist(ctx, key, address, days, points)
		return points, nil
	})
}

// resolve walks the fallback chain until a stage yields a series.
func (o *Orchestrator) resolve(ctx context.Context, address string, days int) []domain.BalanceHistoryPoint {
	points, err := o.tryAuthoritative(ctx, address, days)
	if err == nil {
		return points
	}
	if !errors.Is(err, domain.ErrNotFound) {
		o.logger.Printf("history: %s: authoritative fetch failed: %v", address, err)
	}

	points, err = o.recon.Reconstruct(ctx, address, days)
	if err == nil {
		return points
	}
	o.logger.Printf("history: %s: reconstruction failed, simulating: %v", address, err)

	return o.trySimulate(ctx, address, days)
}

// tryAuthoritative queries the candidate history endpoints and
// normalizes the raw series into one point per calendar day, tagged
// with the api source.
func (o *Orchestrator) tryAuthoritative(ctx context.Context, address string, days int) ([]domain.BalanceHistoryPoint, error) {
	now := o.nowFn().UTC()
	from := now.AddDate(0, 0, -days)
	fromTs := from.UnixMilli() - dayMillis // one extra day of margin for carry-forward

	raw, err := gateway.Do(o.gw, ctx, func(ctx context.Context) ([]domain.HistoryAPIPoint, error) {
		return o.client.GetBalanceHistory(ctx, address, fromTs, now.UnixMilli())
	})
	if err != nil {
		return nil, err
	}

	return normalizeAPISeries(raw, now, days, o.logger)
}

// normalizeAPISeries buckets raw endpoint points by UTC calendar day,
// keeps the latest sample per day and carries the balance forward over
// days the endpoint skipped. Malformed balances are dropped; a series
// with no usable point is a not-found.
func normalizeAPISeries(raw []domain.HistoryAPIPoint, now time.Time, days int, logger *log.Logger) ([]domain.BalanceHistoryPoint, error) {
	type sample struct {
		ts      int64
		balance float64
	}
	byDay := make(map[string]sample)
	var earliest *sample

	for _, p := range raw {
		d, err := decimal.NewFromString(p.Balance)
		if err != nil {
			// A garbage sample must not masquerade as an authoritative
			// zero; it contributes nothing.
			logger.Printf("history: dropping sample at %d with bad balance %q: %v", p.Timestamp, p.Balance, err)
			continue
		}
		bal := d.Shift(-attoDigits).InexactFloat64()
		day := time.UnixMilli(p.Timestamp).UTC().Format("2006-01-02")
		if prev, ok := byDay[day]; !ok || p.Timestamp > prev.ts {
			byDay[day] = sample{ts: p.Timestamp, balance: bal}
		}
		if earliest == nil || p.Timestamp < earliest.ts {
			earliest = &sample{ts: p.Timestamp, balance: bal}
		}
	}
	if earliest == nil {
		return nil, fmt.Errorf("%w: history series empty after normalization", domain.ErrNotFound)
	}

	points := make([]domain.BalanceHistoryPoint, days+1)
	carry := earliest.balance
	for back := days; back >= 0; back-- {
		day := now.AddDate(0, 0, -back)
		date := day.Format("2006-01-02")
		if s, ok := byDay[date]; ok {
			carry = s.balance
		}
		points[days-back] = domain.BalanceHistoryPoint{
			Date:      date,
			Balance:   carry,
			Timestamp: endOfDayMillis(day),
			Source:    domain.SourceAPI,
		}
	}
	return points, nil
}

// trySimulate is the terminal stage. It anchors at the live balance
// when it can fetch one and at zero otherwise.
func (o *Orchestrator) trySimulate(ctx context.Context, address string, days int) []domain.BalanceHistoryPoint {
	anchor := 0.0
	balance, err := gateway.Do(o.gw, ctx, func(ctx context.Context) (*domain.AddressBalance, error) {
		return o.client.GetBalance(ctx, address)
	})
	if err != nil {
		o.logger.Printf("history: %s: balance fetch for simulation failed, anchoring at zero: %v", address, err)
	} else {
		anchor = parseAttoBalance(balance.Balance, o.logger).InexactFloat64()
	}
	return o.sim.Simulate(anchor, days)
}

// persist writes the resolved series through the cache and, when an
// archive is configured, into long-term storage. Archive failures are
// logged; the series is already on its way to the caller.
func (o *Orchestrator) persist(ctx context.Context, key, address string, days int, points []domain.BalanceHistoryPoint) {
	o.cache.Set(ctx, key, domain.CachedBalanceHistory{
		Data:        points,
		LastUpdated: o.nowFn().UnixMilli(),
		Address:     address,
		Days:        days,
	})

	if o.archive == nil {
		return
	}
	if err := o.archive.InsertBulk(ctx, address, points); err != nil {
		o.logger.Printf("history: %s: archive write failed: %v", address, err)
	}
}
