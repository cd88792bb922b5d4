package history

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/storage"
	memarchive "alephium-gateway/internal/storage/memory"
)

func newTestOrchestrator(t *testing.T, client *stubClient, archive storage.BalanceHistoryArchive) *Orchestrator {
	t.Helper()

	gw := testGateway(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	recon := NewReconstructor(client, gw, nil)
	recon.nowFn = func() time.Time { return now }
	sim := NewSimulator(42)
	sim.nowFn = func() time.Time { return now }

	o := NewOrchestrator(OrchestratorOptions{
		Client:        client,
		Gateway:       gw,
		Cache:         cache.New[domain.CachedBalanceHistory]("test_balance_history_cache_", 30*time.Minute, nil, nil),
		Reconstructor: recon,
		Simulator:     sim,
		Archive:       archive,
	})
	o.nowFn = func() time.Time { return now }
	return o
}

func TestFetchUsesAuthoritativeSeries(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	var historyCalls atomic.Int64
	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			historyCalls.Add(1)
			return []domain.HistoryAPIPoint{
				{Timestamp: now.AddDate(0, 0, -3).UnixMilli(), Balance: attoStr("10")},
				{Timestamp: now.AddDate(0, 0, -1).UnixMilli(), Balance: attoStr("25")},
				{Timestamp: now.Add(-time.Hour).UnixMilli(), Balance: attoStr("20")},
			}, nil
		},
	}

	o := newTestOrchestrator(t, client, nil)

	points, err := o.Fetch(context.Background(), testAddr, 3)
	require.NoError(t, err)
	require.Len(t, points, 4)

	for _, p := range points {
		assert.Equal(t, domain.SourceAPI, p.Source)
	}

	// Sampled days take the latest sample; skipped days carry forward.
	assert.InDelta(t, 10, points[0].Balance, 1e-9) // 3 days back
	assert.InDelta(t, 10, points[1].Balance, 1e-9) // no sample, carried
	assert.InDelta(t, 25, points[2].Balance, 1e-9) // yesterday
	assert.InDelta(t, 20, points[3].Balance, 1e-9) // today

	// A second request is served from cache.
	again, err := o.Fetch(context.Background(), testAddr, 3)
	require.NoError(t, err)
	assert.Equal(t, points, again)
	assert.Equal(t, int64(1), historyCalls.Load())
}

func TestFetchDropsMalformedAuthoritativeSamples(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// The garbage sample is the latest in its day; it must be dropped,
	// not bucketed as a zero balance.
	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			return []domain.HistoryAPIPoint{
				{Timestamp: now.AddDate(0, 0, -1).Add(-2 * time.Hour).UnixMilli(), Balance: attoStr("25")},
				{Timestamp: now.AddDate(0, 0, -1).Add(-time.Hour).UnixMilli(), Balance: "garbage"},
			}, nil
		},
	}

	o := newTestOrchestrator(t, client, nil)

	points, err := o.Fetch(context.Background(), testAddr, 1)
	require.NoError(t, err)
	require.Len(t, points, 2)

	for _, p := range points {
		assert.Equal(t, domain.SourceAPI, p.Source)
		assert.InDelta(t, 25, p.Balance, 1e-9)
	}
}

func TestFetchAllMalformedSamplesFallsThrough(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			return []domain.HistoryAPIPoint{
				{Timestamp: now.Add(-time.Hour).UnixMilli(), Balance: "not-a-number"},
			}, nil
		},
		getBalanceFn: func(_ context.Context, _ string) (*domain.AddressBalance, error) {
			return &domain.AddressBalance{Balance: attoStr("9")}, nil
		},
		getAddressTransactionsFn: func(_ context.Context, _ string, _, _ int) ([]domain.Transaction, error) {
			return nil, nil
		},
	}

	o := newTestOrchestrator(t, client, nil)

	points, err := o.Fetch(context.Background(), testAddr, 2)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Equal(t, domain.SourceCalculated, p.Source)
		assert.InDelta(t, 9, p.Balance, 1e-9)
	}
}

func TestFetchFallsBackToReconstruction(t *testing.T) {
	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			return nil, domain.ErrNotFound
		},
		getBalanceFn: func(_ context.Context, _ string) (*domain.AddressBalance, error) {
			return &domain.AddressBalance{Balance: attoStr("42")}, nil
		},
		getAddressTransactionsFn: func(_ context.Context, _ string, _, _ int) ([]domain.Transaction, error) {
			return nil, nil
		},
	}

	o := newTestOrchestrator(t, client, nil)

	points, err := o.Fetch(context.Background(), testAddr, 5)
	require.NoError(t, err)
	require.Len(t, points, 6)

	for _, p := range points {
		assert.Equal(t, domain.SourceCalculated, p.Source)
		assert.InDelta(t, 42, p.Balance, 1e-9)
	}
}

func TestFetchFallsBackToSimulation(t *testing.T) {
	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			return nil, domain.ErrUpstreamUnavailable
		},
		getBalanceFn: func(_ context.Context, _ string) (*domain.AddressBalance, error) {
			return &domain.AddressBalance{Balance: attoStr("77")}, nil
		},
		getAddressTransactionsFn: func(_ context.Context, _ string, _, _ int) ([]domain.Transaction, error) {
			return nil, domain.ErrUpstreamUnavailable
		},
	}

	o := newTestOrchestrator(t, client, nil)

	points, err := o.Fetch(context.Background(), testAddr, 7)
	require.NoError(t, err)
	require.Len(t, points, 8)

	for _, p := range points {
		assert.Equal(t, domain.SourceEstimated, p.Source)
	}
	assert.Equal(t, float64(77), points[len(points)-1].Balance)
}

func TestFetchSimulatesFromZeroWhenBalanceUnavailable(t *testing.T) {
	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			return nil, domain.ErrUpstreamUnavailable
		},
		getBalanceFn: func(_ context.Context, _ string) (*domain.AddressBalance, error) {
			return nil, domain.ErrUpstreamUnavailable
		},
	}

	o := newTestOrchestrator(t, client, nil)

	points, err := o.Fetch(context.Background(), testAddr, 3)
	require.NoError(t, err)
	require.Len(t, points, 4)
	for _, p := range points {
		assert.Equal(t, float64(0), p.Balance)
		assert.Equal(t, domain.SourceEstimated, p.Source)
	}
}

func TestFetchPersistsToArchive(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	client := &stubClient{
		getBalanceHistoryFn: func(_ context.Context, _ string, _, _ int64) ([]domain.HistoryAPIPoint, error) {
			return []domain.HistoryAPIPoint{
				{Timestamp: now.Add(-time.Hour).UnixMilli(), Balance: attoStr("5")},
			}, nil
		},
	}
	archive := memarchive.NewBalanceHistoryArchive()

	o := newTestOrchestrator(t, client, archive)

	points, err := o.Fetch(context.Background(), testAddr, 2)
	require.NoError(t, err)

	stored, err := archive.GetByAddress(context.Background(), testAddr, 0, now.AddDate(0, 0, 1).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, points, stored)
}

func TestFetchRejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, &stubClient{}, nil)

	_, err := o.Fetch(context.Background(), "", 7)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = o.Fetch(context.Background(), testAddr, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// An oversized range would materialize days+1 points per stage.
	_, err = o.Fetch(context.Background(), testAddr, MaxHistoryDays+1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
