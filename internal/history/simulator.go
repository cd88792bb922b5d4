package history

import (
	"math/rand"
	"time"

	"alephium-gateway/internal/domain"
)

// Simulation shape: per-day noise is bounded and a mild trend pulls
// the series upward toward today so charts look plausible without
// pretending to be precise.
const (
	simulateNoiseBound = 0.04
	simulateDailyTrend = 0.005
)

// Simulator synthesizes a plausible-looking balance series when both
// the authoritative API and the reconstruction fail. Every point is
// tagged estimated so consumers can render it distinctly.
type Simulator struct {
	rng   *rand.Rand
	nowFn func() time.Time
}

// NewSimulator creates a simulator seeded from seed; a fixed seed gives
// a deterministic series for tests.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng:   rand.New(rand.NewSource(seed)),
		nowFn: time.Now,
	}
}

// Simulate returns days+1 points ordered oldest to newest, anchored so
// the final (today) point equals currentBalance exactly.
func (s *Simulator) Simulate(currentBalance float64, days int) []domain.BalanceHistoryPoint {
	now := s.nowFn().UTC()
	points := make([]domain.BalanceHistoryPoint, days+1)

	bal := currentBalance
	for back := 0; back <= days; back++ {
		day := now.AddDate(0, 0, -back)

		val := bal
		if val < 0 {
			val = 0
		}
		points[days-back] = domain.BalanceHistoryPoint{
			Date:      day.Format("2006-01-02"),
			Balance:   val,
			Timestamp: endOfDayMillis(day),
			Source:    domain.SourceEstimated,
		}

		// Walking backward: undo one day of trend, then jitter.
		noise := (s.rng.Float64()*2 - 1) * simulateNoiseBound
		bal = bal / (1 + simulateDailyTrend) * (1 + noise)
	}

	return points
}
