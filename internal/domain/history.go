package domain

// Provenance tags for balance history points. Consumers must be able to
// tell authoritative data from reconstructed or simulated data.
const (
	SourceAPI        = "api"        // from an authoritative history endpoint
	SourceCalculated = "calculated" // reconstructed from the transaction log
	SourceEstimated  = "estimated"  // synthetic, anchored at the live balance
)

// BalanceHistoryPoint is one calendar day of balance history.
// Date is formatted YYYY-MM-DD in UTC; Timestamp is the end-of-day
// Unix time in milliseconds.
type BalanceHistoryPoint struct {
	Date      string  `json:"date"`
	Balance   float64 `json:"balance"`
	Timestamp int64   `json:"timestamp"`
	Source    string  `json:"source"`
}

// CachedBalanceHistory is the persisted form of one (address, days)
// history series.
type CachedBalanceHistory struct {
	Data        []BalanceHistoryPoint `json:"data"`
	LastUpdated int64                 `json:"lastUpdated"`
	Address     string                `json:"address"`
	Days        int                   `json:"days"`
}

// HistoryAPIPoint is a raw point from a candidate authoritative
// endpoint, before normalization. Balance stays a string until the
// orchestrator validates it.
type HistoryAPIPoint struct {
	Timestamp int64  `json:"timestamp"`
	Balance   string `json:"balance"`
}
