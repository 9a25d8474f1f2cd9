package models

// Trend labels for strength rows, relative to the reference date.
const (
	TrendNew      = "NEW"      // first seen on the reference date
	TrendActive   = "ACTIVE"   // seen before and again on the reference date
	TrendInactive = "INACTIVE" // seen before, absent on the reference date
)

// HistoryRow is one ledger entry: a (date, market, theme, ticker) fact.
// Rows for past dates are immutable in practice; re-running a date
// replaces that date's rows wholesale.
type HistoryRow struct {
	Date         string
	Market       string
	Sector       string
	Theme        string
	Ticker       string
	StockName    string
	MentionCount int
	Sentiment    string
	Reason       string
}

// StrengthRow is the fully derived ranking entry for one
// (market, theme, ticker) triple. Recomputed from the ledger on every
// run; never treated as ground truth.
type StrengthRow struct {
	Market           string
	Sector           string
	Theme            string
	Ticker           string
	StockName        string
	StrengthScore    float64
	MentionTotal     int
	LastMentionCount int
	FirstSeen        string
	LastSeen         string
	DaysCount        int
	Trend            string
	LastReason       string
}
