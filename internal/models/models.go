// Package models defines the core domain entities: stocks, mentions,
// daily aggregates, theme classifications, and the strength ledger.
package models

import (
	"errors"
	"time"
)

// Market codes. Themes may span both markets; stocks never do.
const (
	MarketKR   = "KR"
	MarketUS   = "US"
	MarketBoth = "BOTH"
)

// Sentiment labels attached to individual mentions.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// DateLayout is the canonical report-date format used everywhere:
// database keys, ledger rows, and file names.
const DateLayout = "2006-01-02"

// Stock is a persistent stock record. Industry is a cached hint filled
// in lazily by the enricher for US stocks.
type Stock struct {
	ID       int64  `json:"id"`
	Ticker   string `json:"ticker"`
	NameKO   string `json:"name_ko,omitempty"`
	NameEN   string `json:"name_en,omitempty"`
	Market   string `json:"market"`
	Exchange string `json:"exchange,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// Validate checks stock field constraints.
func (s *Stock) Validate() error {
	if s.Ticker == "" {
		return errors.New("stock ticker must not be empty")
	}
	if s.Market != MarketKR && s.Market != MarketUS {
		return errors.New("stock market must be KR or US")
	}
	return nil
}

// DisplayName returns the best human-readable name for the stock.
func (s *Stock) DisplayName() string {
	if s.NameKO != "" {
		return s.NameKO
	}
	if s.NameEN != "" {
		return s.NameEN
	}
	return s.Ticker
}

// Mention is one raw per-message stock extraction, produced by the
// upstream analysis stage and immutable once written.
type Mention struct {
	ID         int64   `json:"id"`
	MessageID  int64   `json:"message_id"`
	StockID    int64   `json:"stock_id"`
	Context    string  `json:"mention_context,omitempty"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Validate checks mention field constraints.
func (m *Mention) Validate() error {
	if m.MessageID == 0 {
		return errors.New("mention message ID must not be zero")
	}
	if m.StockID == 0 {
		return errors.New("mention stock ID must not be zero")
	}
	switch m.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return errors.New("mention sentiment must be positive, negative, or neutral")
	}
	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return errors.New("mention confidence must be between 0.0 and 1.0")
	}
	return nil
}

// DailyAggregate is one (report date, stock) row derived from raw
// mentions. Computed on demand, never stored.
type DailyAggregate struct {
	StockID           int64
	Ticker            string
	NameKO            string
	NameEN            string
	Market            string
	Exchange          string
	Industry          string
	MentionCount      int
	AggregatedContext string
	DominantSentiment string
	AvgConfidence     float64
}

// DisplayName returns the best human-readable name for the aggregate.
func (a *DailyAggregate) DisplayName() string {
	if a.NameKO != "" {
		return a.NameKO
	}
	if a.NameEN != "" {
		return a.NameEN
	}
	return a.Ticker
}

// Channel is a registered message source. Collection itself happens
// outside this service; the registry is the shared contract.
type Channel struct {
	ID          int64     `json:"id"`
	TelegramID  int64     `json:"telegram_id"`
	Username    string    `json:"username,omitempty"`
	Title       string    `json:"title"`
	MarketFocus string    `json:"market_focus"`
	Language    string    `json:"language"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}
