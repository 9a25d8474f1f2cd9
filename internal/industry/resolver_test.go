package industry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"themeradar/internal/models"
)

type fakeSource struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeSource) Lookup(_ context.Context, ticker string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.mu.Unlock()
	if err := f.errs[ticker]; err != nil {
		return "", err
	}
	return f.answers[ticker], nil
}

type fakeCache struct {
	mu      sync.Mutex
	updates map[int64]string
}

func (f *fakeCache) UpdateStockIndustry(stockID int64, industry string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[int64]string{}
	}
	f.updates[stockID] = industry
	return nil
}

func TestEnrich(t *testing.T) {
	source := &fakeSource{
		answers: map[string]string{"NVDA": "Semiconductors", "TSLA": "Auto Manufacturers"},
	}
	cache := &fakeCache{}
	r := NewResolver(source, cache, 2)

	aggs := []models.DailyAggregate{
		{StockID: 1, Ticker: "NVDA", Market: models.MarketUS},
		{StockID: 2, Ticker: "TSLA", Market: models.MarketUS},
		{StockID: 3, Ticker: "AAPL", Market: models.MarketUS, Industry: "Consumer Electronics"},
		{StockID: 4, Ticker: "005930", Market: models.MarketKR},
	}
	got := r.Enrich(context.Background(), aggs)

	if got[0].Industry != "Semiconductors" || got[1].Industry != "Auto Manufacturers" {
		t.Errorf("industries not filled: %q, %q", got[0].Industry, got[1].Industry)
	}
	// Already-cached and KR rows are never looked up.
	if len(source.calls) != 2 {
		t.Errorf("got %d lookups, want 2: %v", len(source.calls), source.calls)
	}
	if got[3].Industry != "" {
		t.Errorf("KR row must stay untouched, got %q", got[3].Industry)
	}
	if cache.updates[1] != "Semiconductors" {
		t.Errorf("resolved industry not cached: %v", cache.updates)
	}
}

func TestEnrich_LookupFailureTolerated(t *testing.T) {
	source := &fakeSource{
		answers: map[string]string{"NVDA": "Semiconductors"},
		errs:    map[string]error{"TSLA": errors.New("upstream down")},
	}
	r := NewResolver(source, &fakeCache{}, 2)

	aggs := []models.DailyAggregate{
		{StockID: 1, Ticker: "NVDA", Market: models.MarketUS},
		{StockID: 2, Ticker: "TSLA", Market: models.MarketUS},
	}
	got := r.Enrich(context.Background(), aggs)

	if got[0].Industry != "Semiconductors" {
		t.Errorf("successful lookup lost: %q", got[0].Industry)
	}
	if got[1].Industry != "" {
		t.Errorf("failed lookup must leave the row empty, got %q", got[1].Industry)
	}
}

func TestEnrich_NothingPending(t *testing.T) {
	source := &fakeSource{}
	r := NewResolver(source, &fakeCache{}, 2)

	aggs := []models.DailyAggregate{
		{StockID: 1, Ticker: "005930", Market: models.MarketKR},
	}
	r.Enrich(context.Background(), aggs)
	if len(source.calls) != 0 {
		t.Errorf("expected no lookups, got %v", source.calls)
	}
}
