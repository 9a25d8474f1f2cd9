package models

import "testing"

func TestStockValidate(t *testing.T) {
	tests := []struct {
		name    string
		stock   Stock
		wantErr bool
	}{
		{"valid KR", Stock{Ticker: "005930", NameKO: "삼성전자", Market: MarketKR}, false},
		{"valid US", Stock{Ticker: "NVDA", NameEN: "NVIDIA", Market: MarketUS}, false},
		{"missing ticker", Stock{Market: MarketKR}, true},
		{"bad market", Stock{Ticker: "005930", Market: "JP"}, true},
		{"both not allowed for stocks", Stock{Ticker: "005930", Market: MarketBoth}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stock.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStockDisplayName(t *testing.T) {
	s := Stock{Ticker: "005930", NameKO: "삼성전자", NameEN: "Samsung Electronics"}
	if got := s.DisplayName(); got != "삼성전자" {
		t.Errorf("got %q, want Korean name first", got)
	}
	s.NameKO = ""
	if got := s.DisplayName(); got != "Samsung Electronics" {
		t.Errorf("got %q, want English name second", got)
	}
	s.NameEN = ""
	if got := s.DisplayName(); got != "005930" {
		t.Errorf("got %q, want ticker last", got)
	}
}

func TestMentionValidate(t *testing.T) {
	valid := Mention{MessageID: 1, StockID: 2, Sentiment: SentimentPositive, Confidence: 0.8}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid mention rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Mention)
	}{
		{"zero message", func(m *Mention) { m.MessageID = 0 }},
		{"zero stock", func(m *Mention) { m.StockID = 0 }},
		{"bad sentiment", func(m *Mention) { m.Sentiment = "bullish" }},
		{"confidence too high", func(m *Mention) { m.Confidence = 1.5 }},
		{"confidence negative", func(m *Mention) { m.Confidence = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			if err := m.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestClassificationCounts(t *testing.T) {
	c := &Classification{
		KR: ThemeSet{
			"AI반도체": {{Ticker: "005930"}, {Ticker: "000660"}},
			"방산":    {{Ticker: "012450"}},
		},
		US: ThemeSet{
			"AI소프트웨어": {{Ticker: "NVDA"}},
		},
	}
	if c.Empty() {
		t.Error("Empty() = true for populated classification")
	}
	if got := c.StockCount(); got != 4 {
		t.Errorf("StockCount() = %d, want 4", got)
	}
	if got := c.ThemeCount(); got != 3 {
		t.Errorf("ThemeCount() = %d, want 3", got)
	}

	markets := c.Markets()
	if len(markets) != 2 || markets[0].Market != MarketKR || markets[1].Market != MarketUS {
		t.Errorf("Markets() order = %v, want KR then US", markets)
	}

	empty := &Classification{KR: ThemeSet{}, US: ThemeSet{}}
	if !empty.Empty() {
		t.Error("Empty() = false for empty classification")
	}
}
