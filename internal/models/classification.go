package models

// Assignment places one stock inside a theme for one report date.
type Assignment struct {
	Name         string `json:"name"`
	Ticker       string `json:"ticker"`
	Sector       string `json:"sector"`
	Reason       string `json:"reason"`
	MentionCount int    `json:"mention_count"`
	Sentiment    string `json:"sentiment,omitempty"`
}

// ThemeSet maps theme name to the stocks assigned to it for one market.
type ThemeSet map[string][]Assignment

// StockCount returns the total number of assignments across all themes.
func (t ThemeSet) StockCount() int {
	n := 0
	for _, stocks := range t {
		n += len(stocks)
	}
	return n
}

// Classification is one day's full theme structure, split by market.
type Classification struct {
	KR ThemeSet `json:"kr"`
	US ThemeSet `json:"us"`
}

// Empty reports whether the classification holds no themes at all.
func (c *Classification) Empty() bool {
	return len(c.KR) == 0 && len(c.US) == 0
}

// StockCount returns the total assignments across both markets.
func (c *Classification) StockCount() int {
	return c.KR.StockCount() + c.US.StockCount()
}

// ThemeCount returns the total theme count across both markets.
func (c *Classification) ThemeCount() int {
	return len(c.KR) + len(c.US)
}

// Markets iterates market code with its theme set in fixed KR, US order.
func (c *Classification) Markets() []MarketThemes {
	return []MarketThemes{
		{Market: MarketKR, Themes: c.KR},
		{Market: MarketUS, Themes: c.US},
	}
}

// MarketThemes pairs a market code with its theme set.
type MarketThemes struct {
	Market string
	Themes ThemeSet
}
