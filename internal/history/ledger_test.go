package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"themeradar/internal/models"
)

func TestLedger_SaveAndLoadHistory(t *testing.T) {
	l := New(t.TempDir())

	rows := []models.HistoryRow{
		row("2026-08-29", "AI반도체", "005930", 3),
		row("2026-08-28", "방산", "012450", 2),
	}
	if err := l.SaveHistory(rows); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}

	got, err := l.LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	// Rewritten sorted by date.
	if got[0].Date != "2026-08-28" || got[1].Date != "2026-08-29" {
		t.Errorf("rows not date-sorted: %s, %s", got[0].Date, got[1].Date)
	}
	if got[1].Theme != "AI반도체" || got[1].MentionCount != 3 {
		t.Errorf("round trip lost data: %+v", got[1])
	}
}

func TestLedger_LoadHistory_MissingFile(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "nothing-here"))
	rows, err := l.LoadHistory()
	if err != nil {
		t.Fatalf("missing file must be an empty ledger, got %v", err)
	}
	if rows != nil {
		t.Errorf("got %d rows, want none", len(rows))
	}
}

func TestLedger_HistoryFileHasBOM(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	if err := l.SaveHistory([]models.HistoryRow{row("2026-08-29", "방산", "012450", 1)}); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "themes_history.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "\uFEFF") {
		t.Error("history file must start with a byte-order mark")
	}
}

func TestLedger_SkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "themes_history.csv")
	content := "date,market,sector,theme,ticker,stock_name,mention_count,sentiment,reason\n" +
		"2026-08-29,KR,defense,방산,012450,한화에어로스페이스,2,positive,수출\n" +
		"2026-08-29,KR,short\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// A hand-edited file may have ragged rows; the reader must not
	// reject the whole ledger over one.
	rows, err := New(dir).LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Ticker != "012450" {
		t.Errorf("kept the wrong row: %+v", rows[0])
	}
}

func TestLedger_SaveStrength(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	rows := []models.StrengthRow{{
		Market: models.MarketKR, Sector: "defense", Theme: "방산",
		Ticker: "012450", StockName: "한화에어로스페이스",
		StrengthScore: 3.64, MentionTotal: 5, LastMentionCount: 3,
		FirstSeen: "2026-08-22", LastSeen: "2026-08-29", DaysCount: 2,
		Trend: models.TrendActive, LastReason: "수출 계약",
	}}
	if err := l.SaveStrength(rows); err != nil {
		t.Fatalf("SaveStrength: %v", err)
	}
	data, err := os.ReadFile(l.StrengthPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "3.64") {
		t.Error("strength score missing from file")
	}
	if !strings.Contains(string(data), "ACTIVE") {
		t.Error("trend missing from file")
	}
}

func TestReplaceDay(t *testing.T) {
	rows := []models.HistoryRow{
		row("2026-08-28", "방산", "012450", 2),
		row("2026-08-29", "방산", "012450", 1),
		row("2026-08-29", "AI반도체", "005930", 4),
	}
	today := []models.HistoryRow{row("2026-08-29", "조선/해운", "009540", 6)}

	got := ReplaceDay(rows, "2026-08-29", today)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Date != "2026-08-28" {
		t.Errorf("other dates must survive, got %+v", got[0])
	}
	if got[1].Theme != "조선/해운" {
		t.Errorf("replaced day rows wrong: %+v", got[1])
	}

	// Re-running with the same rows is a no-op.
	again := ReplaceDay(got, "2026-08-29", today)
	if len(again) != 2 {
		t.Errorf("rerun changed row count: %d", len(again))
	}
}

func TestPreviousEntries(t *testing.T) {
	rows := []models.HistoryRow{
		row("2026-08-27", "방산", "012450", 1),
		row("2026-08-29", "방산", "012450", 1),
		row("2026-08-29", "AI반도체", "005930", 1),
	}
	prev := PreviousEntries(rows, "2026-08-29")
	if len(prev) != 1 {
		t.Fatalf("got %d triples, want 1", len(prev))
	}
	key := TripleKey{Market: models.MarketKR, Theme: "방산", Ticker: "012450"}
	if !prev[key] {
		t.Error("pre-existing triple missing")
	}
	if prev[TripleKey{Market: models.MarketKR, Theme: "AI반도체", Ticker: "005930"}] {
		t.Error("same-day rows must not count as previous")
	}
}

func TestBuildRows(t *testing.T) {
	c := &models.Classification{
		KR: models.ThemeSet{
			"AI반도체": {{Name: "삼성전자", Ticker: "005930", Sector: "semiconductor", MentionCount: 3, Sentiment: "positive", Reason: "HBM"}},
		},
		US: models.ThemeSet{
			"AI소프트웨어": {{Name: "NVIDIA", Ticker: "NVDA", Sector: "ai", MentionCount: 2, Sentiment: "positive", Reason: "GPU"}},
		},
	}
	got := BuildRows("2026-08-29", c)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Market != models.MarketKR || got[1].Market != models.MarketUS {
		t.Errorf("market order = %s, %s; want KR then US", got[0].Market, got[1].Market)
	}
	if got[0].Date != "2026-08-29" || got[0].Ticker != "005930" || got[0].MentionCount != 3 {
		t.Errorf("row fields wrong: %+v", got[0])
	}
}
