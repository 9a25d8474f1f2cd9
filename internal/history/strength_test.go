package history

import (
	"math"
	"testing"

	"themeradar/internal/models"
)

func row(date, theme, ticker string, mentions int) models.HistoryRow {
	return models.HistoryRow{
		Date:         date,
		Market:       models.MarketKR,
		Sector:       "semiconductor",
		Theme:        theme,
		Ticker:       ticker,
		StockName:    "테스트종목",
		MentionCount: mentions,
		Sentiment:    models.SentimentPositive,
		Reason:       "테스트 사유",
	}
}

func TestComputeStrength_SameDay(t *testing.T) {
	rows := []models.HistoryRow{row("2026-08-29", "AI반도체", "005930", 5)}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].StrengthScore != 5.0 {
		t.Errorf("same-day score = %v, want 5.0", got[0].StrengthScore)
	}
	if got[0].Trend != models.TrendNew {
		t.Errorf("trend = %q, want NEW", got[0].Trend)
	}
	if got[0].LastMentionCount != 5 {
		t.Errorf("last mention count = %d, want 5", got[0].LastMentionCount)
	}
	if got[0].LastReason != "테스트 사유" {
		t.Errorf("last reason = %q", got[0].LastReason)
	}
}

func TestComputeStrength_WeekDecay(t *testing.T) {
	rows := []models.HistoryRow{
		row("2026-08-22", "AI반도체", "005930", 2),
		row("2026-08-29", "AI반도체", "005930", 3),
	}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	want := math.Round((3+2*math.Pow(DecayFactor, 7))*100) / 100 // 3.64
	if math.Abs(got[0].StrengthScore-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got[0].StrengthScore, want)
	}
	if got[0].MentionTotal != 5 {
		t.Errorf("mention total = %d, want 5", got[0].MentionTotal)
	}
	if got[0].DaysCount != 2 {
		t.Errorf("days count = %d, want 2", got[0].DaysCount)
	}
	if got[0].FirstSeen != "2026-08-22" || got[0].LastSeen != "2026-08-29" {
		t.Errorf("first/last seen = %s/%s", got[0].FirstSeen, got[0].LastSeen)
	}
	if got[0].Trend != models.TrendActive {
		t.Errorf("trend = %q, want ACTIVE", got[0].Trend)
	}
}

func TestComputeStrength_Inactive(t *testing.T) {
	rows := []models.HistoryRow{row("2026-08-26", "방산", "012450", 4)}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if got[0].Trend != models.TrendInactive {
		t.Errorf("trend = %q, want INACTIVE", got[0].Trend)
	}
	if got[0].LastMentionCount != 0 {
		t.Errorf("last mention count = %d, want 0 for inactive triple", got[0].LastMentionCount)
	}
	want := math.Round(4*math.Pow(DecayFactor, 3)*100) / 100
	if math.Abs(got[0].StrengthScore-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got[0].StrengthScore, want)
	}
}

func TestComputeStrength_FutureRowsIgnored(t *testing.T) {
	rows := []models.HistoryRow{
		row("2026-08-29", "AI반도체", "005930", 3),
		row("2026-08-30", "AI반도체", "005930", 100),
	}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if got[0].StrengthScore != 3.0 {
		t.Errorf("score = %v, future rows must not contribute", got[0].StrengthScore)
	}
	if got[0].MentionTotal != 3 {
		t.Errorf("mention total = %d, want 3", got[0].MentionTotal)
	}
}

func TestComputeStrength_SortAndTieBreak(t *testing.T) {
	rows := []models.HistoryRow{
		row("2026-08-29", "방산", "012450", 2),
		row("2026-08-29", "AI반도체", "005930", 2),
		row("2026-08-29", "조선/해운", "009540", 7),
	}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if got[0].Theme != "조선/해운" {
		t.Errorf("highest score first, got %q", got[0].Theme)
	}
	// Equal scores keep ledger encounter order.
	if got[1].Theme != "방산" || got[2].Theme != "AI반도체" {
		t.Errorf("tie order = %q, %q; want 방산 then AI반도체", got[1].Theme, got[2].Theme)
	}
}

func TestComputeStrength_DecayMonotonic(t *testing.T) {
	// Equal mentions weigh less the further back they are.
	rows := []models.HistoryRow{
		row("2026-08-29", "AI반도체", "005930", 3),
		row("2026-08-27", "방산", "012450", 3),
		row("2026-08-22", "조선/해운", "009540", 3),
	}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].StrengthScore >= got[i-1].StrengthScore {
			t.Errorf("scores not strictly decreasing with age: %v then %v",
				got[i-1].StrengthScore, got[i].StrengthScore)
		}
	}
	if got[0].Theme != "AI반도체" || got[2].Theme != "조선/해운" {
		t.Errorf("order = %s, %s, %s", got[0].Theme, got[1].Theme, got[2].Theme)
	}
}

func TestComputeStrength_SkipsBadDates(t *testing.T) {
	rows := []models.HistoryRow{
		row("not-a-date", "방산", "012450", 9),
		row("2026-08-29", "방산", "012450", 1),
	}
	got, err := ComputeStrength(rows, "2026-08-29")
	if err != nil {
		t.Fatalf("ComputeStrength: %v", err)
	}
	if got[0].StrengthScore != 1.0 {
		t.Errorf("score = %v, malformed rows must be skipped", got[0].StrengthScore)
	}
}

func TestComputeStrength_InvalidReference(t *testing.T) {
	if _, err := ComputeStrength(nil, "29/08/2026"); err == nil {
		t.Error("expected error for invalid reference date")
	}
}
