// Package history maintains the cumulative theme ledger and derives
// the time-decayed strength ranking from it.
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"themeradar/internal/logger"
	"themeradar/internal/models"
)

var historyHeader = []string{
	"date", "market", "sector", "theme", "ticker", "stock_name",
	"mention_count", "sentiment", "reason",
}

var strengthHeader = []string{
	"market", "sector", "theme", "ticker", "stock_name",
	"strength_score", "mention_total", "last_mention_count",
	"first_seen", "last_seen", "days_count", "trend", "last_reason",
}

// Ledger manages the two flat export files: the cumulative history CSV
// and the per-run strength CSV. Both files are rewritten in full on
// every run; the history file's content stays cumulative.
type Ledger struct {
	historyPath  string
	strengthPath string
}

// New creates a ledger rooted at exportDir.
func New(exportDir string) *Ledger {
	return &Ledger{
		historyPath:  filepath.Join(exportDir, "themes_history.csv"),
		strengthPath: filepath.Join(exportDir, "themes_strength.csv"),
	}
}

// StrengthPath returns the path of the strength CSV, for attachment to
// the digest message.
func (l *Ledger) StrengthPath() string {
	return l.strengthPath
}

// LoadHistory reads all ledger rows. A missing file is an empty ledger.
func (l *Ledger) LoadHistory() ([]models.HistoryRow, error) {
	f, err := os.Open(l.historyPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate hand-edited files
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []models.HistoryRow
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) < len(historyHeader) {
			logger.Warn("Skipping malformed history row %d (%d columns)", i, len(rec))
			continue
		}
		mentions, err := strconv.Atoi(rec[6])
		if err != nil {
			mentions = 1
		}
		rows = append(rows, models.HistoryRow{
			Date:         strings.TrimPrefix(rec[0], "\uFEFF"),
			Market:       rec[1],
			Sector:       rec[2],
			Theme:        rec[3],
			Ticker:       rec[4],
			StockName:    rec[5],
			MentionCount: mentions,
			Sentiment:    rec[7],
			Reason:       rec[8],
		})
	}
	return rows, nil
}

// SaveHistory rewrites the history file, sorted by date. The leading
// byte-order mark keeps the Korean text readable in spreadsheet tools.
func (l *Ledger) SaveHistory(rows []models.HistoryRow) error {
	sorted := make([]models.HistoryRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	records := make([][]string, 0, len(sorted)+1)
	records = append(records, historyHeader)
	for _, r := range sorted {
		records = append(records, []string{
			r.Date, r.Market, r.Sector, r.Theme, r.Ticker, r.StockName,
			strconv.Itoa(r.MentionCount), r.Sentiment, r.Reason,
		})
	}
	return l.writeCSV(l.historyPath, records)
}

// SaveStrength rewrites the strength ranking file.
func (l *Ledger) SaveStrength(rows []models.StrengthRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, strengthHeader)
	for _, r := range rows {
		records = append(records, []string{
			r.Market, r.Sector, r.Theme, r.Ticker, r.StockName,
			strconv.FormatFloat(r.StrengthScore, 'f', 2, 64),
			strconv.Itoa(r.MentionTotal),
			strconv.Itoa(r.LastMentionCount),
			r.FirstSeen, r.LastSeen,
			strconv.Itoa(r.DaysCount),
			r.Trend, r.LastReason,
		})
	}
	return l.writeCSV(l.strengthPath, records)
}

func (l *Ledger) writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReplaceDay removes all rows for date and appends today's rows,
// leaving every other date untouched. Re-running a date is therefore an
// idempotent overwrite.
func ReplaceDay(rows []models.HistoryRow, date string, today []models.HistoryRow) []models.HistoryRow {
	kept := make([]models.HistoryRow, 0, len(rows)+len(today))
	for _, r := range rows {
		if r.Date != date {
			kept = append(kept, r)
		}
	}
	return append(kept, today...)
}

// TripleKey identifies one (market, theme, ticker) combination.
type TripleKey struct {
	Market string
	Theme  string
	Ticker string
}

// PreviousEntries returns every triple present strictly before date.
func PreviousEntries(rows []models.HistoryRow, date string) map[TripleKey]bool {
	prev := make(map[TripleKey]bool)
	for _, r := range rows {
		if r.Date < date {
			prev[TripleKey{Market: r.Market, Theme: r.Theme, Ticker: r.Ticker}] = true
		}
	}
	return prev
}

// BuildRows flattens one day's classification into ledger rows.
func BuildRows(date string, c *models.Classification) []models.HistoryRow {
	var rows []models.HistoryRow
	for _, mt := range c.Markets() {
		for _, theme := range sortedThemes(mt.Themes) {
			for _, a := range mt.Themes[theme] {
				rows = append(rows, models.HistoryRow{
					Date:         date,
					Market:       mt.Market,
					Sector:       a.Sector,
					Theme:        theme,
					Ticker:       a.Ticker,
					StockName:    a.Name,
					MentionCount: a.MentionCount,
					Sentiment:    a.Sentiment,
					Reason:       a.Reason,
				})
			}
		}
	}
	return rows
}

func sortedThemes(set models.ThemeSet) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
