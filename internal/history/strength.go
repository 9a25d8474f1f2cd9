package history

import (
	"fmt"
	"math"
	"sort"
	"time"

	"themeradar/internal/logger"
	"themeradar/internal/models"
)

// DecayFactor is the per-day weight decay. 0.85^30 ≈ 0.007, so the
// score is effectively a one-month trailing window.
const DecayFactor = 0.85

// ComputeStrength recomputes the full strength ranking from the ledger
// for a reference date:
//
//	strength_score = Σ mention_count(day) × 0.85^(reference − day)
//
// Rows dated after the reference date are skipped, never an error. The
// result is sorted by score descending; ties keep the order in which
// each triple first appeared in the ledger.
func ComputeStrength(rows []models.HistoryRow, referenceDate string) ([]models.StrengthRow, error) {
	ref, err := time.Parse(models.DateLayout, referenceDate)
	if err != nil {
		return nil, fmt.Errorf("invalid reference date %q: %w", referenceDate, err)
	}

	agg := make(map[TripleKey]*models.StrengthRow)
	var order []TripleKey

	for _, row := range rows {
		rowDate, err := time.Parse(models.DateLayout, row.Date)
		if err != nil {
			logger.Warn("Skipping ledger row with invalid date %q", row.Date)
			continue
		}
		daysAgo := int(ref.Sub(rowDate).Hours() / 24)
		if daysAgo < 0 {
			continue // future rows never contribute
		}

		key := TripleKey{Market: row.Market, Theme: row.Theme, Ticker: row.Ticker}
		entry, ok := agg[key]
		if !ok {
			entry = &models.StrengthRow{
				Market:    row.Market,
				Sector:    row.Sector,
				Theme:     row.Theme,
				Ticker:    row.Ticker,
				StockName: row.StockName,
				FirstSeen: row.Date,
				LastSeen:  row.Date,
			}
			agg[key] = entry
			order = append(order, key)
		}

		entry.StrengthScore += float64(row.MentionCount) * math.Pow(DecayFactor, float64(daysAgo))
		entry.MentionTotal += row.MentionCount
		if row.Date < entry.FirstSeen {
			entry.FirstSeen = row.Date
		}
		if row.Date > entry.LastSeen {
			entry.LastSeen = row.Date
		}
		entry.DaysCount++

		if row.Date == referenceDate {
			entry.LastMentionCount = row.MentionCount
			entry.LastReason = row.Reason
		}
	}

	results := make([]models.StrengthRow, 0, len(order))
	for _, key := range order {
		entry := agg[key]
		switch {
		case entry.FirstSeen == referenceDate:
			entry.Trend = models.TrendNew
		case entry.LastSeen == referenceDate:
			entry.Trend = models.TrendActive
		default:
			entry.Trend = models.TrendInactive
		}
		entry.StrengthScore = math.Round(entry.StrengthScore*100) / 100
		results = append(results, *entry)
	}

	// Stable sort keeps first-encounter order as the tie-break.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StrengthScore > results[j].StrengthScore
	})
	return results, nil
}
