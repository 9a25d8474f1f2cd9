// Package pipeline orchestrates a daily run: classification, ledger
// update, strength recomputation, digest delivery, and run tracking.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"themeradar/internal/classifier"
	"themeradar/internal/history"
	"themeradar/internal/logger"
	"themeradar/internal/models"
	"themeradar/internal/report"
	"themeradar/internal/storage"
)

// Sender delivers the rendered digest. Satisfied by telegram.Client;
// nil disables delivery.
type Sender interface {
	SendDigest(text string, attachmentPath string) error
}

// Pipeline wires the classification engine to the ledger and the
// delivery surface.
type Pipeline struct {
	store      *storage.Storage
	classifier *classifier.Classifier
	ledger     *history.Ledger
	sender     Sender
}

// New creates a pipeline. sender may be nil.
func New(store *storage.Storage, cls *classifier.Classifier, ledger *history.Ledger, sender Sender) *Pipeline {
	return &Pipeline{store: store, classifier: cls, ledger: ledger, sender: sender}
}

// DayResult summarizes one processed date.
type DayResult struct {
	Date     string
	KRThemes int
	KRStocks int
	USThemes int
	USStocks int
	Err      error
}

// Run processes one report date end to end.
func (p *Pipeline) Run(ctx context.Context, reportDate string) (DayResult, error) {
	result := DayResult{Date: reportDate}
	runID := uuid.NewString()
	logger.Info("Starting run %s for %s", runID, reportDate)

	classification, err := p.classifier.ClassifyDaily(ctx, reportDate)
	if err != nil {
		return result, fmt.Errorf("classification failed for %s: %w", reportDate, err)
	}
	result.KRThemes = len(classification.KR)
	result.KRStocks = classification.KR.StockCount()
	result.USThemes = len(classification.US)
	result.USStocks = classification.US.StockCount()

	rows, err := p.ledger.LoadHistory()
	if err != nil {
		return result, fmt.Errorf("failed to load ledger: %w", err)
	}
	prev := history.PreviousEntries(rows, reportDate)

	rows = history.ReplaceDay(rows, reportDate, history.BuildRows(reportDate, classification))
	if err := p.ledger.SaveHistory(rows); err != nil {
		return result, err
	}

	strength, err := history.ComputeStrength(rows, reportDate)
	if err != nil {
		return result, err
	}
	if err := p.ledger.SaveStrength(strength); err != nil {
		return result, err
	}
	logger.Info("Ledger updated: %d rows, %d strength entries", len(rows), len(strength))

	digest := report.BuildDigest(reportDate, classification, prev)

	sent := false
	if p.sender != nil {
		if err := p.sender.SendDigest(digest, p.ledger.StrengthPath()); err != nil {
			logger.Error("Failed to send digest: %v", err)
		} else {
			sent = true
		}
	}

	mentionTotal := 0
	for _, mt := range classification.Markets() {
		for _, stocks := range mt.Themes {
			for _, s := range stocks {
				mentionTotal += s.MentionCount
			}
		}
	}
	record := &storage.ReportRecord{
		ReportDate:            reportDate,
		RunID:                 runID,
		TotalMessagesAnalyzed: mentionTotal,
		TotalStocksFound:      classification.StockCount(),
		TotalThemes:           classification.ThemeCount(),
		TelegramSent:          sent,
		CSVExported:           true,
	}
	if err := p.store.RecordDailyReport(record); err != nil {
		return result, err
	}

	logger.Info("Pipeline complete for %s: KR %d themes/%d stocks, US %d themes/%d stocks",
		reportDate, result.KRThemes, result.KRStocks, result.USThemes, result.USStocks)
	return result, nil
}

// RunRange processes consecutive dates with failure isolation at day
// granularity: one day's error is logged and recorded, and the run
// continues with the next date.
func (p *Pipeline) RunRange(ctx context.Context, dates []string) []DayResult {
	results := make([]DayResult, 0, len(dates))
	for _, date := range dates {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown requested, stopping before %s", date)
			return results
		default:
		}

		result, err := p.Run(ctx, date)
		if err != nil {
			logger.Error("Day %s failed: %v", date, err)
			result.Err = err
		}
		results = append(results, result)
	}
	return results
}

// DigestFor rebuilds the digest for a date from stored state, for
// on-demand delivery. Returns the digest text and the strength-file
// path.
func (p *Pipeline) DigestFor(reportDate string) (string, string, error) {
	classification, err := p.store.DailyClassification(reportDate)
	if err != nil {
		return "", "", err
	}
	rows, err := p.ledger.LoadHistory()
	if err != nil {
		return "", "", err
	}
	prev := history.PreviousEntries(rows, reportDate)
	return report.BuildDigest(reportDate, classification, prev), p.ledger.StrengthPath(), nil
}

// DatesBetween expands an inclusive from/to range into report dates.
func DatesBetween(from, to string) ([]string, error) {
	start, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range is backwards: %s to %s", from, to)
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(models.DateLayout))
	}
	return dates, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}
