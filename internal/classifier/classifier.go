// Package classifier maps daily stock aggregates onto a bounded,
// taxonomy-constrained theme structure with the help of an external
// text classifier, and self-repairs the classifier's output.
package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"themeradar/internal/config"
	"themeradar/internal/llm"
	"themeradar/internal/logger"
	"themeradar/internal/models"
	"themeradar/internal/storage"
)

const (
	// maxThemeSize bounds every theme after post-processing. Themes
	// above it are split; themes below 2 are merged away.
	maxThemeSize = 10

	// catchAllTheme collects stocks nothing else could absorb. It is
	// the one theme allowed to hold a single stock.
	catchAllTheme = "기타"
)

// bannedKeywords mark market-activity pseudo-themes. A theme whose name
// contains any of these is not an industry theme and gets dissolved.
var bannedKeywords = []string{
	"신고가", "매도", "매수", "수급", "실적발표", "순매도", "순매수",
	"기관", "외국인", "특수", "카테고리", "달성", "상위",
}

// Enricher annotates aggregates with cached industry hints before
// classification. Implementations must return a fully resolved list;
// rows that could not be resolved simply keep an empty Industry.
type Enricher interface {
	Enrich(ctx context.Context, aggs []models.DailyAggregate) []models.DailyAggregate
}

// Classifier runs the daily classification pipeline for both markets.
type Classifier struct {
	store     *storage.Storage
	completer llm.Completer
	taxonomy  *config.Taxonomy
	enricher  Enricher
	batchSize int
}

// New creates a classifier. enricher may be nil to skip industry
// lookups entirely.
func New(store *storage.Storage, completer llm.Completer, taxonomy *config.Taxonomy, enricher Enricher, batchSize int) *Classifier {
	if batchSize < 1 {
		batchSize = 35
	}
	return &Classifier{
		store:     store,
		completer: completer,
		taxonomy:  taxonomy,
		enricher:  enricher,
		batchSize: batchSize,
	}
}

// ClassifyDaily produces the theme structure for one report date.
// An already-classified date is returned from the store unchanged; an
// empty mention day short-circuits before any classifier call.
func (c *Classifier) ClassifyDaily(ctx context.Context, reportDate string) (*models.Classification, error) {
	existing, err := c.store.DailyClassification(reportDate)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing classification: %w", err)
	}
	if !existing.Empty() {
		logger.Info("Reusing existing classification for %s: KR %d themes/%d stocks, US %d themes/%d stocks",
			reportDate, len(existing.KR), existing.KR.StockCount(), len(existing.US), existing.US.StockCount())
		return existing, nil
	}

	aggs, err := c.store.DailyAggregates(reportDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily aggregates: %w", err)
	}
	if len(aggs) == 0 {
		logger.Info("No stock mentions for %s", reportDate)
		return &models.Classification{KR: models.ThemeSet{}, US: models.ThemeSet{}}, nil
	}

	if c.enricher != nil {
		aggs = c.enricher.Enrich(ctx, aggs)
	}

	var krStocks, usStocks []models.DailyAggregate
	for _, a := range aggs {
		if a.Market == models.MarketUS {
			usStocks = append(usStocks, a)
		} else {
			krStocks = append(krStocks, a)
		}
	}

	krSet, err := c.classifyMarket(ctx, krStocks, models.MarketKR)
	if err != nil {
		return nil, err
	}
	usSet, err := c.classifyMarket(ctx, usStocks, models.MarketUS)
	if err != nil {
		return nil, err
	}

	result := &models.Classification{KR: krSet, US: usSet}

	if err := c.storeClassification(reportDate, krSet, models.MarketKR); err != nil {
		return nil, err
	}
	if err := c.storeClassification(reportDate, usSet, models.MarketUS); err != nil {
		return nil, err
	}

	logger.Info("Classification for %s: KR %d themes, US %d themes", reportDate, len(krSet), len(usSet))
	return result, nil
}

func (c *Classifier) classifyMarket(ctx context.Context, stocks []models.DailyAggregate, market string) (models.ThemeSet, error) {
	if len(stocks) == 0 {
		return models.ThemeSet{}, nil
	}

	// Stage: ticker gate. Unresolved stocks cannot be classified or
	// deduplicated downstream.
	valid := stocks[:0:0]
	for _, s := range stocks {
		if strings.TrimSpace(s.Ticker) != "" {
			valid = append(valid, s)
		}
	}
	if skipped := len(stocks) - len(valid); skipped > 0 {
		logger.Info("%s: dropped %d stocks without a resolved ticker", market, skipped)
	}
	if len(valid) == 0 {
		return models.ThemeSet{}, nil
	}

	guide := buildThemeGuide(c.taxonomy, market)
	label := marketLabel(market)

	// Stage: batching. Later batches see the theme names emitted by
	// earlier ones so the same semantic theme keeps one spelling.
	batches := chunk(valid, c.batchSize)
	if len(batches) > 1 {
		logger.Info("%s: %d stocks split into %d batches", market, len(valid), len(batches))
	}

	merged := map[string][]llm.ThemeStock{}
	var accumulatedNames []string
	for i, batch := range batches {
		result, err := c.classifyBatch(ctx, batch, guide, label, i, len(batches), accumulatedNames)
		if err != nil {
			return nil, err
		}
		for _, name := range sortedKeys(result) {
			if _, ok := merged[name]; !ok {
				accumulatedNames = append(accumulatedNames, name)
			}
			addStocks(merged, name, result[name])
		}
	}

	// Stage: sector normalization. Runs after merging so every stock
	// ends up with a closed-enum code regardless of the label language
	// the classifier emitted.
	normalizeSectors(merged)

	// Stage: banned-theme filter plus one reclassification pass.
	merged, err := c.filterBannedThemes(ctx, merged, guide, label)
	if err != nil {
		return nil, err
	}

	// Stage: oversize split, bounded at two levels.
	merged, err = c.splitOversized(ctx, merged)
	if err != nil {
		return nil, err
	}

	// Stage: singleton merge.
	merged, err = c.mergeSmallThemes(ctx, merged)
	if err != nil {
		return nil, err
	}

	return toThemeSet(merged, valid), nil
}

// classifyBatch sends one classification call. A malformed response is
// a stage-local failure: it logs and yields an empty map.
func (c *Classifier) classifyBatch(
	ctx context.Context,
	stocks []models.DailyAggregate,
	guide, label string,
	batchIdx, totalBatches int,
	existingNames []string,
) (map[string][]llm.ThemeStock, error) {
	lines := make([]string, len(stocks))
	for i := range stocks {
		lines[i] = formatAggregate(&stocks[i])
	}

	prompt := fmt.Sprintf(classificationPrompt,
		label, guide, formatExistingThemes(existingNames), strings.Join(lines, "\n"), sectorCodeList())

	resp, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	themes, parseErr := llm.ParseThemes(resp.Text)
	if parseErr != nil {
		logger.Error("Batch %d/%d: %v (%d stocks)", batchIdx+1, totalBatches, parseErr, len(stocks))
		return map[string][]llm.ThemeStock{}, nil
	}

	if totalBatches > 1 {
		stockCount := 0
		for _, v := range themes {
			stockCount += len(v)
		}
		logger.Info("Batch %d/%d: classified %d themes, %d stocks", batchIdx+1, totalBatches, len(themes), stockCount)
	}
	return themes, nil
}

// filterBannedThemes dissolves market-activity pseudo-themes and tries
// to reclassify their stocks against the already-clean theme set. When
// the reclassification response cannot be parsed, the stocks are
// dropped rather than left in a banned theme.
func (c *Classifier) filterBannedThemes(
	ctx context.Context,
	themes map[string][]llm.ThemeStock,
	guide, label string,
) (map[string][]llm.ThemeStock, error) {
	cleaned := map[string][]llm.ThemeStock{}
	var dumped []llm.ThemeStock
	for _, name := range sortedKeys(themes) {
		if containsBannedKeyword(name) {
			logger.Info("Filtering banned theme %q (%d stocks)", name, len(themes[name]))
			dumped = append(dumped, themes[name]...)
		} else {
			cleaned[name] = themes[name]
		}
	}
	if len(dumped) == 0 {
		return cleaned, nil
	}

	var reclassify []models.DailyAggregate
	for _, s := range dumped {
		if strings.TrimSpace(s.Ticker) == "" {
			continue
		}
		reclassify = append(reclassify, models.DailyAggregate{
			Ticker:            s.Ticker,
			NameKO:            s.Name,
			MentionCount:      1,
			AggregatedContext: s.Reason,
		})
	}
	if len(reclassify) == 0 {
		return cleaned, nil
	}

	logger.Info("Reclassifying %d stocks from banned themes", len(reclassify))
	result, err := c.classifyBatch(ctx, reclassify, guide, label, 0, 1, sortedKeys(cleaned))
	if err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(result) {
		stocks := result[name]
		for i := range stocks {
			stocks[i].Sector = models.NormalizeSector(stocks[i].Sector)
		}
		addStocks(cleaned, name, stocks)
	}
	return cleaned, nil
}

// splitOversized breaks >10-stock themes into sub-themes, at most two
// split levels deep. Whatever still exceeds the bound afterwards is
// truncated; the overflow stays unclassified for this pass.
func (c *Classifier) splitOversized(ctx context.Context, themes map[string][]llm.ThemeStock) (map[string][]llm.ThemeStock, error) {
	sized := map[string][]llm.ThemeStock{}
	for _, name := range sortedKeys(themes) {
		stocks := themes[name]
		if len(stocks) <= maxThemeSize {
			addStocks(sized, name, stocks)
			continue
		}
		subs, err := c.splitTheme(ctx, name, stocks)
		if err != nil {
			return nil, err
		}
		for _, subName := range sortedKeys(subs) {
			subStocks := subs[subName]
			if len(subStocks) <= maxThemeSize {
				addStocks(sized, subName, subStocks)
				continue
			}
			deeper, err := c.splitTheme(ctx, subName, subStocks)
			if err != nil {
				return nil, err
			}
			for _, deepName := range sortedKeys(deeper) {
				addStocks(sized, deepName, deeper[deepName])
			}
		}
	}

	// Split proposals from different themes can collide on a sub-theme
	// name, so the bound has to hold over the merged result.
	for _, name := range sortedKeys(sized) {
		if stocks := sized[name]; len(stocks) > maxThemeSize {
			logger.Warn("Theme %q still holds %d stocks after splitting, truncating to %d",
				name, len(stocks), maxThemeSize)
			sized[name] = stocks[:maxThemeSize]
		}
	}
	return sized, nil
}

// splitTheme asks the classifier to propose sub-themes. A malformed
// response falls back to the first ten stocks under the original name.
func (c *Classifier) splitTheme(ctx context.Context, name string, stocks []llm.ThemeStock) (map[string][]llm.ThemeStock, error) {
	lines := make([]string, len(stocks))
	for i, s := range stocks {
		display := s.Name
		if display == "" {
			display = s.Ticker
		}
		lines[i] = fmt.Sprintf("- %s: %s", display, s.Reason)
	}

	prompt := fmt.Sprintf(splitThemePrompt, name, len(stocks), strings.Join(lines, "\n"), maxThemeSize)
	resp, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("split call failed: %w", err)
	}

	subs, parseErr := llm.ParseThemes(resp.Text)
	if parseErr != nil {
		logger.Warn("Could not split theme %q, truncating to %d stocks", name, maxThemeSize)
		return map[string][]llm.ThemeStock{name: stocks[:maxThemeSize]}, nil
	}
	return subs, nil
}

// candidate carries an orphan stock through the merge pass alongside
// the theme it was pulled from.
type candidate struct {
	stock         llm.ThemeStock
	originalTheme string
}

// mergeSmallThemes folds single-stock themes into existing themes or
// groups them into new multi-stock ones. Orphans nothing absorbs, and
// all orphans when the merge response cannot be parsed, end up in the
// catch-all theme.
func (c *Classifier) mergeSmallThemes(ctx context.Context, themes map[string][]llm.ThemeStock) (map[string][]llm.ThemeStock, error) {
	big := map[string][]llm.ThemeStock{}
	var orphans []candidate
	for _, name := range sortedKeys(themes) {
		stocks := themes[name]
		if len(stocks) >= 2 {
			big[name] = stocks
			continue
		}
		for _, s := range stocks {
			orphans = append(orphans, candidate{stock: s, originalTheme: name})
		}
	}
	if len(orphans) == 0 {
		return themes, nil
	}

	logger.Info("Merging %d single-stock themes", len(orphans))

	var existingLines []string
	for _, name := range sortedKeys(big) {
		existingLines = append(existingLines, fmt.Sprintf("- %s (%d종목)", name, len(big[name])))
	}
	existing := strings.Join(existingLines, "\n")
	if existing == "" {
		existing = "(없음)"
	}

	orphanLines := make([]string, len(orphans))
	for i, o := range orphans {
		display := o.stock.Name
		if display == "" {
			display = o.stock.Ticker
		}
		orphanLines[i] = fmt.Sprintf("- %s (ticker: %s, sector: %s) - 원래 테마: %s",
			display, o.stock.Ticker, o.stock.Sector, o.originalTheme)
	}

	prompt := fmt.Sprintf(mergeSmallThemesPrompt, existing, strings.Join(orphanLines, "\n"), sectorCodeList())
	resp, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("merge call failed: %w", err)
	}

	result, parseErr := llm.ParseThemes(resp.Text)
	if parseErr != nil {
		logger.Warn("Small-theme merge failed to parse, collapsing %d orphans into %q", len(orphans), catchAllTheme)
		for _, o := range orphans {
			addStocks(big, catchAllTheme, []llm.ThemeStock{o.stock})
		}
		return big, nil
	}

	resolved := map[string]bool{}
	for _, name := range sortedKeys(result) {
		stocks := result[name]
		for i := range stocks {
			stocks[i].Sector = models.NormalizeSector(stocks[i].Sector)
			resolved[stocks[i].Ticker] = true
		}
		addStocks(big, name, stocks)
	}

	// Orphans the merge response never mentioned go to the catch-all.
	for _, o := range orphans {
		if !resolved[o.stock.Ticker] {
			addStocks(big, catchAllTheme, []llm.ThemeStock{o.stock})
		}
	}

	logger.Info("Small-theme merge complete: %d orphans into %d themes", len(orphans), len(result))
	return big, nil
}

func (c *Classifier) storeClassification(reportDate string, set models.ThemeSet, market string) error {
	for _, themeName := range sortedThemeNames(set) {
		themeID, err := c.store.GetOrCreateTheme(themeName, "", market)
		if err != nil {
			return err
		}
		for _, a := range set[themeName] {
			stockID, err := c.resolveStockID(a, market)
			if err != nil {
				return err
			}
			if err := c.store.InsertDailyStockTheme(reportDate, stockID, themeID, a.MentionCount, a.Reason, a.Sector); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Classifier) resolveStockID(a models.Assignment, market string) (int64, error) {
	query := a.Ticker
	if query == "" {
		query = a.Name
	}
	matches, err := c.store.SearchStock(query)
	if err != nil {
		return 0, err
	}
	for _, m := range matches {
		if m.Market == market {
			return m.ID, nil
		}
	}
	stock := models.Stock{Ticker: query, Market: market}
	if market == models.MarketKR {
		stock.NameKO = a.Name
	} else {
		stock.NameEN = a.Name
	}
	return c.store.GetOrCreateStock(&stock)
}

// ── helpers ──

func containsBannedKeyword(themeName string) bool {
	for _, kw := range bannedKeywords {
		if strings.Contains(themeName, kw) {
			return true
		}
	}
	return false
}

func normalizeSectors(themes map[string][]llm.ThemeStock) {
	for _, stocks := range themes {
		for i := range stocks {
			stocks[i].Sector = models.NormalizeSector(stocks[i].Sector)
		}
	}
}

// addStocks appends stocks to a theme, skipping tickers the theme
// already holds.
func addStocks(dst map[string][]llm.ThemeStock, name string, stocks []llm.ThemeStock) {
	seen := map[string]bool{}
	for _, s := range dst[name] {
		seen[s.Ticker] = true
	}
	for _, s := range stocks {
		if seen[s.Ticker] {
			continue
		}
		seen[s.Ticker] = true
		dst[name] = append(dst[name], s)
	}
}

// toThemeSet converts the working structure into the persisted shape,
// joining mention counts and sentiment back from the day's aggregates.
func toThemeSet(themes map[string][]llm.ThemeStock, aggs []models.DailyAggregate) models.ThemeSet {
	byTicker := make(map[string]*models.DailyAggregate, len(aggs))
	for i := range aggs {
		byTicker[aggs[i].Ticker] = &aggs[i]
	}

	set := models.ThemeSet{}
	for name, stocks := range themes {
		for _, s := range stocks {
			a := models.Assignment{
				Name:         s.Name,
				Ticker:       s.Ticker,
				Sector:       s.Sector,
				Reason:       s.Reason,
				MentionCount: 1,
			}
			if agg, ok := byTicker[s.Ticker]; ok {
				a.MentionCount = agg.MentionCount
				a.Sentiment = agg.DominantSentiment
				if a.Name == "" {
					a.Name = agg.DisplayName()
				}
			}
			set[name] = append(set[name], a)
		}
	}
	return set
}

func chunk(stocks []models.DailyAggregate, size int) [][]models.DailyAggregate {
	var batches [][]models.DailyAggregate
	for start := 0; start < len(stocks); start += size {
		end := start + size
		if end > len(stocks) {
			end = len(stocks)
		}
		batches = append(batches, stocks[start:end])
	}
	return batches
}

func sortedKeys(m map[string][]llm.ThemeStock) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedThemeNames(set models.ThemeSet) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
