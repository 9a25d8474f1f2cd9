package industry

import (
	"context"
	"sync"

	"themeradar/internal/logger"
	"themeradar/internal/models"
)

// Cache persists resolved industry labels back onto stock records.
// Satisfied by storage.Storage.
type Cache interface {
	UpdateStockIndustry(stockID int64, industry string) error
}

// Resolver annotates daily aggregates with industry labels. Only US
// rows without a cached label are looked up; KR rows have no wired
// enrichment source. Lookups run on a small worker pool, and all of
// them complete (or fail) before Enrich returns, so downstream always
// sees a fully resolved list.
type Resolver struct {
	source  Source
	cache   Cache
	workers int
}

// NewResolver creates an enrichment resolver.
func NewResolver(source Source, cache Cache, workers int) *Resolver {
	if workers < 1 {
		workers = 2
	}
	return &Resolver{source: source, cache: cache, workers: workers}
}

// Enrich fills in missing industry labels in place and returns the
// list. A failed lookup leaves the row without a hint; it never aborts
// the batch.
func (r *Resolver) Enrich(ctx context.Context, aggs []models.DailyAggregate) []models.DailyAggregate {
	var pending []int
	for i := range aggs {
		if aggs[i].Market != models.MarketUS || aggs[i].Industry != "" {
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return aggs
	}

	logger.Info("Resolving industries for %d US stocks", len(pending))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := r.workers
	if workers > len(pending) {
		workers = len(pending)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r.resolveOne(ctx, &aggs[i])
			}
		}()
	}
	for _, i := range pending {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	resolved := 0
	for _, i := range pending {
		if aggs[i].Industry != "" {
			resolved++
		}
	}
	logger.Info("Industry resolution complete: %d/%d resolved", resolved, len(pending))
	return aggs
}

func (r *Resolver) resolveOne(ctx context.Context, agg *models.DailyAggregate) {
	industry, err := r.source.Lookup(ctx, agg.Ticker)
	if err != nil {
		logger.Debug("Industry lookup failed for %s: %v", agg.Ticker, err)
		return
	}
	if industry == "" {
		return
	}
	agg.Industry = industry
	if err := r.cache.UpdateStockIndustry(agg.StockID, industry); err != nil {
		logger.Debug("Failed to cache industry for %s: %v", agg.Ticker, err)
	}
	logger.Debug("%s → %s", agg.Ticker, industry)
}
