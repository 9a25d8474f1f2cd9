package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"themeradar/internal/classifier"
	"themeradar/internal/config"
	"themeradar/internal/history"
	"themeradar/internal/industry"
	"themeradar/internal/llm"
	"themeradar/internal/logger"
	"themeradar/internal/models"
	"themeradar/internal/pipeline"
	"themeradar/internal/ratelimit"
	"themeradar/internal/storage"
	"themeradar/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	reportDate = flag.String("date", "", "Report date (YYYY-MM-DD, default today)")
	fromDate   = flag.String("from", "", "Backfill start date (YYYY-MM-DD)")
	toDate     = flag.String("to", "", "Backfill end date (YYYY-MM-DD, default yesterday)")
	backDays   = flag.Int("days", 0, "Backfill the last N days up to yesterday")
	listen     = flag.Bool("listen", false, "Keep running after the batch to serve bot commands")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	taxonomy, err := config.LoadTaxonomy(cfg.Export.TaxonomyPath)
	if err != nil {
		logger.Warn("Taxonomy file unavailable (%v), using built-in taxonomy", err)
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	gate := ratelimit.New()
	gate.AddBucket(llm.BucketName, float64(cfg.Claude.RequestsPerMin), cfg.Claude.Burst)
	claude := llm.NewClaude(cfg.Claude, gate)

	var enricher classifier.Enricher
	if cfg.Industry.Enabled {
		source := industry.NewClient(cfg.Industry)
		enricher = industry.NewResolver(source, store, cfg.Industry.Workers)
	} else {
		logger.Debug("Industry enrichment disabled")
	}

	cls := classifier.New(store, claude, taxonomy, enricher, cfg.Claude.BatchSize)
	ledger := history.New(cfg.Export.Dir)

	var telegramClient *telegram.Client
	var sender pipeline.Sender
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		sender = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram delivery disabled")
	}

	pipe := pipeline.New(store, cls, ledger, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing the current stage...")
		cancel()
	}()

	dates, err := resolveDates()
	if err != nil {
		logger.Fatal("%v", err)
	}

	if telegramClient != nil {
		today := dates[len(dates)-1]
		telegramClient.ListenForCommands(ctx, func() (string, string, error) {
			return pipe.DigestFor(today)
		})
	}

	logger.Info("Processing %d date(s): %s to %s", len(dates), dates[0], dates[len(dates)-1])
	results := pipe.RunRange(ctx, dates)
	notifyFailures(telegramClient, results)

	if len(dates) > 1 {
		printSummary(results)
	}

	if *listen && ctx.Err() == nil {
		logger.Info("Batch complete, staying alive for bot commands")
		<-ctx.Done()
	}
	logger.Info("Done")
}

// resolveDates turns the date flags into the list of report dates.
// Dates are interpreted in the market's local timezone.
func resolveDates() ([]string, error) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.Local
	}
	today := time.Now().In(loc)

	switch {
	case *backDays > 0:
		from := today.AddDate(0, 0, -*backDays).Format(models.DateLayout)
		to := today.AddDate(0, 0, -1).Format(models.DateLayout)
		return pipeline.DatesBetween(from, to)
	case *fromDate != "":
		to := *toDate
		if to == "" {
			to = today.AddDate(0, 0, -1).Format(models.DateLayout)
		}
		return pipeline.DatesBetween(*fromDate, to)
	case *reportDate != "":
		return []string{*reportDate}, nil
	default:
		return []string{today.Format(models.DateLayout)}, nil
	}
}

// notifyFailures mirrors the day results into Telegram: an error notice
// on the first failure of a sequence, a recovery notice when a later
// day succeeds.
func notifyFailures(client *telegram.Client, results []pipeline.DayResult) {
	if client == nil {
		return
	}
	consecutive := 0
	for _, r := range results {
		if r.Err != nil {
			consecutive++
			if consecutive == 1 {
				if err := client.SendError(r.Err); err != nil {
					logger.Warn("Failed to send error notification: %v", err)
				}
			}
			continue
		}
		if consecutive > 0 {
			if err := client.SendRecovery(consecutive); err != nil {
				logger.Warn("Failed to send recovery notification: %v", err)
			}
		}
		consecutive = 0
	}
}

func printSummary(results []pipeline.DayResult) {
	fmt.Println("  date         KR themes  KR stocks  US themes  US stocks")
	for _, r := range results {
		status := ""
		if r.Err != nil {
			status = "  (failed)"
		}
		fmt.Printf("  %-12s %9d  %9d  %9d  %9d%s\n",
			r.Date, r.KRThemes, r.KRStocks, r.USThemes, r.USStocks, status)
	}
}
