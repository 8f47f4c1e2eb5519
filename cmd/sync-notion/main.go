package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/infra"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/notionsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.LogLevel)

	// Parse CLI flags
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion database ID (or NOTION_DB_ID)")
	prune := flag.Bool("prune", false, "Archive Notion pages whose transaction no longer exists")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: --end-date is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Parse dates
	startDate, err := civil.ParseDate(*startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}
	endDate, err := civil.ParseDate(*endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}

	// Validate date range
	if endDate.Before(startDate) {
		log.Fatal().
			Str("start_date", startDate.String()).
			Str("end_date", endDate.String()).
			Msg("Error: end-date must not be before start-date")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	st, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	notionClient := notionsync.NewNotionClient(*notionToken)

	problems, err := notionsync.CheckDatabase(ctx, notionClient, *notionDBID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read Notion database")
	}
	if len(problems) > 0 {
		for _, p := range problems {
			log.Error().Str("property", p).Msg("Notion database schema mismatch")
		}
		log.Fatal().Int("problems", len(problems)).Msg("Notion database is missing required properties")
	}

	result, err := notionsync.SyncTransactions(ctx, st, notionClient, *notionDBID, startDate, endDate, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	if *prune {
		all, err := st.AllRecords(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list transactions")
		}
		keep := make(map[string]bool, len(all))
		for _, t := range all {
			keep[t.ID] = true
		}
		deleted, err := notionsync.PruneStale(ctx, notionClient, *notionDBID, keep, *dryRun)
		if err != nil {
			log.Fatal().Err(err).Msg("Prune failed")
		}
		fmt.Printf("Archived %d stale pages.\n", deleted)
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d failed of %d transactions.\n",
		result.Created, result.Updated, result.Failed, result.Total)
}
