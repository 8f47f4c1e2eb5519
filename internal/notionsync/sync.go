package notionsync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

// pageSize is the Notion maximum for database queries.
const pageSize = 100

// SyncResult counts what a sync did or, in dry-run mode, would do.
type SyncResult struct {
	Total   int  `json:"total"`
	Created int  `json:"created"`
	Updated int  `json:"updated"`
	Failed  int  `json:"failed"`
	DryRun  bool `json:"dry_run"`
}

// SyncTransactions pushes transactions dated within [from, to] to a Notion
// database. Pages are matched on the Transaction ID property: matches are
// updated, the rest created. Per-page failures are logged and counted.
func SyncTransactions(ctx context.Context, repo TransactionSource, notionClient NotionService, notionDBID string, from, to civil.Date, dryRun bool) (*SyncResult, error) {
	log := logger.Component(ctx, "notionsync")

	log.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	transactions, err := repo.ByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: failed to query transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(transactions)).Msg("Retrieved transactions")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = string(page.ID)
		}
	}

	result := &SyncResult{Total: len(transactions), DryRun: dryRun}
	for _, t := range transactions {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("SyncTransactions: %w", err)
		}

		pageID, found := existing[t.ID]
		if dryRun {
			if found {
				log.Info().Str("transaction_id", t.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				result.Updated++
			} else {
				log.Info().Str("transaction_id", t.ID).Msg("[DRY RUN] Would create Notion page")
				result.Created++
			}
			continue
		}

		props := TransactionToNotionProperties(t)
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", t.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			result.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		log.Debug().Str("transaction_id", t.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Int("total", result.Total).
		Msg("Transaction sync completed")

	return result, nil
}

// PruneStale archives pages whose Transaction ID is missing or not in keep.
// It returns the number of pages archived (or that would be, in dry-run mode).
func PruneStale(ctx context.Context, notionClient NotionService, notionDBID string, keep map[string]bool, dryRun bool) (int, error) {
	log := logger.Component(ctx, "notionsync")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return 0, fmt.Errorf("PruneStale: %w", err)
	}

	var deleted int
	for _, page := range notionPages {
		id := extractTransactionID(page)
		if id != "" && keep[id] {
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would delete stale Notion page")
			deleted++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to delete stale Notion page")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// queryAllNotionPages queries all pages from a Notion database, following
// pagination cursors.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: pageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
