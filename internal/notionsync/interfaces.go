package notionsync

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// NotionService defines the interface for interacting with Notion API.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// GetDatabase returns the database with its property schema.
	GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error)

	// DeletePage archives a page.
	DeletePage(ctx context.Context, pageID string) error
}

// TransactionSource supplies the ledger rows to push.
type TransactionSource interface {
	ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error)
}
