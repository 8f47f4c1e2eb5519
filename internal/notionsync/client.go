package notionsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	defaultMaxAttempts = 4
	defaultRetryDelay  = time.Second
)

// NotionClient implements NotionService over the Notion SDK. Requests that
// are rate limited (HTTP 429) or hit a 5xx are retried with linear backoff.
type NotionClient struct {
	client      *notionapi.Client
	maxAttempts int
	retryDelay  time.Duration
}

func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client:      notionapi.NewClient(notionapi.Token(token)),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	var page *notionapi.Page
	err := n.retry(ctx, "CreatePage", func() (err error) {
		page, err = n.client.Page.Create(ctx, req)
		return err
	})
	return page, err
}

func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{Properties: properties}

	var page *notionapi.Page
	err := n.retry(ctx, "UpdatePage", func() (err error) {
		page, err = n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	return page, err
}

func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := n.retry(ctx, "QueryDatabase", func() (err error) {
		resp, err = n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), query)
		return err
	})
	return resp, err
}

func (n *NotionClient) GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error) {
	var db *notionapi.Database
	err := n.retry(ctx, "GetDatabase", func() (err error) {
		db, err = n.client.Database.Get(ctx, notionapi.DatabaseID(databaseID))
		return err
	})
	return db, err
}

// DeletePage archives the page; Notion has no hard delete.
func (n *NotionClient) DeletePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{Archived: true}
	return n.retry(ctx, "DeletePage", func() error {
		_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
}

func (n *NotionClient) retry(ctx context.Context, op string, call func() error) error {
	log := logger.Component(ctx, "notion")

	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == n.maxAttempts {
			break
		}

		delay := time.Duration(attempt) * n.retryDelay
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("Notion request failed, retrying")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func retryable(err error) bool {
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
}
