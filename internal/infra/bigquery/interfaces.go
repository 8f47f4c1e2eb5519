package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// Store is the BigQuery implementation of store.Store. It holds a shared
// client to avoid creating a new connection for each operation.
type Store struct {
	client *bigquery.Client
	ds     Dataset
}

var _ store.Store = (*Store)(nil)

// NewStore creates a Store with its own client for ds.ProjectID.
func NewStore(ctx context.Context, ds Dataset) (*Store, error) {
	if ds.ProjectID == "" || ds.Name == "" {
		return nil, fmt.Errorf("NewStore: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, ds: ds}, nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureSchema delegates to EnsureSchemaWithClient with the shared client.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchemaWithClient(ctx, s.client, s.ds)
}

func (s *Store) Exists(ctx context.Context, t *domain.Transaction) (bool, error) {
	return ExistsTransactionWithClient(ctx, s.client, s.ds, t)
}

func (s *Store) FindSimilar(ctx context.Context, t *domain.Transaction, toleranceDays int) ([]*domain.Transaction, error) {
	rows, err := FindSimilarTransactionsWithClient(ctx, s.client, s.ds, t, toleranceDays)
	if err != nil {
		return nil, err
	}
	return dedup.FindPotentialDuplicates(t, rows, toleranceDays), nil
}

// InsertBatch validates every row before sending the batch.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	for i, t := range txs {
		if t == nil {
			return nil, fmt.Errorf("InsertBatch: row %d is nil", i+1)
		}
		if _, err := domain.NewTransaction(*t); err != nil {
			return nil, fmt.Errorf("InsertBatch: row %d: %w", i+1, err)
		}
	}
	return InsertTransactionsWithClient(ctx, s.client, s.ds, txs)
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	txs, err := QueryTransactionsWithClient(ctx, s.client, s.ds, "transaction_id = @id",
		[]bigquery.QueryParameter{{Name: "id", Value: id}})
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("FindByID: %s: %w", id, store.ErrNotFound)
	}
	return txs[0], nil
}

func (s *Store) AllRecords(ctx context.Context) ([]*domain.Transaction, error) {
	return QueryTransactionsWithClient(ctx, s.client, s.ds, "", nil)
}

func (s *Store) ByCategory(ctx context.Context, categories ...string) ([]*domain.Transaction, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	return QueryTransactionsWithClient(ctx, s.client, s.ds, "category IN UNNEST(@categories)",
		[]bigquery.QueryParameter{{Name: "categories", Value: categories}})
}

func (s *Store) ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, s.client, s.ds, from, to)
}

func (s *Store) UpdateCategoryBulk(ctx context.Context, c store.Criteria, category string) (int64, error) {
	return UpdateCategoryWithClient(ctx, s.client, s.ds, c, category)
}

func (s *Store) UpdateCategory(ctx context.Context, id, category string) (bool, error) {
	n, err := UpdateCategoryWithClient(ctx, s.client, s.ds, store.Criteria{IDs: []string{id}}, category)
	return n > 0, err
}

func (s *Store) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return DeleteTransactionsWithClient(ctx, s.client, s.ds, &store.Criteria{IDs: ids})
}

func (s *Store) DeleteByCriteria(ctx context.Context, c store.Criteria) (int64, error) {
	return DeleteTransactionsWithClient(ctx, s.client, s.ds, &c)
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	return DeleteTransactionsWithClient(ctx, s.client, s.ds, nil)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	return ListCategoriesWithClient(ctx, s.client, s.ds)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return CountTransactionsWithClient(ctx, s.client, s.ds)
}

func (s *Store) LoadCategoryEdges(ctx context.Context) ([]store.CategoryEdge, error) {
	return ListCategoryEdgesWithClient(ctx, s.client, s.ds)
}

func (s *Store) SaveCategoryEdges(ctx context.Context, edges []store.CategoryEdge) error {
	return ReplaceCategoryEdgesWithClient(ctx, s.client, s.ds, edges)
}
