package store

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

// Criteria selects stored transactions for bulk updates and deletes.
// Non-empty constraints are combined with AND; an empty Criteria matches nothing.
type Criteria struct {
	Categories []string
	IDs        []string
	From       *civil.Date
	To         *civil.Date
}

// IsEmpty reports whether no constraint is set.
func (c Criteria) IsEmpty() bool {
	return len(c.Categories) == 0 && len(c.IDs) == 0 && c.From == nil && c.To == nil
}

// Matches evaluates the criteria against one transaction.
func (c Criteria) Matches(t *domain.Transaction) bool {
	if c.IsEmpty() {
		return false
	}
	if len(c.Categories) > 0 && !contains(c.Categories, t.Category) {
		return false
	}
	if len(c.IDs) > 0 && !contains(c.IDs, t.ID) {
		return false
	}
	if c.From != nil && t.TransactionDate.Before(*c.From) {
		return false
	}
	if c.To != nil && t.TransactionDate.After(*c.To) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// CategoryEdge is one node of the category hierarchy. Parent is empty for roots.
type CategoryEdge struct {
	Category string `json:"category"`
	Parent   string `json:"parent,omitempty"`
	Level    int    `json:"level"`
}

// TransactionRepository is the storage collaborator for transactions.
// InsertBatch and the bulk operations are atomic per call.
type TransactionRepository interface {
	// Exists reports whether a record with the same transaction date, post
	// date, description (case-sensitive) and amount is stored.
	Exists(ctx context.Context, t *domain.Transaction) (bool, error)

	// FindSimilar returns records with the same amount and case-insensitive
	// description whose transaction date is within ±toleranceDays.
	FindSimilar(ctx context.Context, t *domain.Transaction, toleranceDays int) ([]*domain.Transaction, error)

	// InsertBatch stores all transactions or none and returns their new ids
	// in input order.
	InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]string, error)

	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	AllRecords(ctx context.Context) ([]*domain.Transaction, error)
	ByCategory(ctx context.Context, categories ...string) ([]*domain.Transaction, error)

	// ByDateRange returns records whose transaction date is within [from, to].
	ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error)

	UpdateCategoryBulk(ctx context.Context, c Criteria, category string) (int64, error)
	UpdateCategory(ctx context.Context, id, category string) (bool, error)

	DeleteBatch(ctx context.Context, ids []string) (int64, error)
	DeleteByCriteria(ctx context.Context, c Criteria) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)

	// Categories returns the distinct non-empty categories, sorted.
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// HierarchyRepository persists the category hierarchy.
type HierarchyRepository interface {
	LoadCategoryEdges(ctx context.Context) ([]CategoryEdge, error)
	SaveCategoryEdges(ctx context.Context, edges []CategoryEdge) error
}

// Store is a complete storage backend.
type Store interface {
	TransactionRepository
	HierarchyRepository
	Close() error
}
