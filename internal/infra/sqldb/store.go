package sqldb

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"gorm.io/gorm"
)

const orderNewestFirst = "transaction_date DESC, created_at ASC, id ASC"

// Store implements store.Store on top of gorm.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an already migrated connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) Exists(ctx context.Context, t *domain.Transaction) (bool, error) {
	var models []transactionModel
	err := s.db.WithContext(ctx).
		Where("transaction_date = ? AND post_date = ? AND description = ?",
			t.TransactionDate.String(), t.PostDate.String(), t.Description).
		Find(&models).Error
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}

	for _, m := range models {
		// byte-wise comparison; MySQL's default collation ignores case
		if m.Description == t.Description && m.Amount.Equal(t.Amount) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindSimilar(ctx context.Context, t *domain.Transaction, toleranceDays int) ([]*domain.Transaction, error) {
	from := t.TransactionDate.AddDays(-toleranceDays)
	to := t.TransactionDate.AddDays(toleranceDays)

	var models []transactionModel
	err := s.db.WithContext(ctx).
		Where("transaction_date BETWEEN ? AND ?", from.String(), to.String()).
		Order(orderNewestFirst).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find similar transactions: %w", err)
	}

	all, err := toDomainAll(models)
	if err != nil {
		return nil, err
	}
	return dedup.FindPotentialDuplicates(t, all, toleranceDays), nil
}

// InsertBatch writes every row in one database transaction.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	models := make([]transactionModel, len(txs))
	for i, t := range txs {
		if t == nil {
			return nil, fmt.Errorf("InsertBatch: row %d is nil", i+1)
		}
		if _, err := domain.NewTransaction(*t); err != nil {
			return nil, fmt.Errorf("InsertBatch: row %d: %w", i+1, err)
		}
		models[i] = toModel(t)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&models, 500).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert transactions: %w", err)
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var m transactionModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("FindByID: %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return m.toDomain()
}

func (s *Store) AllRecords(ctx context.Context) ([]*domain.Transaction, error) {
	return s.find(ctx, s.db.WithContext(ctx))
}

func (s *Store) ByCategory(ctx context.Context, categories ...string) ([]*domain.Transaction, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	return s.find(ctx, s.db.WithContext(ctx).Where("category IN ?", categories))
}

func (s *Store) ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error) {
	return s.find(ctx, s.db.WithContext(ctx).Where("transaction_date BETWEEN ? AND ?", from.String(), to.String()))
}

func (s *Store) UpdateCategoryBulk(ctx context.Context, c store.Criteria, category string) (int64, error) {
	if c.IsEmpty() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&transactionModel{}).
		Scopes(criteria(c)).
		Update("category", category)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update categories: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id, category string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&transactionModel{}).
		Where("id = ?", id).
		Update("category", category)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update category: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.delete(ctx, s.db.WithContext(ctx).Where("id IN ?", ids))
}

func (s *Store) DeleteByCriteria(ctx context.Context, c store.Criteria) (int64, error) {
	if c.IsEmpty() {
		return 0, nil
	}
	return s.delete(ctx, s.db.WithContext(ctx).Scopes(criteria(c)))
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	return s.delete(ctx, s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}))
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := s.db.WithContext(ctx).Model(&transactionModel{}).
		Where("category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &cats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&transactionModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func (s *Store) LoadCategoryEdges(ctx context.Context) ([]store.CategoryEdge, error) {
	var models []categoryEdgeModel
	if err := s.db.WithContext(ctx).Order("level, category").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load category hierarchy: %w", err)
	}
	edges := make([]store.CategoryEdge, len(models))
	for i, m := range models {
		edges[i] = store.CategoryEdge{Category: m.Category, Parent: m.Parent, Level: m.Level}
	}
	return edges, nil
}

// SaveCategoryEdges replaces the stored hierarchy in one transaction.
func (s *Store) SaveCategoryEdges(ctx context.Context, edges []store.CategoryEdge) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&categoryEdgeModel{}).Error; err != nil {
			return err
		}
		if len(edges) == 0 {
			return nil
		}
		models := edgeModels(edges)
		return tx.Create(&models).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save category hierarchy: %w", err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, q *gorm.DB) ([]*domain.Transaction, error) {
	var models []transactionModel
	if err := q.Order(orderNewestFirst).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return toDomainAll(models)
}

func (s *Store) delete(ctx context.Context, q *gorm.DB) (int64, error) {
	res := q.Delete(&transactionModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func criteria(c store.Criteria) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(c.Categories) > 0 {
			db = db.Where("category IN ?", c.Categories)
		}
		if len(c.IDs) > 0 {
			db = db.Where("id IN ?", c.IDs)
		}
		if c.From != nil {
			db = db.Where("transaction_date >= ?", c.From.String())
		}
		if c.To != nil {
			db = db.Where("transaction_date <= ?", c.To.String())
		}
		return db
	}
}
