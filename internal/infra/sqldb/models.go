package sqldb

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// dates are stored as YYYY-MM-DD strings so range filters compare lexically
// on every driver.
type transactionModel struct {
	ID              string          `gorm:"primaryKey;size:36"`
	TransactionDate string          `gorm:"size:10;not null;index"`
	PostDate        string          `gorm:"size:10;not null"`
	Description     string          `gorm:"size:512;not null;index"`
	Category        string          `gorm:"size:128;index"`
	TransactionType string          `gorm:"size:32"`
	Amount          decimal.Decimal `gorm:"type:varchar(64);not null"`
	Memo            *string         `gorm:"size:1024"`
	CreatedAt       time.Time
}

func (transactionModel) TableName() string {
	return "transactions"
}

// BeforeCreate assigns the record id.
func (m *transactionModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type categoryEdgeModel struct {
	Category string `gorm:"primaryKey;size:128"`
	Parent   string `gorm:"size:128;index"`
	Level    int
}

func (categoryEdgeModel) TableName() string {
	return "category_hierarchy"
}

func toModel(t *domain.Transaction) transactionModel {
	return transactionModel{
		TransactionDate: t.TransactionDate.String(),
		PostDate:        t.PostDate.String(),
		Description:     t.Description,
		Category:        t.Category,
		TransactionType: t.TransactionType,
		Amount:          t.Amount,
		Memo:            t.Memo,
	}
}

func (m transactionModel) toDomain() (*domain.Transaction, error) {
	txDate, err := civil.ParseDate(m.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("record %s: transaction_date: %w", m.ID, err)
	}
	postDate, err := civil.ParseDate(m.PostDate)
	if err != nil {
		return nil, fmt.Errorf("record %s: post_date: %w", m.ID, err)
	}
	return &domain.Transaction{
		ID:              m.ID,
		TransactionDate: txDate,
		PostDate:        postDate,
		Description:     m.Description,
		Category:        m.Category,
		TransactionType: m.TransactionType,
		Amount:          m.Amount,
		Memo:            m.Memo,
	}, nil
}

func toDomainAll(models []transactionModel) ([]*domain.Transaction, error) {
	out := make([]*domain.Transaction, 0, len(models))
	for _, m := range models {
		t, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func edgeModels(edges []store.CategoryEdge) []categoryEdgeModel {
	out := make([]categoryEdgeModel, len(edges))
	for i, e := range edges {
		out[i] = categoryEdgeModel{Category: e.Category, Parent: e.Parent, Level: e.Level}
	}
	return out
}
