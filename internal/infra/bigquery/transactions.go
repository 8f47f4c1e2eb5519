package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the number of fractional digits a BigQuery NUMERIC keeps.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	PostDate        civil.Date `bigquery:"post_date"`        // REQUIRED

	Description     string `bigquery:"description"`      // REQUIRED
	Category        string `bigquery:"category"`         // REQUIRED
	TransactionType string `bigquery:"transaction_type"` // NULLABLE

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Memo bigquery.NullString `bigquery:"memo"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func toRow(id string, t *domain.Transaction, created time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   id,
		TransactionDate: t.TransactionDate,
		PostDate:        t.PostDate,
		Description:     t.Description,
		Category:        t.Category,
		TransactionType: t.TransactionType,
		Amount:          t.Amount.Rat(),
		CreatedTS:       created,
	}
	if t.Memo != nil {
		row.Memo = bigquery.NullString{StringVal: *t.Memo, Valid: true}
	}
	return row
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	t := &domain.Transaction{
		ID:              r.TransactionID,
		TransactionDate: r.TransactionDate,
		PostDate:        r.PostDate,
		Description:     r.Description,
		Category:        r.Category,
		TransactionType: r.TransactionType,
	}
	if r.Amount != nil {
		t.Amount = decimal.NewFromBigRat(r.Amount, numericScale)
	}
	if r.Memo.Valid {
		memo := r.Memo.StringVal
		t.Memo = &memo
	}
	return t
}

func toDomainAll(rows []*TransactionRow) []*domain.Transaction {
	out := make([]*domain.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
