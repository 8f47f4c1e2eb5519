package ledger

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// CategoryStats aggregates the transactions of one category. TotalExpenses is
// reported as a positive number.
type CategoryStats struct {
	Category         string          `json:"category"`
	TransactionCount int             `json:"transaction_count"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	FirstTransaction civil.Date      `json:"first_transaction"`
	LastTransaction  civil.Date      `json:"last_transaction"`
}

// Stats returns per-category aggregates, largest transaction count first and
// then by name.
func (l *Ledger) Stats(ctx context.Context) ([]CategoryStats, error) {
	txs, err := l.repo.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	byCategory := make(map[string]*CategoryStats)
	for _, t := range txs {
		s, ok := byCategory[t.Category]
		if !ok {
			s = &CategoryStats{
				Category:         t.Category,
				FirstTransaction: t.TransactionDate,
				LastTransaction:  t.TransactionDate,
			}
			byCategory[t.Category] = s
		}

		s.TransactionCount++
		s.NetAmount = s.NetAmount.Add(t.Amount)
		if t.IsExpense() {
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount.Neg())
		} else {
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		}
		if t.TransactionDate.Before(s.FirstTransaction) {
			s.FirstTransaction = t.TransactionDate
		}
		if t.TransactionDate.After(s.LastTransaction) {
			s.LastTransaction = t.TransactionDate
		}
	}

	out := make([]CategoryStats, 0, len(byCategory))
	for _, s := range byCategory {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionCount != out[j].TransactionCount {
			return out[i].TransactionCount > out[j].TransactionCount
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}
