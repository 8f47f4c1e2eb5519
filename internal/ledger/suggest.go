package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// Suggestion groups placeholder-categorized transactions under a proposed category.
type Suggestion struct {
	Category     string                `json:"category"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// IDs returns the ids of the suggested transactions.
func (s Suggestion) IDs() []string {
	ids := make([]string, 0, len(s.Transactions))
	for _, t := range s.Transactions {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// SuggestCategories runs c over every transaction whose category is a
// placeholder and groups the proposals by category name. Transactions the
// categorizer fails on get no suggestion.
func (l *Ledger) SuggestCategories(ctx context.Context, c categorizer.Categorizer) ([]Suggestion, error) {
	txs, err := l.repo.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("SuggestCategories: %w", err)
	}

	grouped := make(map[string][]*domain.Transaction)
	log := logger.Component(ctx, "ledger")
	var candidates, failed int
	for _, t := range txs {
		if !categorizer.NeedsCategory(t.Category) {
			continue
		}
		candidates++

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("SuggestCategories: %w", err)
		}
		category, ok, err := c.Categorize(ctx, t.Description)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Str("description", t.Description).Msg("Categorizer failed, no suggestion")
			failed++
			continue
		}
		if ok && category != t.Category {
			grouped[category] = append(grouped[category], t)
		}
	}

	out := make([]Suggestion, 0, len(grouped))
	for category, group := range grouped {
		out = append(out, Suggestion{Category: category, Transactions: group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })

	log.Info().
		Int("candidates", candidates).
		Int("failed", failed).
		Int("suggested_categories", len(out)).
		Msg("Category suggestions ready")
	return out, nil
}

// ApplySuggestions writes each suggestion as one bulk update and returns the
// total number of transactions changed.
func (l *Ledger) ApplySuggestions(ctx context.Context, suggestions []Suggestion) (int64, error) {
	var total int64
	for _, s := range suggestions {
		ids := s.IDs()
		if len(ids) == 0 {
			continue
		}
		n, err := l.repo.UpdateCategoryBulk(ctx, store.Criteria{IDs: ids}, s.Category)
		if err != nil {
			return total, fmt.Errorf("ApplySuggestions: %s: %w", s.Category, err)
		}
		total += n
	}
	return total, nil
}
