// Package categorizer proposes categories for transaction descriptions.
package categorizer

import (
	"context"
	"fmt"
	"strings"
)

// Categorizer proposes a category for a description. ok is false when it has
// no suggestion.
type Categorizer interface {
	Categorize(ctx context.Context, description string) (category string, ok bool, err error)
}

// placeholderCategories are category names that count as "not categorized yet".
var placeholderCategories = map[string]bool{
	"uncategorized": true,
	"other":         true,
	"misc":          true,
	"miscellaneous": true,
}

// NeedsCategory reports whether category is a placeholder worth replacing.
func NeedsCategory(category string) bool {
	return placeholderCategories[strings.ToLower(strings.TrimSpace(category))]
}

// Chain asks each categorizer in turn; the first suggestion wins.
type Chain []Categorizer

func (c Chain) Categorize(ctx context.Context, description string) (string, bool, error) {
	for i, cat := range c {
		category, ok, err := cat.Categorize(ctx, description)
		if err != nil {
			return "", false, fmt.Errorf("Chain: categorizer %d: %w", i, err)
		}
		if ok {
			return category, true, nil
		}
	}
	return "", false, nil
}
