package dedup

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// DefaultToleranceDays is the date window used for near-match lookups.
const DefaultToleranceDays = 1

// Classification partitions an incoming row relative to stored records.
type Classification int

const (
	New Classification = iota
	ExactDuplicate
	FuzzyDuplicate
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case ExactDuplicate:
		return "exact_duplicate"
	case FuzzyDuplicate:
		return "fuzzy_duplicate"
	default:
		return "unknown"
	}
}

// MarshalText renders the classification by name in JSON output.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (c *Classification) UnmarshalText(text []byte) error {
	switch string(text) {
	case "new":
		*c = New
	case "exact_duplicate":
		*c = ExactDuplicate
	case "fuzzy_duplicate":
		*c = FuzzyDuplicate
	default:
		return fmt.Errorf("unknown classification %q", text)
	}
	return nil
}

// Result is the classification of one candidate with the records it matched.
type Result struct {
	Classification Classification        `json:"classification"`
	Matches        []*domain.Transaction `json:"matches,omitempty"`
}

// IsExactMatch compares transaction date, post date, description
// (case-sensitive) and amount.
func IsExactMatch(a, b *domain.Transaction) bool {
	return a.TransactionDate == b.TransactionDate &&
		a.PostDate == b.PostDate &&
		a.Description == b.Description &&
		a.Amount.Equal(b.Amount)
}

// IsFuzzyMatch compares transaction date and amount, and the description
// ignoring case.
func IsFuzzyMatch(a, b *domain.Transaction) bool {
	return a.TransactionDate == b.TransactionDate &&
		a.Amount.Equal(b.Amount) &&
		strings.EqualFold(a.Description, b.Description)
}

// IsNearMatch compares amount and description ignoring case, with the
// transaction dates at most toleranceDays apart.
func IsNearMatch(a, b *domain.Transaction, toleranceDays int) bool {
	if !a.Amount.Equal(b.Amount) || !strings.EqualFold(a.Description, b.Description) {
		return false
	}
	diff := a.TransactionDate.DaysSince(b.TransactionDate)
	if diff < 0 {
		diff = -diff
	}
	return diff <= toleranceDays
}

// Classify checks candidate against existing. An exact match wins over a
// fuzzy one; all matches of the winning kind are returned.
func Classify(candidate *domain.Transaction, existing []*domain.Transaction) Result {
	var exact, fuzzy []*domain.Transaction
	for _, e := range existing {
		switch {
		case IsExactMatch(candidate, e):
			exact = append(exact, e)
		case IsFuzzyMatch(candidate, e):
			fuzzy = append(fuzzy, e)
		}
	}

	if len(exact) > 0 {
		return Result{Classification: ExactDuplicate, Matches: exact}
	}
	if len(fuzzy) > 0 {
		return Result{Classification: FuzzyDuplicate, Matches: fuzzy}
	}
	return Result{Classification: New}
}

// FindPotentialDuplicates returns the records in existing that are near
// matches of candidate within ±toleranceDays, inclusive.
func FindPotentialDuplicates(candidate *domain.Transaction, existing []*domain.Transaction, toleranceDays int) []*domain.Transaction {
	var out []*domain.Transaction
	for _, e := range existing {
		if IsNearMatch(candidate, e, toleranceDays) {
			out = append(out, e)
		}
	}
	return out
}
