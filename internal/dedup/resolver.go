package dedup

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Repository is the part of the store the resolver reads from.
type Repository interface {
	Exists(ctx context.Context, t *domain.Transaction) (bool, error)
	FindSimilar(ctx context.Context, t *domain.Transaction, toleranceDays int) ([]*domain.Transaction, error)
	ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error)
}

// Candidate is one incoming transaction and how it relates to stored records.
// NearMatches lists records within the date tolerance that were not already
// reported as exact or fuzzy matches.
type Candidate struct {
	Index       int                   `json:"index"`
	Transaction *domain.Transaction   `json:"transaction"`
	Result      Result                `json:"result"`
	NearMatches []*domain.Transaction `json:"near_matches,omitempty"`
}

// Ambiguous reports whether the candidate needs a human decision: a fuzzy
// duplicate, or a new row with near matches.
func (c Candidate) Ambiguous() bool {
	switch c.Result.Classification {
	case FuzzyDuplicate:
		return true
	case New:
		return len(c.NearMatches) > 0
	default:
		return false
	}
}

// Analysis is the partition of a batch against the store.
type Analysis struct {
	Candidates []Candidate `json:"candidates"`
	New        int         `json:"new"`
	Exact      int         `json:"exact_duplicates"`
	Fuzzy      int         `json:"fuzzy_duplicates"`
	Ambiguous  int         `json:"ambiguous"`
}

// Duplicates is the number of exact and fuzzy duplicates.
func (a *Analysis) Duplicates() int {
	return a.Exact + a.Fuzzy
}

// Resolver classifies incoming batches against stored records.
type Resolver struct {
	repo          Repository
	toleranceDays int
}

// NewResolver creates a resolver. A negative tolerance is treated as zero.
func NewResolver(repo Repository, toleranceDays int) *Resolver {
	if toleranceDays < 0 {
		toleranceDays = 0
	}
	return &Resolver{repo: repo, toleranceDays: toleranceDays}
}

// ToleranceDays returns the near-match window.
func (r *Resolver) ToleranceDays() int {
	return r.toleranceDays
}

// Analyze classifies every transaction in txs. Stored records are loaded
// once for the batch's date span widened by the tolerance. Rows in the same
// batch are not compared with each other.
func (r *Resolver) Analyze(ctx context.Context, txs []*domain.Transaction) (*Analysis, error) {
	analysis := &Analysis{Candidates: make([]Candidate, 0, len(txs))}
	if len(txs) == 0 {
		return analysis, nil
	}

	from, to := txs[0].TransactionDate, txs[0].TransactionDate
	for _, t := range txs[1:] {
		if t.TransactionDate.Before(from) {
			from = t.TransactionDate
		}
		if t.TransactionDate.After(to) {
			to = t.TransactionDate
		}
	}

	existing, err := r.repo.ByDateRange(ctx, from.AddDays(-r.toleranceDays), to.AddDays(r.toleranceDays))
	if err != nil {
		return nil, fmt.Errorf("Analyze: loading stored records: %w", err)
	}

	for i, t := range txs {
		c := r.candidate(i, t, existing)
		analysis.add(c)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("batch", len(txs)).
		Int("new", analysis.New).
		Int("exact", analysis.Exact).
		Int("fuzzy", analysis.Fuzzy).
		Int("ambiguous", analysis.Ambiguous).
		Msg("Duplicate analysis complete")

	return analysis, nil
}

// Check classifies a single transaction. A stored exact duplicate is reported
// without a similarity lookup, so its candidate carries no matches.
func (r *Resolver) Check(ctx context.Context, t *domain.Transaction) (Candidate, error) {
	exists, err := r.repo.Exists(ctx, t)
	if err != nil {
		return Candidate{}, fmt.Errorf("Check: %w", err)
	}
	if exists {
		return Candidate{Transaction: t, Result: Result{Classification: ExactDuplicate}}, nil
	}

	similar, err := r.repo.FindSimilar(ctx, t, r.toleranceDays)
	if err != nil {
		return Candidate{}, fmt.Errorf("Check: %w", err)
	}
	return r.candidate(0, t, similar), nil
}

func (r *Resolver) candidate(i int, t *domain.Transaction, existing []*domain.Transaction) Candidate {
	c := Candidate{Index: i, Transaction: t, Result: Classify(t, existing)}

	reported := make(map[*domain.Transaction]bool, len(c.Result.Matches))
	for _, m := range c.Result.Matches {
		reported[m] = true
	}
	for _, near := range FindPotentialDuplicates(t, existing, r.toleranceDays) {
		if !reported[near] {
			c.NearMatches = append(c.NearMatches, near)
		}
	}
	return c
}

func (a *Analysis) add(c Candidate) {
	a.Candidates = append(a.Candidates, c)
	switch c.Result.Classification {
	case ExactDuplicate:
		a.Exact++
	case FuzzyDuplicate:
		a.Fuzzy++
	default:
		a.New++
	}
	if c.Ambiguous() {
		a.Ambiguous++
	}
}

// Policy decides which analyzed rows are inserted.
type Policy string

const (
	// PolicySkipDuplicates inserts only rows that are neither exact nor fuzzy duplicates.
	PolicySkipDuplicates Policy = "skip"
	// PolicyForceAll inserts every row.
	PolicyForceAll Policy = "force"
	// PolicyReview skips exact duplicates and asks a Decider about ambiguous rows.
	PolicyReview Policy = "review"
)

// ParsePolicy maps a name to a Policy. The empty string is PolicySkipDuplicates.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySkipDuplicates:
		return PolicySkipDuplicates, nil
	case PolicyForceAll:
		return PolicyForceAll, nil
	case PolicyReview:
		return PolicyReview, nil
	default:
		return "", fmt.Errorf("ParsePolicy: unknown import policy %q", s)
	}
}

// Decider accepts or rejects one ambiguous candidate.
type Decider func(ctx context.Context, c Candidate) (bool, error)

// Selection is the outcome of applying a policy to an analysis.
// Pending holds ambiguous rows left undecided because no Decider was given.
type Selection struct {
	Accepted []*domain.Transaction `json:"-"`
	Skipped  []Candidate           `json:"skipped,omitempty"`
	Pending  []Candidate           `json:"pending,omitempty"`
}

// Select applies policy to the analysis. Under PolicyReview a nil decider
// leaves ambiguous rows pending; they are neither accepted nor skipped.
func Select(ctx context.Context, a *Analysis, policy Policy, decide Decider) (*Selection, error) {
	sel := &Selection{}
	for _, c := range a.Candidates {
		switch policy {
		case PolicyForceAll:
			sel.Accepted = append(sel.Accepted, c.Transaction)

		case PolicyReview:
			switch {
			case c.Result.Classification == ExactDuplicate:
				sel.Skipped = append(sel.Skipped, c)
			case c.Ambiguous() && decide == nil:
				sel.Pending = append(sel.Pending, c)
			case c.Ambiguous():
				accept, err := decide(ctx, c)
				if err != nil {
					return nil, fmt.Errorf("Select: row %d: %w", c.Index+1, err)
				}
				if accept {
					sel.Accepted = append(sel.Accepted, c.Transaction)
				} else {
					sel.Skipped = append(sel.Skipped, c)
				}
			default:
				sel.Accepted = append(sel.Accepted, c.Transaction)
			}

		default:
			if c.Result.Classification == New {
				sel.Accepted = append(sel.Accepted, c.Transaction)
			} else {
				sel.Skipped = append(sel.Skipped, c)
			}
		}
	}
	return sel, nil
}
