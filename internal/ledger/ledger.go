// Package ledger maintains category names and the category hierarchy across
// every stored transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// ErrMergeTargetInSources is returned when a merge target is one of the
// categories being merged.
var ErrMergeTargetInSources = errors.New("merge target is one of the source categories")

// Repository is the storage the ledger mutates.
type Repository interface {
	AllRecords(ctx context.Context) ([]*domain.Transaction, error)
	ByCategory(ctx context.Context, categories ...string) ([]*domain.Transaction, error)
	UpdateCategoryBulk(ctx context.Context, c store.Criteria, category string) (int64, error)
	UpdateCategory(ctx context.Context, id, category string) (bool, error)
	Categories(ctx context.Context) ([]string, error)
}

// Ledger applies category bookkeeping to stored transactions. Rename, merge
// and delete are single bulk updates so each is atomic in the store.
// The hierarchy is independent of those operations and is not rewritten by them.
type Ledger struct {
	repo      Repository
	edges     store.HierarchyRepository
	mu        sync.Mutex
	hierarchy *Hierarchy
}

// New creates a ledger with an empty hierarchy. edges may be nil, in which
// case the hierarchy lives only in memory.
func New(repo Repository, edges store.HierarchyRepository) *Ledger {
	h, _ := NewHierarchy(nil)
	return &Ledger{repo: repo, edges: edges, hierarchy: h}
}

// Load replaces the in-memory hierarchy with the persisted one.
func (l *Ledger) Load(ctx context.Context) error {
	if l.edges == nil {
		return nil
	}
	stored, err := l.edges.LoadCategoryEdges(ctx)
	if err != nil {
		return fmt.Errorf("Load: %w", err)
	}
	h, err := NewHierarchy(stored)
	if err != nil {
		return fmt.Errorf("Load: %w", err)
	}

	l.mu.Lock()
	l.hierarchy = h
	l.mu.Unlock()
	return nil
}

// Rename moves every transaction in category old to new. Renaming onto an
// existing category merges the two.
func (l *Ledger) Rename(ctx context.Context, old, new string) (int64, error) {
	old, new = strings.TrimSpace(old), strings.TrimSpace(new)
	if old == "" || new == "" {
		return 0, fmt.Errorf("Rename: %w", ErrEmptyCategory)
	}
	if old == new {
		return 0, nil
	}

	n, err := l.repo.UpdateCategoryBulk(ctx, store.Criteria{Categories: []string{old}}, new)
	if err != nil {
		return 0, fmt.Errorf("Rename: %w", err)
	}

	log := logger.Component(ctx, "ledger")
	log.Info().
		Str("from", old).
		Str("to", new).
		Int64("updated", n).
		Msg("Renamed category")
	return n, nil
}

// Merge moves every transaction whose category is in sources to target.
// A target listed in sources is rejected before anything is written, with
// a count of 0 and ErrMergeTargetInSources.
func (l *Ledger) Merge(ctx context.Context, sources []string, target string) (int64, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, fmt.Errorf("Merge: %w", ErrEmptyCategory)
	}

	var cleaned []string
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s == target {
			return 0, fmt.Errorf("Merge: %q: %w", target, ErrMergeTargetInSources)
		}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return 0, nil
	}

	n, err := l.repo.UpdateCategoryBulk(ctx, store.Criteria{Categories: cleaned}, target)
	if err != nil {
		return 0, fmt.Errorf("Merge: %w", err)
	}

	log := logger.Component(ctx, "ledger")
	log.Info().
		Strs("sources", cleaned).
		Str("target", target).
		Int64("updated", n).
		Msg("Merged categories")
	return n, nil
}

// Delete moves every transaction in category to replacement, which defaults
// to domain.UncategorizedCategory.
func (l *Ledger) Delete(ctx context.Context, category, replacement string) (int64, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, fmt.Errorf("Delete: %w", ErrEmptyCategory)
	}
	replacement = strings.TrimSpace(replacement)
	if replacement == "" {
		replacement = domain.UncategorizedCategory
	}
	if replacement == category {
		return 0, nil
	}

	n, err := l.repo.UpdateCategoryBulk(ctx, store.Criteria{Categories: []string{category}}, replacement)
	if err != nil {
		return 0, fmt.Errorf("Delete: %w", err)
	}

	log := logger.Component(ctx, "ledger")
	log.Info().
		Str("category", category).
		Str("replacement", replacement).
		Int64("updated", n).
		Msg("Deleted category")
	return n, nil
}

// Categories returns the distinct categories in use, sorted.
func (l *Ledger) Categories(ctx context.Context) ([]string, error) {
	cats, err := l.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("Categories: %w", err)
	}
	return cats, nil
}

// UpdateTransactionCategory sets the category of one transaction.
func (l *Ledger) UpdateTransactionCategory(ctx context.Context, id, category string) (bool, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return false, fmt.Errorf("UpdateTransactionCategory: %w", ErrEmptyCategory)
	}
	ok, err := l.repo.UpdateCategory(ctx, id, category)
	if err != nil {
		return false, fmt.Errorf("UpdateTransactionCategory: %w", err)
	}
	return ok, nil
}

// AddEdge records parent as the parent of child and persists the hierarchy.
// It returns the level assigned to child.
func (l *Ledger) AddEdge(ctx context.Context, child, parent string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := NewHierarchy(l.hierarchy.Edges())
	if err != nil {
		return 0, fmt.Errorf("AddEdge: %w", err)
	}
	if err := next.AddEdge(child, parent); err != nil {
		return 0, fmt.Errorf("AddEdge: %w", err)
	}
	if err := l.save(ctx, next); err != nil {
		return 0, fmt.Errorf("AddEdge: %w", err)
	}
	l.hierarchy = next

	level, _ := next.Level(strings.TrimSpace(child))
	return level, nil
}

// RemoveEdge detaches child from its parent and persists the hierarchy.
func (l *Ledger) RemoveEdge(ctx context.Context, child string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := NewHierarchy(l.hierarchy.Edges())
	if err != nil {
		return false, fmt.Errorf("RemoveEdge: %w", err)
	}
	if !next.RemoveEdge(child) {
		return false, nil
	}
	if err := l.save(ctx, next); err != nil {
		return false, fmt.Errorf("RemoveEdge: %w", err)
	}
	l.hierarchy = next
	return true, nil
}

// Path returns root -> ... -> category.
func (l *Ledger) Path(category string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hierarchy.Path(strings.TrimSpace(category))
}

// Descendants returns every category below category.
func (l *Ledger) Descendants(category string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hierarchy.Descendants(strings.TrimSpace(category))
}

// Level returns the depth of category in the hierarchy.
func (l *Ledger) Level(category string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hierarchy.Level(strings.TrimSpace(category))
}

// Tree returns every hierarchy node ordered by level then name.
func (l *Ledger) Tree() []store.CategoryEdge {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hierarchy.Edges()
}

// TransactionsByCategoryTree returns the transactions in category and, when
// includeDescendants is set, in every category below it.
func (l *Ledger) TransactionsByCategoryTree(ctx context.Context, category string, includeDescendants bool) ([]*domain.Transaction, error) {
	category = strings.TrimSpace(category)
	names := []string{category}
	if includeDescendants {
		names = append(names, l.Descendants(category)...)
	}

	txs, err := l.repo.ByCategory(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("TransactionsByCategoryTree: %w", err)
	}
	return txs, nil
}

func (l *Ledger) save(ctx context.Context, h *Hierarchy) error {
	if l.edges == nil {
		return nil
	}
	return l.edges.SaveCategoryEdges(ctx, h.Edges())
}
