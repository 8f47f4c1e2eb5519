// Package memory is a process-local Store used by tests and the
// STORE_DRIVER=memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/google/uuid"
)

// Store keeps transactions and category edges in memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.Transaction
	order   []string
	edges   []store.CategoryEdge
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*domain.Transaction)}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) Exists(ctx context.Context, t *domain.Transaction) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if dedup.IsExactMatch(t, s.records[id]) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindSimilar(ctx context.Context, t *domain.Transaction, toleranceDays int) ([]*domain.Transaction, error) {
	return s.collect(func(r *domain.Transaction) bool {
		return dedup.IsNearMatch(t, r, toleranceDays)
	}), nil
}

// InsertBatch validates every row before storing any of them.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	for i, t := range txs {
		if t == nil {
			return nil, fmt.Errorf("InsertBatch: row %d is nil", i+1)
		}
		if _, err := domain.NewTransaction(*t); err != nil {
			return nil, fmt.Errorf("InsertBatch: row %d: %w", i+1, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(txs))
	for i, t := range txs {
		c := *t
		c.ID = uuid.NewString()
		c.Memo = copyMemo(t.Memo)
		s.records[c.ID] = &c
		s.order = append(s.order, c.ID)
		ids[i] = c.ID
	}
	return ids, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("FindByID: %s: %w", id, store.ErrNotFound)
	}
	return clone(r), nil
}

func (s *Store) AllRecords(ctx context.Context) ([]*domain.Transaction, error) {
	return s.collect(func(*domain.Transaction) bool { return true }), nil
}

func (s *Store) ByCategory(ctx context.Context, categories ...string) ([]*domain.Transaction, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	return s.collect(func(r *domain.Transaction) bool { return want[r.Category] }), nil
}

func (s *Store) ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error) {
	return s.collect(func(r *domain.Transaction) bool {
		return !r.TransactionDate.Before(from) && !r.TransactionDate.After(to)
	}), nil
}

func (s *Store) UpdateCategoryBulk(ctx context.Context, c store.Criteria, category string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range s.order {
		r := s.records[id]
		if c.Matches(r) {
			r.Category = category
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return false, nil
	}
	r.Category = category
	return true, nil
}

func (s *Store) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.deleteWhere(store.Criteria{IDs: ids}.Matches), nil
}

func (s *Store) DeleteByCriteria(ctx context.Context, c store.Criteria) (int64, error) {
	return s.deleteWhere(c.Matches), nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.order))
	s.records = make(map[string]*domain.Transaction)
	s.order = nil
	return n, nil
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, id := range s.order {
		c := s.records[id].Category
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.order)), nil
}

func (s *Store) LoadCategoryEdges(ctx context.Context) ([]store.CategoryEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.CategoryEdge, len(s.edges))
	copy(out, s.edges)
	return out, nil
}

// SaveCategoryEdges replaces the stored hierarchy.
func (s *Store) SaveCategoryEdges(ctx context.Context, edges []store.CategoryEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges = make([]store.CategoryEdge, len(edges))
	copy(s.edges, edges)
	return nil
}

// collect returns copies of matching records, newest transaction date first.
func (s *Store) collect(match func(*domain.Transaction) bool) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, id := range s.order {
		if r := s.records[id]; match(r) {
			out = append(out, clone(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.After(out[j].TransactionDate)
	})
	return out
}

func (s *Store) deleteWhere(match func(*domain.Transaction) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	kept := s.order[:0]
	for _, id := range s.order {
		if match(s.records[id]) {
			delete(s.records, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n
}

func clone(t *domain.Transaction) *domain.Transaction {
	c := *t
	c.Memo = copyMemo(t.Memo)
	return &c
}

func copyMemo(m *string) *string {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}
