// Package storetest runs the same behavioral checks against every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

// Tx builds a transaction dated in January 2024.
func Tx(day int, desc, category, amount string) *domain.Transaction {
	d := civil.Date{Year: 2024, Month: 1, Day: day}
	return &domain.Transaction{
		TransactionDate: d,
		PostDate:        d.AddDays(1),
		Description:     desc,
		Category:        category,
		TransactionType: "Sale",
		Amount:          decimal.RequireFromString(amount),
	}
}

func seed(t *testing.T, s store.Store) []string {
	t.Helper()
	memo := "weekly shop"
	rows := []*domain.Transaction{
		Tx(5, "STARBUCKS", "Dining", "-4.75"),
		Tx(6, "WHOLE FOODS", "Groceries", "-82.10"),
		Tx(7, "PAYCHECK", "Income", "2500.00"),
		Tx(8, "SHELL", "Gas", "-40.00"),
		Tx(9, "STARBUCKS", "Dining", "-5.25"),
	}
	rows[1].Memo = &memo
	ids, err := s.InsertBatch(context.Background(), rows)
	if err != nil {
		t.Fatalf("InsertBatch() error: %v", err)
	}
	return ids
}

// Run executes the shared checks.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("InsertBatch assigns ids", func(t *testing.T) {
		s := newStore(t)
		ids := seed(t, s)
		if len(ids) != 5 {
			t.Fatalf("got %d ids, want 5", len(ids))
		}
		seen := map[string]bool{}
		for _, id := range ids {
			if id == "" || seen[id] {
				t.Errorf("id %q is empty or repeated", id)
			}
			seen[id] = true
		}

		got, err := s.FindByID(ctx, ids[1])
		if err != nil {
			t.Fatalf("FindByID() error: %v", err)
		}
		if got.Description != "WHOLE FOODS" || got.MemoValue() != "weekly shop" {
			t.Errorf("FindByID() = %v", got)
		}
		if !got.Amount.Equal(decimal.RequireFromString("-82.10")) {
			t.Errorf("amount = %s, want -82.10", got.Amount)
		}
		if got.PostDate != (civil.Date{Year: 2024, Month: 1, Day: 7}) {
			t.Errorf("post date = %s", got.PostDate)
		}
	})

	t.Run("InsertBatch is atomic", func(t *testing.T) {
		s := newStore(t)
		bad := Tx(10, "   ", "Dining", "-1")
		if _, err := s.InsertBatch(ctx, []*domain.Transaction{Tx(9, "OK", "Dining", "-1"), bad}); err == nil {
			t.Fatal("InsertBatch() expected error for blank description")
		}
		if n, _ := s.Count(ctx); n != 0 {
			t.Errorf("Count() = %d after failed batch, want 0", n)
		}
	})

	t.Run("FindByID missing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("FindByID() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		ok, err := s.Exists(ctx, Tx(5, "STARBUCKS", "Anything", "-4.750"))
		if err != nil || !ok {
			t.Errorf("Exists(identical) = %v, %v", ok, err)
		}
		ok, _ = s.Exists(ctx, Tx(5, "starbucks", "Dining", "-4.75"))
		if ok {
			t.Error("Exists() should be case-sensitive on description")
		}
	})

	t.Run("FindSimilar", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		got, err := s.FindSimilar(ctx, Tx(6, "starbucks", "", "-4.75"), 1)
		if err != nil {
			t.Fatalf("FindSimilar() error: %v", err)
		}
		if len(got) != 1 || got[0].Description != "STARBUCKS" {
			t.Errorf("FindSimilar() = %v", got)
		}
		got, _ = s.FindSimilar(ctx, Tx(7, "starbucks", "", "-4.75"), 1)
		if len(got) != 0 {
			t.Errorf("FindSimilar() outside tolerance = %v", got)
		}
	})

	t.Run("FindSimilar folds non-ASCII case", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.InsertBatch(ctx, []*domain.Transaction{Tx(3, "CAFÉ ÜBER", "Dining", "-8.20")}); err != nil {
			t.Fatalf("InsertBatch() error: %v", err)
		}

		got, err := s.FindSimilar(ctx, Tx(3, "café über", "", "-8.20"), 0)
		if err != nil {
			t.Fatalf("FindSimilar() error: %v", err)
		}
		if len(got) != 1 || got[0].Description != "CAFÉ ÜBER" {
			t.Errorf("FindSimilar() = %v", got)
		}
	})

	t.Run("queries", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		all, err := s.AllRecords(ctx)
		if err != nil || len(all) != 5 {
			t.Fatalf("AllRecords() = %d, %v", len(all), err)
		}
		if all[0].TransactionDate.Day != 9 {
			t.Errorf("AllRecords() not ordered newest first: %v", all[0])
		}

		dining, _ := s.ByCategory(ctx, "Dining", "Gas")
		if len(dining) != 3 {
			t.Errorf("ByCategory() = %d, want 3", len(dining))
		}
		none, _ := s.ByCategory(ctx)
		if len(none) != 0 {
			t.Errorf("ByCategory() with no names = %d", len(none))
		}

		ranged, _ := s.ByDateRange(ctx, civil.Date{Year: 2024, Month: 1, Day: 6}, civil.Date{Year: 2024, Month: 1, Day: 8})
		if len(ranged) != 3 {
			t.Errorf("ByDateRange() = %d, want 3", len(ranged))
		}

		cats, _ := s.Categories(ctx)
		want := []string{"Dining", "Gas", "Groceries", "Income"}
		if len(cats) != len(want) {
			t.Fatalf("Categories() = %v", cats)
		}
		for i := range want {
			if cats[i] != want[i] {
				t.Errorf("Categories()[%d] = %q, want %q", i, cats[i], want[i])
			}
		}
	})

	t.Run("UpdateCategoryBulk", func(t *testing.T) {
		s := newStore(t)
		ids := seed(t, s)

		n, err := s.UpdateCategoryBulk(ctx, store.Criteria{Categories: []string{"Dining"}}, "Coffee")
		if err != nil || n != 2 {
			t.Fatalf("UpdateCategoryBulk() = %d, %v", n, err)
		}
		n, _ = s.UpdateCategoryBulk(ctx, store.Criteria{}, "Nothing")
		if n != 0 {
			t.Errorf("empty criteria updated %d rows", n)
		}
		from := civil.Date{Year: 2024, Month: 1, Day: 9}
		n, _ = s.UpdateCategoryBulk(ctx, store.Criteria{Categories: []string{"Coffee"}, From: &from}, "Late Coffee")
		if n != 1 {
			t.Errorf("category and date criteria updated %d rows, want 1", n)
		}

		ok, err := s.UpdateCategory(ctx, ids[3], "Fuel")
		if err != nil || !ok {
			t.Errorf("UpdateCategory() = %v, %v", ok, err)
		}
		ok, _ = s.UpdateCategory(ctx, "missing", "Fuel")
		if ok {
			t.Error("UpdateCategory() on missing id reported success")
		}
		got, _ := s.FindByID(ctx, ids[3])
		if got.Category != "Fuel" {
			t.Errorf("category = %q, want Fuel", got.Category)
		}
	})

	t.Run("deletes", func(t *testing.T) {
		s := newStore(t)
		ids := seed(t, s)

		n, err := s.DeleteBatch(ctx, []string{ids[0], "missing"})
		if err != nil || n != 1 {
			t.Errorf("DeleteBatch() = %d, %v", n, err)
		}
		n, _ = s.DeleteByCriteria(ctx, store.Criteria{})
		if n != 0 {
			t.Errorf("DeleteByCriteria(empty) = %d", n)
		}
		n, _ = s.DeleteByCriteria(ctx, store.Criteria{Categories: []string{"Gas"}})
		if n != 1 {
			t.Errorf("DeleteByCriteria(Gas) = %d", n)
		}
		n, _ = s.DeleteAll(ctx)
		if n != 3 {
			t.Errorf("DeleteAll() = %d, want 3", n)
		}
		if c, _ := s.Count(ctx); c != 0 {
			t.Errorf("Count() = %d after DeleteAll", c)
		}
	})

	t.Run("category edges", func(t *testing.T) {
		s := newStore(t)
		edges := []store.CategoryEdge{
			{Category: "Food", Level: 0},
			{Category: "Dining", Parent: "Food", Level: 1},
			{Category: "Coffee", Parent: "Dining", Level: 2},
		}
		if err := s.SaveCategoryEdges(ctx, edges); err != nil {
			t.Fatalf("SaveCategoryEdges() error: %v", err)
		}
		if err := s.SaveCategoryEdges(ctx, edges[:2]); err != nil {
			t.Fatalf("SaveCategoryEdges() error: %v", err)
		}
		got, err := s.LoadCategoryEdges(ctx)
		if err != nil {
			t.Fatalf("LoadCategoryEdges() error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("LoadCategoryEdges() = %v, want 2 edges", got)
		}
		byName := map[string]store.CategoryEdge{}
		for _, e := range got {
			byName[e.Category] = e
		}
		if byName["Dining"].Parent != "Food" || byName["Dining"].Level != 1 {
			t.Errorf("Dining edge = %+v", byName["Dining"])
		}
	})
}
