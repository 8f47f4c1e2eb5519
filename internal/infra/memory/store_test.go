package memory

import (
	"context"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	ids, err := s.InsertBatch(ctx, []*domain.Transaction{storetest.Tx(1, "RENT", "Housing", "-1200")})
	if err != nil {
		t.Fatalf("InsertBatch() error: %v", err)
	}

	got, _ := s.FindByID(ctx, ids[0])
	got.Category = "Changed"

	again, _ := s.FindByID(ctx, ids[0])
	if again.Category != "Housing" {
		t.Errorf("mutating a returned record changed the store: %q", again.Category)
	}
}
