package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/shopspring/decimal"
)

func TestDataset_Table(t *testing.T) {
	ds := Dataset{ProjectID: "ledger-prod", Name: "finance"}
	if got := ds.Table("transactions"); got != "`ledger-prod.finance.transactions`" {
		t.Errorf("Table() = %s", got)
	}
}

func TestRowConversion(t *testing.T) {
	memo := "card 1234"
	in := &domain.Transaction{
		TransactionDate: civil.Date{Year: 2024, Month: 3, Day: 1},
		PostDate:        civil.Date{Year: 2024, Month: 3, Day: 2},
		Description:     "UBER TRIP",
		Category:        "Transportation",
		TransactionType: "Sale",
		Amount:          decimal.RequireFromString("-23.45"),
		Memo:            &memo,
	}

	row := toRow("id-1", in, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	if !row.Memo.Valid || row.Memo.StringVal != memo {
		t.Errorf("memo = %+v", row.Memo)
	}

	out := row.toDomain()
	in.ID = "id-1"
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}

	in.Memo = nil
	if got := toRow("id-2", in, time.Now()); got.Memo.Valid {
		t.Error("nil memo should be NULL")
	}
}

func TestCriteriaClause(t *testing.T) {
	from := civil.Date{Year: 2024, Month: 1, Day: 1}
	tests := []struct {
		name       string
		criteria   store.Criteria
		wantClause string
		wantParams int
	}{
		{
			name:       "categories",
			criteria:   store.Criteria{Categories: []string{"Dining"}},
			wantClause: "category IN UNNEST(@categories)",
			wantParams: 1,
		},
		{
			name:       "ids and from date",
			criteria:   store.Criteria{IDs: []string{"a", "b"}, From: &from},
			wantClause: "transaction_id IN UNNEST(@ids) AND transaction_date >= @from_date",
			wantParams: 2,
		},
		{
			name:       "date range",
			criteria:   store.Criteria{From: &from, To: &from},
			wantClause: "transaction_date >= @from_date AND transaction_date <= @to_date",
			wantParams: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, params := criteriaClause(tt.criteria)
			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if len(params) != tt.wantParams {
				t.Errorf("params = %d, want %d", len(params), tt.wantParams)
			}
		})
	}
}
