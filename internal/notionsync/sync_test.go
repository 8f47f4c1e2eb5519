package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

type mockSource struct {
	records []*domain.Transaction
	err     error
}

func (m *mockSource) ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error) {
	return m.records, m.err
}

type mockNotion struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc    func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePageFunc    func(ctx context.Context, pageID string) error
	GetDatabaseFunc   func(ctx context.Context, databaseID string) (*notionapi.Database, error)

	created []notionapi.Properties
	updated []string
	deleted []string
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("page-%d", len(m.created)))}, nil
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.UpdatePageFunc != nil {
		return m.UpdatePageFunc(ctx, pageID, properties)
	}
	m.updated = append(m.updated, pageID)
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, filter)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	if m.DeletePageFunc != nil {
		return m.DeletePageFunc(ctx, pageID)
	}
	m.deleted = append(m.deleted, pageID)
	return nil
}

func (m *mockNotion) GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error) {
	if m.GetDatabaseFunc != nil {
		return m.GetDatabaseFunc(ctx, databaseID)
	}
	return &notionapi.Database{}, nil
}

func pageWithID(pageID, transactionID string) notionapi.Page {
	props := notionapi.Properties{}
	if transactionID != "" {
		props[PropTransactionID] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: transactionID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func tx(id, description, amount string) *domain.Transaction {
	memo := "note"
	return &domain.Transaction{
		ID:              id,
		TransactionDate: civil.Date{Year: 2024, Month: 1, Day: 15},
		PostDate:        civil.Date{Year: 2024, Month: 1, Day: 16},
		Description:     description,
		Category:        "Shopping",
		TransactionType: "Sale",
		Amount:          decimal.RequireFromString(amount),
		Memo:            &memo,
	}
}

var (
	from = civil.Date{Year: 2024, Month: 1, Day: 1}
	to   = civil.Date{Year: 2024, Month: 1, Day: 31}
)

func TestTransactionToNotionProperties(t *testing.T) {
	props := TransactionToNotionProperties(tx("t1", "AMAZON.COM", "-42.99"))

	title, ok := props[PropDescription].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "AMAZON.COM" {
		t.Errorf("Description = %#v", props[PropDescription])
	}
	amount, ok := props[PropAmount].(notionapi.NumberProperty)
	if !ok || amount.Number != -42.99 {
		t.Errorf("Amount = %#v", props[PropAmount])
	}
	category, ok := props[PropCategory].(notionapi.SelectProperty)
	if !ok || category.Select.Name != "Shopping" {
		t.Errorf("Category = %#v", props[PropCategory])
	}
	date, ok := props[PropDate].(notionapi.DateProperty)
	if !ok || date.Date == nil || date.Date.Start == nil || !time.Time(*date.Date.Start).Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %#v", props[PropDate])
	}
	if _, ok := props[PropMemo]; !ok {
		t.Error("Memo missing")
	}
	if got := extractTransactionID(notionapi.Page{Properties: props}); got != "t1" {
		t.Errorf("extractTransactionID() = %q, want t1", got)
	}
}

func TestTransactionToNotionProperties_OptionalFields(t *testing.T) {
	record := tx("t1", "COFFEE", "-3.50")
	record.Memo = nil
	record.TransactionType = ""

	props := TransactionToNotionProperties(record)
	if _, ok := props[PropMemo]; ok {
		t.Error("Memo should be omitted")
	}
	if _, ok := props[PropType]; ok {
		t.Error("Type should be omitted")
	}
}

func TestSyncTransactions_CreatesAndUpdates(t *testing.T) {
	source := &mockSource{records: []*domain.Transaction{
		tx("t1", "AMAZON.COM", "-42.99"),
		tx("t2", "PAYROLL", "1500.00"),
	}}
	notion := &mockNotion{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageWithID("existing", "t1")}}, nil
		},
	}

	result, err := SyncTransactions(context.Background(), source, notion, "db", from, to, false)
	if err != nil {
		t.Fatalf("SyncTransactions() error: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 || result.Failed != 0 || result.Total != 2 {
		t.Errorf("result = %+v", result)
	}
	if len(notion.updated) != 1 || notion.updated[0] != "existing" {
		t.Errorf("updated = %v", notion.updated)
	}
	if len(notion.created) != 1 || extractTransactionID(notionapi.Page{Properties: notion.created[0]}) != "t2" {
		t.Errorf("created = %v", notion.created)
	}
}

func TestSyncTransactions_DryRun(t *testing.T) {
	source := &mockSource{records: []*domain.Transaction{tx("t1", "AMAZON.COM", "-42.99")}}
	notion := &mockNotion{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			t.Fatal("CreatePage called in dry run")
			return nil, nil
		},
	}

	result, err := SyncTransactions(context.Background(), source, notion, "db", from, to, true)
	if err != nil {
		t.Fatalf("SyncTransactions() error: %v", err)
	}
	if !result.DryRun || result.Created != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestSyncTransactions_Paginates(t *testing.T) {
	var cursors []notionapi.Cursor
	notion := &mockNotion{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, filter.StartCursor)
			if filter.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{pageWithID("p1", "t1")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageWithID("p2", "t2")}}, nil
		},
	}
	source := &mockSource{records: []*domain.Transaction{
		tx("t1", "A", "-1.00"),
		tx("t2", "B", "-2.00"),
	}}

	result, err := SyncTransactions(context.Background(), source, notion, "db", from, to, false)
	if err != nil {
		t.Fatalf("SyncTransactions() error: %v", err)
	}
	if len(cursors) != 2 || cursors[1] != "next" {
		t.Errorf("cursors = %v", cursors)
	}
	if result.Updated != 2 || result.Created != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestSyncTransactions_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		source  *mockSource
		notion  *mockNotion
		wantErr bool
		failed  int
	}{
		{
			name:    "repository failure",
			source:  &mockSource{err: boom},
			notion:  &mockNotion{},
			wantErr: true,
		},
		{
			name:   "query failure",
			source: &mockSource{},
			notion: &mockNotion{
				QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
					return nil, boom
				},
			},
			wantErr: true,
		},
		{
			name:   "create failure is counted",
			source: &mockSource{records: []*domain.Transaction{tx("t1", "A", "-1.00")}},
			notion: &mockNotion{
				CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
					return nil, boom
				},
			},
			failed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SyncTransactions(context.Background(), tt.source, tt.notion, "db", from, to, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SyncTransactions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && result.Failed != tt.failed {
				t.Errorf("Failed = %d, want %d", result.Failed, tt.failed)
			}
		})
	}
}

func TestPruneStale(t *testing.T) {
	notion := &mockNotion{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{
				pageWithID("keep", "t1"),
				pageWithID("gone", "t9"),
				pageWithID("legacy", ""),
			}}, nil
		},
	}

	deleted, err := PruneStale(context.Background(), notion, "db", map[string]bool{"t1": true}, false)
	if err != nil {
		t.Fatalf("PruneStale() error: %v", err)
	}
	if deleted != 2 || len(notion.deleted) != 2 {
		t.Errorf("deleted = %d, pages = %v", deleted, notion.deleted)
	}
	for _, id := range notion.deleted {
		if id == "keep" {
			t.Error("kept page was deleted")
		}
	}
}
