package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const transactionColumns = `
			transaction_id,
			transaction_date,
			post_date,
			description,
			category,
			transaction_type,
			amount,
			memo,
			created_ts`

// InsertTransactionsWithClient writes txs with a single DML statement so the
// batch is stored atomically, and returns the generated ids in input order.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, txs []*domain.Transaction) ([]string, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	ids := make([]string, len(txs))
	rows := make([]TransactionRow, len(txs))
	for i, t := range txs {
		ids[i] = uuid.NewString()
		rows[i] = *toRow(ids[i], t, now)
	}

	sql := fmt.Sprintf(`
		INSERT %s (%s)
		SELECT %s
		FROM UNNEST(@rows)
	`, ds.Table(transactionsTable), transactionColumns, transactionColumns)

	if _, err := runDML(ctx, client, sql, []bigquery.QueryParameter{{Name: "rows", Value: rows}}); err != nil {
		return nil, fmt.Errorf("InsertTransactionsWithClient: %w", err)
	}
	return ids, nil
}

// ExistsTransactionWithClient reports whether an exact duplicate of t is stored.
func ExistsTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, t *domain.Transaction) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE transaction_date = @transaction_date
		  AND post_date = @post_date
		  AND description = @description
		  AND amount = @amount
	`, ds.Table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_date", Value: t.TransactionDate},
		{Name: "post_date", Value: t.PostDate},
		{Name: "description", Value: t.Description},
		{Name: "amount", Value: t.Amount.Rat()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("ExistsTransactionWithClient: query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("ExistsTransactionWithClient: iter next: %w", err)
	}
	return row.N > 0, nil
}

// FindSimilarTransactionsWithClient returns stored records with the same amount
// within ±toleranceDays of t. Description matching is left to the caller.
func FindSimilarTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, t *domain.Transaction, toleranceDays int) ([]*domain.Transaction, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE transaction_date BETWEEN @start_date AND @end_date
		  AND amount = @amount
		ORDER BY transaction_date DESC, created_ts
	`, transactionColumns, ds.Table(transactionsTable))

	rows, err := readTransactions(ctx, client, sql, []bigquery.QueryParameter{
		{Name: "start_date", Value: t.TransactionDate.AddDays(-toleranceDays)},
		{Name: "end_date", Value: t.TransactionDate.AddDays(toleranceDays)},
		{Name: "amount", Value: t.Amount.Rat()},
	})
	if err != nil {
		return nil, fmt.Errorf("FindSimilarTransactionsWithClient: %w", err)
	}
	return toDomainAll(rows), nil
}

// QueryTransactionsWithClient returns records matching the optional filter,
// newest transaction date first.
func QueryTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, where string, params []bigquery.QueryParameter) ([]*domain.Transaction, error) {
	if where == "" {
		where = "TRUE"
	}
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY transaction_date DESC, created_ts
	`, transactionColumns, ds.Table(transactionsTable), where)

	rows, err := readTransactions(ctx, client, sql, params)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsWithClient: %w", err)
	}
	return toDomainAll(rows), nil
}

// QueryTransactionsByDateRangeWithClient returns records dated within [from, to].
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, from, to civil.Date) ([]*domain.Transaction, error) {
	return QueryTransactionsWithClient(ctx, client, ds,
		"transaction_date BETWEEN @start_date AND @end_date",
		[]bigquery.QueryParameter{
			{Name: "start_date", Value: from},
			{Name: "end_date", Value: to},
		})
}

// UpdateCategoryWithClient sets category on every record matching c.
func UpdateCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c store.Criteria, category string) (int64, error) {
	if c.IsEmpty() {
		return 0, nil
	}
	where, params := criteriaClause(c)
	params = append(params, bigquery.QueryParameter{Name: "category", Value: category})

	n, err := runDML(ctx, client, fmt.Sprintf(`
		UPDATE %s
		SET category = @category
		WHERE %s
	`, ds.Table(transactionsTable), where), params)
	if err != nil {
		return 0, fmt.Errorf("UpdateCategoryWithClient: %w", err)
	}
	return n, nil
}

// DeleteTransactionsWithClient deletes records matching c. A nil criteria
// deletes every record.
func DeleteTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c *store.Criteria) (int64, error) {
	where, params := "TRUE", []bigquery.QueryParameter(nil)
	if c != nil {
		if c.IsEmpty() {
			return 0, nil
		}
		where, params = criteriaClause(*c)
	}

	n, err := runDML(ctx, client, fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s
	`, ds.Table(transactionsTable), where), params)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsWithClient: %w", err)
	}
	return n, nil
}

// ListCategoriesWithClient returns the distinct non-empty categories, sorted.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT DISTINCT category
		FROM %s
		WHERE category != ''
		ORDER BY category
	`, ds.Table(transactionsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoriesWithClient: query read: %w", err)
	}

	var cats []string
	for {
		var row struct {
			Category string `bigquery:"category"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoriesWithClient: iter next: %w", err)
		}
		cats = append(cats, row.Category)
	}
	return cats, nil
}

// CountTransactionsWithClient returns the number of stored records.
func CountTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) (int64, error) {
	it, err := client.Query(fmt.Sprintf("SELECT COUNT(*) AS n FROM %s", ds.Table(transactionsTable))).Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactionsWithClient: query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountTransactionsWithClient: iter next: %w", err)
	}
	return row.N, nil
}

// criteriaClause renders c as an AND-joined WHERE clause with named parameters.
func criteriaClause(c store.Criteria) (string, []bigquery.QueryParameter) {
	var (
		clauses []string
		params  []bigquery.QueryParameter
	)
	if len(c.Categories) > 0 {
		clauses = append(clauses, "category IN UNNEST(@categories)")
		params = append(params, bigquery.QueryParameter{Name: "categories", Value: c.Categories})
	}
	if len(c.IDs) > 0 {
		clauses = append(clauses, "transaction_id IN UNNEST(@ids)")
		params = append(params, bigquery.QueryParameter{Name: "ids", Value: c.IDs})
	}
	if c.From != nil {
		clauses = append(clauses, "transaction_date >= @from_date")
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: *c.From})
	}
	if c.To != nil {
		clauses = append(clauses, "transaction_date <= @to_date")
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: *c.To})
	}
	return strings.Join(clauses, " AND "), params
}
