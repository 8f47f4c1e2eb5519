package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/store"
	"google.golang.org/api/iterator"
)

// ListCategoryEdgesWithClient returns the stored hierarchy ordered by level then name.
func ListCategoryEdgesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]store.CategoryEdge, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  category,
		  parent,
		  level
		FROM %s
		ORDER BY level, category
	`, ds.Table(hierarchyTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoryEdgesWithClient: query read: %w", err)
	}

	var edges []store.CategoryEdge
	for {
		var r CategoryEdgeRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoryEdgesWithClient: iter next: %w", err)
		}
		edges = append(edges, store.CategoryEdge{
			Category: r.Category,
			Parent:   r.Parent.StringVal,
			Level:    int(r.Level),
		})
	}

	return edges, nil
}

// ReplaceCategoryEdgesWithClient swaps the stored hierarchy for edges inside
// one multi-statement transaction.
func ReplaceCategoryEdgesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, edges []store.CategoryEdge) error {
	rows := make([]CategoryEdgeRow, len(edges))
	for i, e := range edges {
		rows[i] = CategoryEdgeRow{
			Category: e.Category,
			Parent:   bigquery.NullString{StringVal: e.Parent, Valid: e.Parent != ""},
			Level:    int64(e.Level),
		}
	}

	table := ds.Table(hierarchyTable)
	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;
		DELETE FROM %s WHERE TRUE;
		INSERT %s (category, parent, level)
		SELECT category, parent, level FROM UNNEST(@edges);
		COMMIT TRANSACTION;
	`, table, table)

	if _, err := runDML(ctx, client, sql, []bigquery.QueryParameter{{Name: "edges", Value: rows}}); err != nil {
		return fmt.Errorf("ReplaceCategoryEdgesWithClient: %w", err)
	}
	return nil
}
