package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"google.golang.org/api/googleapi"
)

// EnsureSchemaWithClient creates the dataset and the ledger tables when they
// do not exist. Existing tables are left untouched.
func EnsureSchemaWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	log := logger.FromContext(ctx)

	dataset := client.DatasetInProject(ds.ProjectID, ds.Name)
	if _, err := dataset.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureSchema: dataset metadata: %w", err)
		}
		if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return fmt.Errorf("EnsureSchema: creating dataset: %w", err)
		}
		log.Info().Str("dataset", ds.Name).Msg("Created dataset")
	}

	tables := []struct {
		name   string
		schema interface{}
	}{
		{transactionsTable, TransactionRow{}},
		{hierarchyTable, CategoryEdgeRow{}},
	}

	for _, tbl := range tables {
		schema, err := bigquery.InferSchema(tbl.schema)
		if err != nil {
			return fmt.Errorf("EnsureSchema: inferring %s schema: %w", tbl.name, err)
		}

		t := dataset.Table(tbl.name)
		if _, err := t.Metadata(ctx); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("EnsureSchema: %s metadata: %w", tbl.name, err)
		}

		if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return fmt.Errorf("EnsureSchema: creating %s: %w", tbl.name, err)
		}
		log.Info().Str("table", tbl.name).Msg("Created table")
	}

	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
