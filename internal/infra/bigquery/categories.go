package bigquery

import "cloud.google.com/go/bigquery"

type CategoryEdgeRow struct {
	Category string              `bigquery:"category"` // REQUIRED
	Parent   bigquery.NullString `bigquery:"parent"`   // NULLABLE, empty for roots
	Level    int64               `bigquery:"level"`    // REQUIRED
}
