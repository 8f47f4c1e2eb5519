package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is the exported set of transactions in canonical form.
type Document struct {
	ExportedAt   time.Time         `json:"exported_at"`
	Count        int               `json:"count"`
	Transactions []CanonicalRecord `json:"transactions"`
}

// DocumentValidation summarizes a decoded Document.
type DocumentValidation struct {
	Total      int      `json:"total_transactions"`
	Valid      int      `json:"valid_transactions"`
	Invalid    int      `json:"invalid_transactions"`
	Categories []string `json:"categories_found"`
}

// NewDocument builds an export document for the given transactions.
func NewDocument(txs []*Transaction, exportedAt time.Time) Document {
	records := make([]CanonicalRecord, 0, len(txs))
	for _, t := range txs {
		records = append(records, t.ToCanonical())
	}
	return Document{
		ExportedAt:   exportedAt.UTC(),
		Count:        len(records),
		Transactions: records,
	}
}

// DecodeDocument parses a JSON export and returns the transactions that passed
// validation along with a summary. Invalid records are counted, not returned.
func DecodeDocument(data []byte) ([]*Transaction, DocumentValidation, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, DocumentValidation{}, fmt.Errorf("DecodeDocument: invalid JSON: %w", err)
	}

	summary := DocumentValidation{Total: len(doc.Transactions)}
	seen := make(map[string]bool)
	var txs []*Transaction
	for _, rec := range doc.Transactions {
		t, err := FromCanonical(rec)
		if err != nil {
			summary.Invalid++
			continue
		}
		// ids belong to the exporting store
		t.ID = ""
		summary.Valid++
		if !seen[t.Category] {
			seen[t.Category] = true
			summary.Categories = append(summary.Categories, t.Category)
		}
		txs = append(txs, t)
	}

	return txs, summary, nil
}
