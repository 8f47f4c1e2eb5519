package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// ErrUnreadable is returned when the input is not text at all.
var ErrUnreadable = errors.New("file is not readable as delimited text")

const (
	// UnknownDescription replaces a blank description.
	UnknownDescription = "Unknown Transaction"

	// TypePayment and TypeSale are derived when a format has no type column.
	TypePayment = "Payment"
	TypeSale    = "Sale"
)

// RowError records why one data row was skipped. Row is the 1-based data row
// number; the header line is not counted.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseReport is the outcome of normalizing one file.
type ParseReport struct {
	Format         string                `json:"format"`
	Transactions   []*domain.Transaction `json:"transactions"`
	Errors         []RowError            `json:"errors,omitempty"`
	MissingColumns []string              `json:"missing_columns,omitempty"`
	TotalRows      int                   `json:"total_rows"`
}

// Parse normalizes every row of text using the named format and returns the
// rows that succeeded. See ParseWithReport.
func Parse(ctx context.Context, text, format string) ([]*domain.Transaction, error) {
	report, err := ParseWithReport(ctx, text, format)
	if err != nil {
		return nil, err
	}
	return report.Transactions, nil
}

// ParseWithReport normalizes every row of text using the named format.
// Rows that cannot be normalized are logged and skipped. Empty input, an
// unknown format or a header without the format's columns yield an empty
// report. Only text that cannot be tokenized at all returns an error.
func ParseWithReport(ctx context.Context, text, format string) (*ParseReport, error) {
	log := logger.FromContext(ctx)
	report := &ParseReport{Format: format, Transactions: []*domain.Transaction{}}

	spec, ok := formats.Lookup(format)
	if !ok {
		log.Warn().Str("format", format).Msg("Unknown format, nothing parsed")
		return report, nil
	}
	report.Format = spec.Name

	if strings.TrimSpace(text) == "" {
		return report, nil
	}

	records, err := formats.ReadRecords(text)
	if err != nil {
		return nil, fmt.Errorf("ParseWithReport: %w: %v", ErrUnreadable, err)
	}

	resolver, data := newCellResolver(spec, records)
	if missing := resolver.missingColumns(); len(missing) > 0 {
		report.MissingColumns = missing
		log.Warn().
			Str("format", spec.Name).
			Strs("missing_columns", missing).
			Msg("Header does not match format")
		return report, nil
	}

	report.TotalRows = len(data)
	for i, row := range data {
		tx, err := normalizeRow(spec, resolver, row)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: i + 1, Reason: err.Error()})
			log.Warn().Int("row", i+1).Str("reason", err.Error()).Msg("Skipping row")
			continue
		}
		report.Transactions = append(report.Transactions, tx)
	}

	log.Info().
		Str("format", spec.Name).
		Int("parsed", len(report.Transactions)).
		Int("total_rows", report.TotalRows).
		Msg("Parsed transactions from CSV")

	return report, nil
}

func normalizeRow(spec formats.Spec, r cellResolver, row []string) (*domain.Transaction, error) {
	rawDate, _ := r.cell(row, formats.FieldTransactionDate)
	if rawDate == "" {
		return nil, fmt.Errorf("missing transaction date")
	}
	txDate, err := ParseDate(rawDate, spec.DateLayout)
	if err != nil {
		return nil, err
	}

	postDate := txDate
	if rawPost, ok := r.cell(row, formats.FieldPostDate); ok && rawPost != "" {
		postDate, err = ParseDate(rawPost, spec.DateLayout)
		if err != nil {
			return nil, fmt.Errorf("post date: %w", err)
		}
	}

	amount, err := rowAmount(spec, r, row)
	if err != nil {
		return nil, err
	}

	description, _ := r.cell(row, formats.FieldDescription)
	if description == "" {
		description = UnknownDescription
	}

	category, _ := r.cell(row, formats.FieldCategory)

	txType, _ := r.cell(row, formats.FieldType)
	if txType == "" {
		txType = deriveType(amount)
	}

	var memo *string
	if m, ok := r.cell(row, formats.FieldMemo); ok && m != "" {
		memo = &m
	}

	return domain.NewTransaction(domain.Transaction{
		TransactionDate: txDate,
		PostDate:        postDate,
		Description:     description,
		Category:        category,
		TransactionType: txType,
		Amount:          amount,
		Memo:            memo,
	})
}

func rowAmount(spec formats.Spec, r cellResolver, row []string) (decimal.Decimal, error) {
	if spec.AmountRule == formats.AmountDebitCredit {
		debitRaw, _ := r.cell(row, formats.FieldDebit)
		creditRaw, _ := r.cell(row, formats.FieldCredit)
		debit, err := parseOptionalAmount(debitRaw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("debit: %w", err)
		}
		credit, err := parseOptionalAmount(creditRaw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("credit: %w", err)
		}
		return credit.Sub(debit), nil
	}

	raw, _ := r.cell(row, formats.FieldAmount)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}
	return ParseAmount(raw)
}

func deriveType(amount decimal.Decimal) string {
	if amount.IsPositive() {
		return TypePayment
	}
	return TypeSale
}

// cellResolver finds mapped fields in a row, by header position for
// header-based formats and by fixed index for header-less ones.
type cellResolver struct {
	spec    formats.Spec
	columns map[string]int
}

// newCellResolver splits records into the resolver and the data rows.
func newCellResolver(spec formats.Spec, records [][]string) (cellResolver, [][]string) {
	r := cellResolver{spec: spec}
	if spec.Headerless || len(records) == 0 {
		return r, records
	}

	r.columns = make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		if _, seen := r.columns[name]; !seen {
			r.columns[name] = i
		}
	}
	return r, records[1:]
}

func (r cellResolver) missingColumns() []string {
	if r.spec.Headerless {
		return nil
	}
	var missing []string
	for _, c := range r.spec.RequiredColumns {
		if _, ok := r.columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func (r cellResolver) cell(row []string, f formats.Field) (string, bool) {
	col, ok := r.spec.Column(f)
	if !ok {
		return "", false
	}

	idx := col.Index
	if !r.spec.Headerless {
		idx, ok = r.columns[col.Name]
		if !ok {
			return "", false
		}
	}
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}
