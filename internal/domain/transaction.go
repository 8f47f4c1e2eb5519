package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// UncategorizedCategory is the category assigned when a source row carries none.
const UncategorizedCategory = "Uncategorized"

var (
	// ErrEmptyDescription is returned when a description is blank after trimming.
	ErrEmptyDescription = errors.New("description cannot be empty")

	// ErrZeroAmount is returned for a zero amount.
	ErrZeroAmount = errors.New("amount cannot be zero")

	// ErrMissingDate is returned when the transaction date is not set.
	ErrMissingDate = errors.New("transaction date is required")
)

// Transaction is one normalized statement line.
// Amount sign convention: negative is an expense, positive is income or a payment.
// ID is empty until the record has been accepted by a store.
type Transaction struct {
	ID              string
	TransactionDate civil.Date
	PostDate        civil.Date
	Description     string
	Category        string
	TransactionType string
	Amount          decimal.Decimal
	Memo            *string
}

// NewTransaction trims and validates the given fields and returns a new Transaction.
// A blank category becomes UncategorizedCategory, a blank memo becomes nil and a
// zero post date is replaced by the transaction date.
func NewTransaction(in Transaction) (*Transaction, error) {
	t := in
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	t.TransactionType = strings.TrimSpace(t.TransactionType)

	if t.TransactionDate.IsZero() {
		return nil, ErrMissingDate
	}
	if t.Description == "" {
		return nil, ErrEmptyDescription
	}
	if t.Amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if t.Category == "" {
		t.Category = UncategorizedCategory
	}
	if t.PostDate.IsZero() {
		t.PostDate = t.TransactionDate
	}
	t.Memo = normalizeMemo(t.Memo)

	return &t, nil
}

func normalizeMemo(memo *string) *string {
	if memo == nil {
		return nil
	}
	m := strings.TrimSpace(*memo)
	if m == "" {
		return nil
	}
	return &m
}

// IsExpense reports whether the amount is negative.
func (t *Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// IsPayment reports whether the amount is positive.
func (t *Transaction) IsPayment() bool {
	return t.Amount.IsPositive()
}

// MemoValue returns the memo or an empty string when absent.
func (t *Transaction) MemoValue() string {
	if t.Memo == nil {
		return ""
	}
	return *t.Memo
}

// Equal compares every field, including the id.
func (t *Transaction) Equal(o *Transaction) bool {
	if t == nil || o == nil {
		return t == o
	}
	if (t.Memo == nil) != (o.Memo == nil) {
		return false
	}
	if t.Memo != nil && *t.Memo != *o.Memo {
		return false
	}
	return t.ID == o.ID &&
		t.TransactionDate == o.TransactionDate &&
		t.PostDate == o.PostDate &&
		t.Description == o.Description &&
		t.Category == o.Category &&
		t.TransactionType == o.TransactionType &&
		t.Amount.Equal(o.Amount)
}

func (t *Transaction) String() string {
	return fmt.Sprintf("%s: %s - $%s (%s)", t.TransactionDate, t.Description, t.Amount.StringFixed(2), t.Category)
}

// CanonicalRecord is the serialized form of a Transaction.
// Dates are ISO-8601 date-times and the amount is an exact decimal string.
type CanonicalRecord struct {
	ID              *string         `json:"id"`
	TransactionDate string          `json:"transaction_date"`
	PostDate        string          `json:"post_date"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Memo            *string         `json:"memo"`
}

// ToCanonical converts the transaction into its serialized form.
func (t *Transaction) ToCanonical() CanonicalRecord {
	rec := CanonicalRecord{
		TransactionDate: formatCanonicalDate(t.TransactionDate),
		PostDate:        formatCanonicalDate(t.PostDate),
		Description:     t.Description,
		Category:        t.Category,
		TransactionType: t.TransactionType,
		Amount:          t.Amount,
	}
	if t.ID != "" {
		id := t.ID
		rec.ID = &id
	}
	if t.Memo != nil {
		memo := *t.Memo
		rec.Memo = &memo
	}
	return rec
}

// FromCanonical rebuilds a Transaction from its serialized form, applying the
// same validation as NewTransaction.
func FromCanonical(rec CanonicalRecord) (*Transaction, error) {
	txDate, err := parseCanonicalDate(rec.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("FromCanonical: transaction_date: %w", err)
	}

	var postDate civil.Date
	if strings.TrimSpace(rec.PostDate) != "" {
		postDate, err = parseCanonicalDate(rec.PostDate)
		if err != nil {
			return nil, fmt.Errorf("FromCanonical: post_date: %w", err)
		}
	}

	t, err := NewTransaction(Transaction{
		TransactionDate: txDate,
		PostDate:        postDate,
		Description:     rec.Description,
		Category:        rec.Category,
		TransactionType: rec.TransactionType,
		Amount:          rec.Amount,
		Memo:            rec.Memo,
	})
	if err != nil {
		return nil, fmt.Errorf("FromCanonical: %w", err)
	}
	if rec.ID != nil {
		t.ID = *rec.ID
	}
	return t, nil
}

// MarshalJSON encodes the transaction in its canonical form.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToCanonical())
}

// UnmarshalJSON decodes and validates a canonical record.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var rec CanonicalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	parsed, err := FromCanonical(rec)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

func formatCanonicalDate(d civil.Date) string {
	return civil.DateTime{Date: d}.String()
}

func parseCanonicalDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if dt, err := civil.ParseDateTime(s); err == nil {
		return dt.Date, nil
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("unrecognized date %q", s)
	}
	return civil.DateOf(ts), nil
}
