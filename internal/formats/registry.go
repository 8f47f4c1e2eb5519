package formats

import (
	"errors"
	"strings"
)

// ErrUnknownFormat is returned when a format name is not registered.
var ErrUnknownFormat = errors.New("unknown format")

// Field is a canonical transaction field a column can be mapped to.
type Field string

const (
	FieldTransactionDate Field = "transaction_date"
	FieldPostDate        Field = "post_date"
	FieldDescription     Field = "description"
	FieldCategory        Field = "category"
	FieldType            Field = "transaction_type"
	FieldAmount          Field = "amount"
	FieldDebit           Field = "debit"
	FieldCredit          Field = "credit"
	FieldMemo            Field = "memo"
)

// AmountRule selects how the signed amount is derived from a row.
type AmountRule int

const (
	// AmountSingle reads one signed amount column by header name.
	AmountSingle AmountRule = iota
	// AmountDebitCredit computes credit - debit, blank cells counting as zero.
	AmountDebitCredit
	// AmountPositional reads one signed amount column by position.
	AmountPositional
)

func (r AmountRule) String() string {
	switch r {
	case AmountSingle:
		return "single"
	case AmountDebitCredit:
		return "debit_credit"
	case AmountPositional:
		return "positional"
	default:
		return "unknown"
	}
}

// Column locates a field in a row: by Name for header-based formats,
// by zero-based Index for header-less ones.
type Column struct {
	Name  string
	Index int
}

// Spec declares one bank's CSV layout.
type Spec struct {
	Name            string
	DisplayName     string
	RequiredColumns []string
	Mapping         map[Field]Column
	DateLayout      string
	Headerless      bool
	MinColumns      int
	AmountRule      AmountRule
}

// Column returns the mapping for f, if the format provides one.
func (s Spec) Column(f Field) (Column, bool) {
	c, ok := s.Mapping[f]
	return c, ok
}

// Go reference layouts without zero padding accept both "1/5/2024" and "01/05/2024".
const (
	LayoutUS      = "1/2/2006"
	LayoutISO     = "2006-1-2"
	LayoutUSDash  = "1-2-2006"
	LayoutDayUS   = "2/1/2006"
	HeaderlessMin = 3
)

// registry is ordered from most to least specific; detection takes the first match.
var registry = []Spec{
	{
		Name:            "chase",
		DisplayName:     "Chase Credit Card",
		RequiredColumns: []string{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount", "Memo"},
		Mapping: map[Field]Column{
			FieldTransactionDate: {Name: "Transaction Date"},
			FieldPostDate:        {Name: "Post Date"},
			FieldDescription:     {Name: "Description"},
			FieldCategory:        {Name: "Category"},
			FieldType:            {Name: "Type"},
			FieldAmount:          {Name: "Amount"},
			FieldMemo:            {Name: "Memo"},
		},
		DateLayout: LayoutUS,
		AmountRule: AmountSingle,
	},
	{
		Name:            "capital_one",
		DisplayName:     "Capital One",
		RequiredColumns: []string{"Transaction Date", "Posted Date", "Card No.", "Description", "Category", "Debit", "Credit"},
		Mapping: map[Field]Column{
			FieldTransactionDate: {Name: "Transaction Date"},
			FieldPostDate:        {Name: "Posted Date"},
			FieldDescription:     {Name: "Description"},
			FieldCategory:        {Name: "Category"},
			FieldDebit:           {Name: "Debit"},
			FieldCredit:          {Name: "Credit"},
		},
		DateLayout: LayoutISO,
		AmountRule: AmountDebitCredit,
	},
	{
		Name:            "bank_of_america",
		DisplayName:     "Bank of America",
		RequiredColumns: []string{"Posted Date", "Reference Number", "Payee", "Address", "Amount"},
		Mapping: map[Field]Column{
			FieldTransactionDate: {Name: "Posted Date"},
			FieldDescription:     {Name: "Payee"},
			FieldAmount:          {Name: "Amount"},
		},
		DateLayout: LayoutUS,
		AmountRule: AmountSingle,
	},
	{
		Name:            "generic",
		DisplayName:     "Generic (Date, Description, Amount)",
		RequiredColumns: []string{"Date", "Description", "Amount"},
		Mapping: map[Field]Column{
			FieldTransactionDate: {Name: "Date"},
			FieldDescription:     {Name: "Description"},
			FieldCategory:        {Name: "Category"},
			FieldAmount:          {Name: "Amount"},
		},
		DateLayout: LayoutUS,
		AmountRule: AmountSingle,
	},
	{
		Name:        "headerless",
		DisplayName: "Header-less (date, amount, description)",
		Mapping: map[Field]Column{
			FieldTransactionDate: {Index: 0},
			FieldAmount:          {Index: 1},
			FieldDescription:     {Index: 2},
		},
		DateLayout: LayoutUS,
		Headerless: true,
		MinColumns: HeaderlessMin,
		AmountRule: AmountPositional,
	},
}

// List returns every registered format in detection order.
func List() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered format names in detection order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, s := range registry {
		names = append(names, s.Name)
	}
	return names
}

// Lookup finds a format by name, ignoring case and surrounding whitespace.
func Lookup(name string) (Spec, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range registry {
		if s.Name == key {
			return s, true
		}
	}
	return Spec{}, false
}
