package notionsync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the transactions database.
const (
	PropDescription   = "Description"
	PropDate          = "Date"
	PropPostDate      = "Post Date"
	PropAmount        = "Amount"
	PropCategory      = "Category"
	PropType          = "Type"
	PropMemo          = "Memo"
	PropTransactionID = "Transaction ID"
)

// TransactionToNotionProperties converts a stored transaction to Notion properties.
func TransactionToNotionProperties(t *domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{textContent(t.Description)},
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textContent(t.ID)},
		},
		PropDate: dateProperty(t.TransactionDate),
		PropAmount: notionapi.NumberProperty{
			Number: t.Amount.InexactFloat64(),
		},
	}

	if !t.PostDate.IsZero() {
		props[PropPostDate] = dateProperty(t.PostDate)
	}
	if t.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: t.Category},
		}
	}
	if t.TransactionType != "" {
		props[PropType] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: t.TransactionType},
		}
	}
	if t.Memo != nil {
		props[PropMemo] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textContent(*t.Memo)},
		}
	}

	return props
}

func textContent(s string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

func dateProperty(d civil.Date) notionapi.DateProperty {
	start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &start},
	}
}

// extractTransactionID returns the Transaction ID property of a page, or ""
// when the page has none.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	}
	return ""
}

func plainText(parts []notionapi.RichText) string {
	if len(parts) == 0 {
		return ""
	}
	if parts[0].PlainText != "" {
		return parts[0].PlainText
	}
	if parts[0].Text != nil {
		return parts[0].Text.Content
	}
	return ""
}

// propertyTypes is the schema the sync writes into.
var propertyTypes = map[string]notionapi.PropertyConfigType{
	PropDescription:   notionapi.PropertyConfigTypeTitle,
	PropDate:          notionapi.PropertyConfigTypeDate,
	PropPostDate:      notionapi.PropertyConfigTypeDate,
	PropAmount:        notionapi.PropertyConfigTypeNumber,
	PropCategory:      notionapi.PropertyConfigTypeSelect,
	PropType:          notionapi.PropertyConfigTypeSelect,
	PropMemo:          notionapi.PropertyConfigTypeRichText,
	PropTransactionID: notionapi.PropertyConfigTypeRichText,
}

// CheckDatabase compares the database schema with the properties the sync
// writes and returns one message per missing or mistyped property, sorted.
func CheckDatabase(ctx context.Context, client NotionService, databaseID string) ([]string, error) {
	db, err := client.GetDatabase(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("CheckDatabase: %w", err)
	}

	var problems []string
	for name, want := range propertyTypes {
		cfg, ok := db.Properties[name]
		if !ok || cfg == nil {
			problems = append(problems, fmt.Sprintf("%s: missing (want %s)", name, want))
			continue
		}
		if got := cfg.GetType(); got != want {
			problems = append(problems, fmt.Sprintf("%s: is %s, want %s", name, got, want))
		}
	}
	sort.Strings(problems)
	return problems, nil
}
