package notionsync

import (
	"time"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the ledger database.
const (
	PropName          = "Name"
	PropTransactionID = "Transaction ID"
	PropCategory      = "Category"
	PropCategoryID    = "Category ID"
	PropDirection     = "Direction"
	PropValue         = "Value"
	PropDate          = "Date"
	PropRawDate       = "Raw Date"
	PropRunID         = "Run ID"
)

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func richTextProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

// TransactionToProperties maps a ledger line to a Notion page. category may be
// the zero value when the transaction's category is unknown.
func TransactionToProperties(tx domain.Transaction, category domain.Category, runID string) notionapi.Properties {
	name := tx.Name
	if name == "" {
		name = tx.ID
	}

	props := notionapi.Properties{
		PropName:          titleProp(name),
		PropTransactionID: richTextProp(tx.ID),
		PropCategoryID:    richTextProp(tx.CategoryID),
		PropRunID:         richTextProp(runID),
	}

	if tx.Value != nil {
		props[PropValue] = notionapi.NumberProperty{Number: *tx.Value}
	}

	if category.Name != nil && *category.Name != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: *category.Name}}
	}
	if category.Direction != nil {
		props[PropDirection] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(*category.Direction)}}
	}

	if tx.Date != nil {
		props[PropRawDate] = richTextProp(*tx.Date)
		if d, ok := domain.ParseDate(*tx.Date); ok {
			start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
			props[PropDate] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
		}
	}

	return props
}

// extractTransactionID reads the Transaction ID property of a page, or "".
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
