package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Direction is the money flow side a category belongs to.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// DateUnknown replaces a missing transaction date in consolidated output.
const DateUnknown = "unknown"

// Category is one node of the report's category hierarchy as transcribed from a page.
// Name, Parent and Direction are pointers because pages omit them or send null,
// and a missing name must stay distinguishable from an empty one.
type Category struct {
	ID        string     `json:"id,omitempty"`
	Name      *string    `json:"name,omitempty"`
	Parent    *string    `json:"parent"`
	Direction *Direction `json:"direction,omitempty"`
}

// Transaction is one line item attached to a category.
type Transaction struct {
	ID         string   `json:"id"`
	CategoryID string   `json:"category_id"`
	Name       string   `json:"name"`
	Date       *string  `json:"date"`
	Value      *float64 `json:"value"`
}

// Document is the shape of both a single extracted page and the consolidated report.
type Document struct {
	Year         json.RawMessage `json:"year"`
	BasicInfo    map[string]any  `json:"basic_info"`
	Categories   []Category      `json:"categories"`
	Transactions []Transaction   `json:"transactions"`
}

// NameOr returns the category name, or fallback when the page did not provide one.
func (c Category) NameOr(fallback string) string {
	if c.Name == nil {
		return fallback
	}
	return *c.Name
}

// ParentID returns the parent ID, or "" for a null parent.
func (c Category) ParentID() string {
	if c.Parent == nil {
		return ""
	}
	return *c.Parent
}

// Clone returns a copy that shares no pointers with c.
func (c Category) Clone() Category {
	out := Category{ID: c.ID}
	if c.Name != nil {
		out.Name = StringPtr(*c.Name)
	}
	if c.Parent != nil {
		out.Parent = StringPtr(*c.Parent)
	}
	if c.Direction != nil {
		d := *c.Direction
		out.Direction = &d
	}
	return out
}

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Date != nil {
		out.Date = StringPtr(*t.Date)
	}
	if t.Value != nil {
		out.Value = FloatPtr(*t.Value)
	}
	return out
}

// Clone deep-copies the document so a consolidation run can own its input.
func (d Document) Clone() Document {
	out := Document{
		Categories:   make([]Category, len(d.Categories)),
		Transactions: make([]Transaction, len(d.Transactions)),
	}
	if d.Year != nil {
		out.Year = append(json.RawMessage(nil), d.Year...)
	}
	if d.BasicInfo != nil {
		out.BasicInfo = cloneValue(d.BasicInfo).(map[string]any)
	}
	for i, c := range d.Categories {
		out.Categories[i] = c.Clone()
	}
	for i, t := range d.Transactions {
		out.Transactions[i] = t.Clone()
	}
	return out
}

// cloneValue copies the maps and slices of a decoded JSON value.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// YearInt interprets the year field, which pages emit either as a number or a string.
func (d Document) YearInt() (int, bool) {
	if len(d.Year) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(d.Year, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			return int(v), true
		}
	}
	var s string
	if err := json.Unmarshal(d.Year, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v, true
		}
	}
	return 0, false
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

// DirectionPtr returns a pointer to d.
func DirectionPtr(d Direction) *Direction { return &d }
