package pageloader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// ErrUnparseable marks a page file that is not valid JSON.
var ErrUnparseable = errors.New("page is not valid JSON")

// Severity of a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic describes a problem with one page file. Error diagnostics mean
// the file was excluded; warnings mean it was kept with defaults.
type Diagnostic struct {
	File     string   `json:"file"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.File, d.Message)
}

// Page is one decoded per-page extraction.
type Page struct {
	Name         string
	Year         json.RawMessage
	BasicInfo    map[string]any
	Categories   []domain.Category
	Transactions []domain.Transaction
}

// DecodeOptions controls page decoding.
type DecodeOptions struct {
	// StripNumbering removes list numbering such as "(1) " or "1 " from names.
	StripNumbering bool
}

var numberingPattern = regexp.MustCompile(`^(?:\(\d+\)\s*|\d+\s+)`)

// StripNumbering removes a leading list number from name.
func StripNumbering(name string) string {
	return numberingPattern.ReplaceAllString(name, "")
}

// DecodePage decodes one page. Invalid JSON returns an error wrapping
// ErrUnparseable; every other defect degrades to defaults and is reported
// as a warning diagnostic.
func DecodePage(name string, raw []byte, opts DecodeOptions) (Page, []Diagnostic, error) {
	page := Page{Name: name}
	var diags []Diagnostic
	warn := func(format string, args ...any) {
		diags = append(diags, Diagnostic{File: name, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Page{}, nil, fmt.Errorf("DecodePage: %s: %w: %v", name, ErrUnparseable, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Page{}, nil, fmt.Errorf("DecodePage: %s: %w: trailing data after top-level value", name, ErrUnparseable)
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		warn("top-level value is %s, not an object; page treated as empty", jsonKind(v))
		return page, diags, nil
	}

	if y, ok := obj["year"]; ok && y != nil {
		if yr, err := json.Marshal(y); err == nil {
			page.Year = yr
		}
	}
	if bi, ok := obj["basic_info"]; ok && bi != nil {
		if m, ok := bi.(map[string]interface{}); ok {
			page.BasicInfo = normalizeNumbers(m).(map[string]interface{})
		} else {
			warn("basic_info is %s, not an object; ignored", jsonKind(bi))
		}
	}

	for i, item := range arrayField(obj, "categories", warn) {
		c, err := decodeCategory(item, opts, warn)
		if err != nil {
			warn("categories[%d] skipped: %v", i, err)
			continue
		}
		page.Categories = append(page.Categories, c)
	}
	for i, item := range arrayField(obj, "transactions", warn) {
		t, err := decodeTransaction(item, opts)
		if err != nil {
			warn("transactions[%d] skipped: %v", i, err)
			continue
		}
		page.Transactions = append(page.Transactions, t)
	}

	return page, diags, nil
}

func arrayField(obj map[string]interface{}, key string, warn func(string, ...any)) []interface{} {
	v, ok := obj[key]
	if !ok {
		warn("missing %q; treated as empty", key)
		return nil
	}
	if v == nil {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		warn("%q is %s, not an array; treated as empty", key, jsonKind(v))
		return nil
	}
	return arr
}

func decodeCategory(item interface{}, opts DecodeOptions, warn func(string, ...any)) (domain.Category, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return domain.Category{}, fmt.Errorf("element is %s, not an object", jsonKind(item))
	}
	id, err := getIDField(m, "id")
	if err != nil {
		return domain.Category{}, err
	}
	name, err := getOptionalStringField(m, "name")
	if err != nil {
		return domain.Category{}, err
	}
	parent, err := getOptionalIDField(m, "parent")
	if err != nil {
		return domain.Category{}, err
	}
	direction, err := getOptionalDirectionField(m, "direction")
	if err != nil {
		warn("category %q: %v; direction dropped", id, err)
		direction = nil
	}
	if name != nil && opts.StripNumbering {
		stripped := StripNumbering(*name)
		name = &stripped
	}
	return domain.Category{ID: id, Name: name, Parent: parent, Direction: direction}, nil
}

func decodeTransaction(item interface{}, opts DecodeOptions) (domain.Transaction, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return domain.Transaction{}, fmt.Errorf("element is %s, not an object", jsonKind(item))
	}
	id, err := getIDField(m, "id")
	if err != nil {
		return domain.Transaction{}, err
	}
	categoryID, err := getIDField(m, "category_id")
	if err != nil {
		return domain.Transaction{}, err
	}
	name, err := getStringField(m, "name")
	if err != nil {
		return domain.Transaction{}, err
	}
	date, err := getOptionalStringField(m, "date")
	if err != nil {
		return domain.Transaction{}, err
	}
	value, err := getOptionalFloat64Field(m, "value")
	if err != nil {
		return domain.Transaction{}, err
	}
	if opts.StripNumbering {
		name = StripNumbering(name)
	}
	return domain.Transaction{ID: id, CategoryID: categoryID, Name: name, Date: date, Value: value}, nil
}

// normalizeNumbers turns json.Number back into float64 inside opaque values so
// they round-trip like any other decoded JSON.
func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]interface{}:
		for k, e := range val {
			val[k] = normalizeNumbers(e)
		}
		return val
	case []interface{}:
		for i, e := range val {
			val[i] = normalizeNumbers(e)
		}
		return val
	default:
		return v
	}
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "an object"
	case []interface{}:
		return "an array"
	case string:
		return "a string"
	case json.Number, float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
