package pageloader

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// Pages are decoded with UseNumber, so numbers arrive as json.Number.

// getIDField reads an identifier that may have been emitted as a string or a number.
func getIDField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string or number", key, v)
	}
}

func getOptionalIDField(m map[string]interface{}, key string) (*string, error) {
	if v, ok := m[key]; !ok || v == nil {
		return nil, nil
	}
	s, err := getIDField(m, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// getOptionalStringField keeps an empty string distinct from a missing value.
func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		return &val, nil
	case json.Number:
		s := val.String()
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getStringField(m map[string]interface{}, key string) (string, error) {
	s, err := getOptionalStringField(m, key)
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

// getOptionalFloat64Field accepts numbers and numeric strings such as "10,200" or "¥1,000".
// NaN and infinities are rejected since they cannot be written back as JSON.
func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		return &f, nil
	case float64:
		f := val
		return &f, nil
	case string:
		cleaned := strings.NewReplacer(",", "", "，", "", "¥", "", "円", "", " ", "").Replace(strings.TrimSpace(val))
		if cleaned == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("field %q: %q is not a number", key, val)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

func getOptionalDirectionField(m map[string]interface{}, key string) (*domain.Direction, error) {
	s, err := getOptionalStringField(m, key)
	if err != nil || s == nil {
		return nil, err
	}
	switch d := domain.Direction(strings.ToLower(strings.TrimSpace(*s))); d {
	case domain.DirectionIncome, domain.DirectionExpense:
		return &d, nil
	default:
		return nil, fmt.Errorf("field %q has unknown direction %q", key, *s)
	}
}
