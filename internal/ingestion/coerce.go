package ingestion

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	nullSentinels = map[string]struct{}{
		"":     {},
		"nan":  {},
		"null": {},
		"#n/a": {},
	}

	truthyValues = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "oui": {}, "o": {}}
	falsyValues  = map[string]struct{}{"false": {}, "0": {}, "non": {}, "no": {}, "n": {}}

	timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

	dateLayouts = []string{
		"2006-01-02",
		"02/01/2006",
		"2006-01-02 15:04:05",
	}
)

const dateExpectation = "date in YYYY-MM-DD or DD/MM/YYYY format"

// IsBlank reports whether a raw cell carries no value.
func IsBlank(raw string) bool {
	_, ok := nullSentinels[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// Coerce converts a raw cell into the typed value stored for field. Blank
// cells yield nil. Foreign keys are resolved separately by the importer.
func Coerce(field domain.FieldSpec, raw string) (any, error) {
	if IsBlank(raw) {
		return nil, nil
	}
	value := strings.TrimSpace(raw)

	switch field.Type {
	case domain.FieldTypeString, domain.FieldTypeChoice:
		return value, nil
	case domain.FieldTypeInteger:
		return coerceInteger(field.Name, value)
	case domain.FieldTypeBoolean:
		return coerceBoolean(field.Name, value)
	case domain.FieldTypeTime:
		return coerceTime(field.Name, value)
	case domain.FieldTypeDate:
		return coerceDate(field.Name, value)
	case domain.FieldTypeDecimal:
		return coerceDecimal(field.Name, value)
	case domain.FieldTypeForeignKey:
		return value, nil
	default:
		return nil, &UnsupportedFieldError{Field: field.Name, Type: field.Type}
	}
}

func coerceInteger(field, value string) (int64, error) {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	// Numeric spreadsheet cells come back as "2.0".
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int64(f)) {
		return int64(f), nil
	}
	return 0, &ConversionError{Field: field, Value: value, Expected: "integer"}
}

func coerceBoolean(field, value string) (bool, error) {
	lowered := strings.ToLower(value)
	if _, ok := truthyValues[lowered]; ok {
		return true, nil
	}
	if _, ok := falsyValues[lowered]; ok {
		return false, nil
	}
	return false, &ConversionError{Field: field, Value: value, Expected: "boolean (true/false, oui/non, 1/0)"}
}

func coerceTime(field, value string) (domain.TimeOfDay, error) {
	fail := &ConversionError{Field: field, Value: value, Expected: "time in HH:MM or HH:MM:SS format"}

	match := timeOfDayPattern.FindStringSubmatch(value)
	if match == nil {
		return domain.TimeOfDay{}, fail
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	second := 0
	if match[3] != "" {
		second, _ = strconv.Atoi(match[3])
	}
	if hour > 23 || minute > 59 || second > 59 {
		return domain.TimeOfDay{}, fail
	}
	return domain.TimeOfDay{Hour: hour, Minute: minute, Second: second}, nil
}

func coerceDate(field, value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			y, m, d := parsed.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, &ConversionError{Field: field, Value: value, Expected: dateExpectation}
}

func coerceDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.Replace(value, ",", ".", 1))
	if err != nil {
		return decimal.Decimal{}, &ConversionError{Field: field, Value: value, Expected: "decimal number"}
	}
	return d, nil
}
