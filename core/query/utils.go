// Package query provides a set of utility functions to support the query builder
// and processor. These helpers handle common tasks such as type conversions.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// StringPtr is a helper function that returns a pointer to a string.
func StringPtr(s string) *string {
	return &s
}

// IntPtr is a helper function that returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// ToFloat64 converts a value of various numeric types, or a plain numeric
// string, to a float64. It does not strip any formatting; see ParseNumber.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// currencyEntities are HTML entities that show up in exported spreadsheets.
var currencyEntities = strings.NewReplacer("&euro;", "", "&pound;", "", "&dollar;", "", "&yen;", "")

// ParseNumber is the single numeric parser shared by sum aggregation and
// target parsing. On strings it removes thousands separators, currency
// symbols (any unicode Sc rune, HTML entities, a leading or trailing "EUR")
// and whitespace before parsing. Empty or unparseable input reports false.
func ParseNumber(v any) (float64, bool) {
	str, ok := v.(string)
	if !ok {
		return ToFloat64(v)
	}

	str = currencyEntities.Replace(strings.TrimSpace(str))
	str = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(str, "EUR"), "EUR"))

	var b strings.Builder
	b.Grow(len(str))
	for _, r := range str {
		switch {
		case r == ',':
		case unicode.IsSpace(r):
		case unicode.Is(unicode.Sc, r):
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Number is ParseNumber with unparseable input counted as zero.
func Number(v any) float64 {
	f, _ := ParseNumber(v)
	return f
}

// TermString renders a raw field value as a terms-aggregation key. Missing
// values render as the empty term.
func TermString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		if f, ok := ToFloat64(val); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(val)
	}
}
