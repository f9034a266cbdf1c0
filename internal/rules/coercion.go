// internal/rules/coercion.go
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

/*
 * Value coercion for rule evaluation and action application.
 *
 * Product records are loosely typed: the same field may hold a string in
 * one product and a number in another. Operators therefore work on two
 * coerced views of a value:
 *
 *   - text: lenient, every value has a string form (missing -> "")
 *   - number: strict, numeric types and numeric strings only (else NaN)
 *
 * Text rendering follows what a rule author sees in the product editor:
 * integers without a decimal point, lists joined with commas, nil as "".
 *
 * Case folding uses Unicode lower-casing from golang.org/x/text. A Caser
 * is stateful, so each call builds its own.
 */

// toText converts a value to its string form.
// Lenient: accepts any type.
func toText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = toText(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatNumber renders integral floats without a fraction ("10", not "10.0").
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toNumber converts a value to float64 for numeric comparison.
// Accepts numeric types and numeric strings (whitespace trimmed).
// Everything else, including booleans and missing values, is NaN.
func toNumber(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// isFinite reports whether f is neither NaN nor infinite.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// isNumeric reports whether value is a Go numeric type (not a numeric string).
func isNumeric(value any) bool {
	switch value.(type) {
	case float64, float32, int, int64, int32, uint64:
		return true
	default:
		return false
	}
}

// normalize returns the comparison form of s: lower-cased unless caseSensitive.
func normalize(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return cases.Lower(language.Und).String(s)
}

// toList interprets an operand as a list of values.
// Lists pass through; strings split on commas with surrounding space trimmed.
func toList(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	default:
		return []any{v}
	}
}

// isEmptyValue reports missing values, empty strings and empty lists.
func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
