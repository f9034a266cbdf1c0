// internal/rules/operators.go
package rules

import (
	"math"
	"strings"

	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the 15 condition operators against a resolved field value.
 * The compiled condition carries the operand and a precompiled regex, so
 * comparison does no parsing beyond value coercion.
 *
 * Operators:
 *   - is_empty/is_not_empty: missing, "" or empty list (cost 1)
 *   - equals/not_equals: text equality after case folding (cost 5)
 *   - greater_than/less_than/..._or_equal: numeric, NaN never compares (cost 7)
 *   - in_list/not_in_list: membership with equals semantics (cost 8)
 *   - contains/not_contains/starts_with/ends_with: substring tests (cost 10)
 *   - matches_regex: precompiled pattern, invalid pattern is false (cost 64)
 *
 * Missing values never fail: text operators see "", numeric operators see
 * NaN. An unknown operator is false.
 */

// Compare applies the condition's operator to a resolved field value.
// value is nil when the field is missing.
func Compare(cond *CompiledCondition, value any) bool {
	switch cond.Operator {
	case types.OpEquals:
		return equalValues(value, cond.Value, cond.CaseSensitive)
	case types.OpNotEquals:
		return !equalValues(value, cond.Value, cond.CaseSensitive)
	case types.OpContains:
		return strings.Contains(cond.text(value), cond.operand)
	case types.OpNotContains:
		return !strings.Contains(cond.text(value), cond.operand)
	case types.OpStartsWith:
		return strings.HasPrefix(cond.text(value), cond.operand)
	case types.OpEndsWith:
		return strings.HasSuffix(cond.text(value), cond.operand)
	case types.OpGreaterThan:
		return compareNumeric(value, cond.number, func(a, b float64) bool { return a > b })
	case types.OpLessThan:
		return compareNumeric(value, cond.number, func(a, b float64) bool { return a < b })
	case types.OpGreaterOrEqual:
		return compareNumeric(value, cond.number, func(a, b float64) bool { return a >= b })
	case types.OpLessOrEqual:
		return compareNumeric(value, cond.number, func(a, b float64) bool { return a <= b })
	case types.OpIsEmpty:
		return isEmptyValue(value)
	case types.OpIsNotEmpty:
		return !isEmptyValue(value)
	case types.OpInList:
		return compareIn(value, cond.list, cond.CaseSensitive)
	case types.OpNotInList:
		return !compareIn(value, cond.list, cond.CaseSensitive)
	case types.OpMatchesRegex:
		if cond.regex == nil {
			return false
		}
		return cond.regex.MatchString(toText(value))
	default:
		return false
	}
}

// equalValues compares two values with equals semantics.
// Numbers compare numerically; everything else compares by folded text,
// which also covers numeric strings against numbers ("10" equals 10).
func equalValues(a, b any, caseSensitive bool) bool {
	if isNumeric(a) && isNumeric(b) && toNumber(a) == toNumber(b) {
		return true
	}
	return normalize(toText(a), caseSensitive) == normalize(toText(b), caseSensitive)
}

// compareNumeric coerces value to a number and applies cmp.
// Either side being NaN makes the comparison false.
func compareNumeric(value any, target float64, cmp func(a, b float64) bool) bool {
	n := toNumber(value)
	if math.IsNaN(n) || math.IsNaN(target) {
		return false
	}
	return cmp(n, target)
}

// compareIn checks membership using equals semantics.
func compareIn(value any, list []any, caseSensitive bool) bool {
	for _, elem := range list {
		if equalValues(value, elem, caseSensitive) {
			return true
		}
	}
	return false
}
