// internal/rules/cost.go
package rules

import "github.com/solatis/listingkeeper/internal/types"

/*
 * Cost model for condition evaluation.
 *
 * Conditions inside a group are evaluated cheapest first so the AND/OR
 * reduction can short-circuit before reaching regexes and case-folded
 * substring scans. Evaluation is side-effect free, so the reordering never
 * changes a group's result.
 *
 * Cost formula: lookup_cost * segments + operator_cost * fold_multiplier
 *
 * Fold multiplier: case-insensitive text operators lower-case both sides
 * on every evaluation, which allocates; case-sensitive ones do not.
 */

const (
	// Operator base costs
	CostIsEmpty = 1
	CostEquals  = 5
	CostCompare = 7
	CostInList  = 8
	CostText    = 10
	CostRegex   = 64

	// Field lookup cost per dotted path segment
	CostLookupPerSegment = 2

	// Case folding multiplier for case-insensitive text operators
	MultiplierFold = 4
)

// CalculateConditionCost computes the evaluation cost of one condition.
func CalculateConditionCost(segments int, op types.Operator, caseSensitive bool) int {
	opCost := operatorCost(op)
	if !caseSensitive && foldsCase(op) {
		opCost *= MultiplierFold
	}
	return segments*CostLookupPerSegment + opCost
}

// operatorCost returns base cost for operator execution.
func operatorCost(op types.Operator) int {
	switch op {
	case types.OpIsEmpty, types.OpIsNotEmpty:
		return CostIsEmpty
	case types.OpEquals, types.OpNotEquals:
		return CostEquals
	case types.OpGreaterThan, types.OpLessThan, types.OpGreaterOrEqual, types.OpLessOrEqual:
		return CostCompare
	case types.OpInList, types.OpNotInList:
		return CostInList
	case types.OpContains, types.OpNotContains, types.OpStartsWith, types.OpEndsWith:
		return CostText
	case types.OpMatchesRegex:
		return CostRegex
	default:
		// Unknown operators evaluate to false without work
		return CostIsEmpty
	}
}

// foldsCase reports operators whose evaluation lower-cases text.
// matches_regex folds inside the regex engine, not by allocation.
func foldsCase(op types.Operator) bool {
	switch op {
	case types.OpEquals, types.OpNotEquals, types.OpInList, types.OpNotInList,
		types.OpContains, types.OpNotContains, types.OpStartsWith, types.OpEndsWith:
		return true
	default:
		return false
	}
}
