// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * Condition and group evaluation.
 *
 * A group's result is Logic applied over the results of its direct
 * conditions followed by its nested groups. The rule's root applies
 * RootLogic over the per-group results in the same way.
 *
 * Vacuous truth: AND over an empty set is true, OR over an empty set is
 * false. A rule with no condition groups at all is the exception and never
 * matches, so an empty rule cannot rewrite every product.
 *
 * Short-circuit semantics: AND stops at the first false, OR at the first
 * true. Conditions are cost-ordered at compile time, nested groups follow
 * direct conditions in authored order.
 */

// EvaluateCondition evaluates one condition against record.
// Convenience wrapper that compiles the condition on every call; the
// engine evaluates precompiled conditions instead.
func EvaluateCondition(cond types.Condition, record types.Record) bool {
	cc := compileCondition(cond)
	return evaluateCondition(&cc, record)
}

// EvaluateGroup evaluates one condition group against record.
// Groups nested beyond MaxGroupDepth evaluate to false.
func EvaluateGroup(group types.ConditionGroup, record types.Record) bool {
	cg, err := compileGroup(group, 1)
	if err != nil {
		return false
	}
	return evaluateGroup(&cg, record)
}

// Matches reports whether the compiled rule's condition tree matches record.
func (r *CompiledRule) Matches(record types.Record) bool {
	if len(r.Groups) == 0 {
		return false
	}
	return reduce(r.RootLogic, len(r.Groups), func(i int) bool {
		return evaluateGroup(&r.Groups[i], record)
	})
}

// evaluateGroup applies the group's logic over conditions then nested groups.
func evaluateGroup(group *CompiledGroup, record types.Record) bool {
	nc := len(group.Conditions)
	return reduce(group.Logic, nc+len(group.Groups), func(i int) bool {
		if i < nc {
			return evaluateCondition(&group.Conditions[i], record)
		}
		return evaluateGroup(&group.Groups[i-nc], record)
	})
}

// evaluateCondition resolves the field and compares it. A missing field
// compares as nil.
func evaluateCondition(cond *CompiledCondition, record types.Record) bool {
	value, _ := resolveSegments(record, cond.segments)
	return Compare(cond, value)
}

// reduce folds n lazily computed results with every (AND) or some (OR).
func reduce(logic types.Logic, n int, result func(i int) bool) bool {
	if logic == types.LogicOr {
		for i := 0; i < n; i++ {
			if result(i) {
				return true
			}
		}
		return false
	}
	for i := 0; i < n; i++ {
		if !result(i) {
			return false
		}
	}
	return true
}
