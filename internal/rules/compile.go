// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * Rule compilation and linting.
 *
 * Compiles types.Rule to CompiledRule: field paths pre-split, operands
 * pre-normalized, regexes precompiled, conditions cost-ordered within each
 * group and marketplace scope folded into a set.
 *
 * Compilation is tolerant, matching the evaluation contract: a bad
 * regex compiles to a condition that never matches, an unknown operator
 * to one that is always false, an unknown action to a no-op. The only
 * compile error is nesting beyond MaxGroupDepth, which would make
 * evaluation recursion unbounded; the engine skips such rules.
 *
 * Lint reports everything Compile tolerates so rule authors can fix rules
 * at authoring time. Lint never changes evaluation semantics.
 *
 * Stable sort: conditions with equal cost keep their authored order.
 */

// CompiledCondition is a pre-processed condition ready for evaluation.
type CompiledCondition struct {
	Field         string
	Operator      types.Operator
	Value         any
	CaseSensitive bool
	Cost          int

	segments []string
	operand  string         // folded text of Value for substring operators
	number   float64        // numeric Value for comparison operators (NaN if not numeric)
	list     []any          // in_list members
	regex    *regexp.Regexp // nil when the pattern is invalid
}

// text returns the comparison form of a resolved value.
func (c *CompiledCondition) text(value any) string {
	return normalize(toText(value), c.CaseSensitive)
}

// CompiledGroup is a pre-processed condition group.
type CompiledGroup struct {
	Logic      types.Logic
	Conditions []CompiledCondition // ordered by ascending cost
	Groups     []CompiledGroup
}

// CompiledAction is an action with its replace_text pattern precompiled.
type CompiledAction struct {
	types.Action
	find *regexp.Regexp
}

// CompiledRule is fully pre-processed and ready for evaluation.
type CompiledRule struct {
	RuleID       types.RuleID
	Name         string
	Priority     int
	RootLogic    types.Logic
	Groups       []CompiledGroup
	Actions      []CompiledAction
	Marketplaces map[string]struct{} // lower-cased; nil when unscoped
}

// Compile pre-processes a rule for evaluation.
// Returns ErrGroupTooDeep when groups nest beyond MaxGroupDepth.
func Compile(rule *types.Rule) (*CompiledRule, error) {
	compiled := &CompiledRule{
		RuleID:    rule.ID,
		Name:      rule.Name,
		Priority:  rule.Priority,
		RootLogic: parseLogic(rule.RootLogic),
		Groups:    make([]CompiledGroup, 0, len(rule.ConditionGroups)),
		Actions:   make([]CompiledAction, 0, len(rule.Actions)),
	}

	for _, group := range rule.ConditionGroups {
		cg, err := compileGroup(group, 1)
		if err != nil {
			return nil, err
		}
		compiled.Groups = append(compiled.Groups, cg)
	}

	for _, action := range rule.Actions {
		compiled.Actions = append(compiled.Actions, compileAction(action))
	}

	if len(rule.TargetMarketplaces) > 0 {
		compiled.Marketplaces = make(map[string]struct{}, len(rule.TargetMarketplaces))
		for _, m := range rule.TargetMarketplaces {
			compiled.Marketplaces[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
		}
	}

	return compiled, nil
}

// AppliesTo reports whether the rule is in scope for marketplace.
// Unscoped rules and calls without a marketplace are always in scope.
func (r *CompiledRule) AppliesTo(marketplace string) bool {
	if r.Marketplaces == nil || marketplace == "" {
		return true
	}
	_, ok := r.Marketplaces[strings.ToLower(strings.TrimSpace(marketplace))]
	return ok
}

// compileGroup compiles a group and its nested groups recursively.
func compileGroup(group types.ConditionGroup, depth int) (CompiledGroup, error) {
	if depth > types.MaxGroupDepth {
		return CompiledGroup{}, types.ErrGroupTooDeep
	}

	compiled := CompiledGroup{
		Logic:      parseLogic(group.Logic),
		Conditions: make([]CompiledCondition, 0, len(group.Conditions)),
		Groups:     make([]CompiledGroup, 0, len(group.NestedGroups)),
	}

	for _, cond := range group.Conditions {
		compiled.Conditions = append(compiled.Conditions, compileCondition(cond))
	}

	// Stable sort: equal-cost conditions keep authored order
	sort.SliceStable(compiled.Conditions, func(i, j int) bool {
		return compiled.Conditions[i].Cost < compiled.Conditions[j].Cost
	})

	for _, nested := range group.NestedGroups {
		cg, err := compileGroup(nested, depth+1)
		if err != nil {
			return CompiledGroup{}, err
		}
		compiled.Groups = append(compiled.Groups, cg)
	}

	return compiled, nil
}

// compileCondition pre-processes a single condition. Never fails: an
// invalid regex leaves regex nil, which evaluates to false.
func compileCondition(cond types.Condition) CompiledCondition {
	segments := splitPath(cond.Field)
	cc := CompiledCondition{
		Field:         cond.Field,
		Operator:      cond.Operator,
		Value:         cond.Value,
		CaseSensitive: cond.CaseSensitive,
		Cost:          CalculateConditionCost(len(segments), cond.Operator, cond.CaseSensitive),
		segments:      segments,
	}
	cc.operand = cc.text(cond.Value)
	cc.number = toNumber(cond.Value)

	switch cond.Operator {
	case types.OpInList, types.OpNotInList:
		cc.list = toList(cond.Value)
	case types.OpMatchesRegex:
		cc.regex, _ = compileRegex(toText(cond.Value), cond.CaseSensitive)
	}

	return cc
}

// compileAction precompiles the literal find pattern of replace_text.
func compileAction(action types.Action) CompiledAction {
	ca := CompiledAction{Action: action}
	if action.Type == types.ActionReplaceText {
		if find, ok := action.Option("find"); ok && find != "" {
			ca.find = regexp.MustCompile(regexp.QuoteMeta(find))
		}
	}
	return ca
}

// compileRegex compiles a user pattern, case-insensitive unless caseSensitive.
func compileRegex(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidRegex, err)
	}
	return re, nil
}

// parseLogic maps a logic value to AND or OR. Anything but OR is AND.
func parseLogic(l types.Logic) types.Logic {
	if strings.EqualFold(strings.TrimSpace(string(l)), string(types.LogicOr)) {
		return types.LogicOr
	}
	return types.LogicAnd
}

// Lint reports problems that Compile tolerates silently.
// Each error wraps a types sentinel and is prefixed with its location.
func Lint(rule *types.Rule) []error {
	var problems []error
	report := func(where string, err error) {
		problems = append(problems, fmt.Errorf("%s: %w", where, err))
	}

	if len(rule.ConditionGroups) == 0 {
		report("condition_groups", types.ErrNoConditionGroups)
	}
	if !validLogic(rule.RootLogic) {
		report("root_logic", fmt.Errorf("%w: %q", types.ErrInvalidLogic, rule.RootLogic))
	}
	for i, group := range rule.ConditionGroups {
		lintGroup(fmt.Sprintf("condition_groups[%d]", i), group, 1, report)
	}
	for i, action := range rule.Actions {
		if err := lintAction(action); err != nil {
			report(fmt.Sprintf("actions[%d]", i), err)
		}
	}
	return problems
}

func lintGroup(where string, group types.ConditionGroup, depth int, report func(string, error)) {
	if depth > types.MaxGroupDepth {
		report(where, types.ErrGroupTooDeep)
		return
	}
	if !validLogic(group.Logic) {
		report(where+".logic", fmt.Errorf("%w: %q", types.ErrInvalidLogic, group.Logic))
	}
	for i, cond := range group.Conditions {
		loc := fmt.Sprintf("%s.conditions[%d]", where, i)
		if !knownOperator(cond.Operator) {
			report(loc, fmt.Errorf("%w: %q", types.ErrInvalidOperator, cond.Operator))
			continue
		}
		if cond.Operator == types.OpMatchesRegex {
			if _, err := compileRegex(toText(cond.Value), cond.CaseSensitive); err != nil {
				report(loc, err)
			}
		}
	}
	for i, nested := range group.NestedGroups {
		lintGroup(fmt.Sprintf("%s.nested_groups[%d]", where, i), nested, depth+1, report)
	}
}

func lintAction(action types.Action) error {
	hasText := action.Template != "" || action.Value != nil
	switch action.Type {
	case types.ActionSetField, types.ActionAppendText, types.ActionPrependText:
		if action.TargetField == "" {
			return types.ErrMissingTargetField
		}
		if !hasText {
			return types.ErrMissingValue
		}
	case types.ActionReplaceText:
		if action.TargetField == "" {
			return types.ErrMissingTargetField
		}
		if find, ok := action.Option("find"); !ok || find == "" {
			return fmt.Errorf("%w: find", types.ErrMissingOption)
		}
	case types.ActionTransformTemplate:
		if action.TargetField == "" {
			return types.ErrMissingTargetField
		}
		if action.Template == "" {
			return types.ErrMissingTemplate
		}
	case types.ActionAddTag, types.ActionRemoveTag, types.ActionSetCategory:
		if !hasText {
			return types.ErrMissingValue
		}
	case types.ActionApplyMargin, types.ActionSetPrice:
		if !isFinite(toNumber(action.Value)) {
			return fmt.Errorf("%w: %v", types.ErrNotNumeric, action.Value)
		}
	case types.ActionExcludeProduct, types.ActionIncludeProduct:
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownAction, action.Type)
	}
	return nil
}

func validLogic(l types.Logic) bool {
	if l == "" {
		return true
	}
	s := strings.TrimSpace(string(l))
	return strings.EqualFold(s, string(types.LogicAnd)) || strings.EqualFold(s, string(types.LogicOr))
}

func knownOperator(op types.Operator) bool {
	switch op {
	case types.OpEquals, types.OpNotEquals, types.OpContains, types.OpNotContains,
		types.OpStartsWith, types.OpEndsWith, types.OpGreaterThan, types.OpLessThan,
		types.OpGreaterOrEqual, types.OpLessOrEqual, types.OpIsEmpty, types.OpIsNotEmpty,
		types.OpInList, types.OpNotInList, types.OpMatchesRegex:
		return true
	default:
		return false
	}
}
