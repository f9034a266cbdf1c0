// internal/types/rules.go
package types

import "time"

/*
 * Domain types for product rules.
 *
 * A Rule combines a tree of condition groups with an ordered action list.
 * These types are the storage and wire shape; internal/rules compiles them
 * into CompiledRule (regexes precompiled, conditions cost-ordered) before
 * evaluation.
 *
 * Key types:
 *   - Rule: priority, root logic, marketplace scope, groups and actions
 *   - ConditionGroup: AND/OR over conditions and nested groups (recursive)
 *   - Condition: field path, operator, operand, case sensitivity
 *   - Action: mutation type with target field, value, template and options
 *
 * Enumerations are strings so rule documents stay readable in YAML, JSON
 * and the database. Unknown values are tolerated here; evaluation treats
 * them as non-matching operators or no-op actions.
 */

// Logic combines boolean results.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator names a condition comparison.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
	OpInList         Operator = "in_list"
	OpNotInList      Operator = "not_in_list"
	OpMatchesRegex   Operator = "matches_regex"
)

// ActionType names a record mutation.
type ActionType string

const (
	ActionSetField          ActionType = "set_field"
	ActionAppendText        ActionType = "append_text"
	ActionPrependText       ActionType = "prepend_text"
	ActionReplaceText       ActionType = "replace_text"
	ActionAddTag            ActionType = "add_tag"
	ActionRemoveTag         ActionType = "remove_tag"
	ActionSetCategory       ActionType = "set_category"
	ActionApplyMargin       ActionType = "apply_margin"
	ActionSetPrice          ActionType = "set_price"
	ActionExcludeProduct    ActionType = "exclude_product"
	ActionIncludeProduct    ActionType = "include_product"
	ActionTransformTemplate ActionType = "transform_template"
)

// Well-known record fields written by actions.
const (
	FieldTags            = "tags"
	FieldCategory        = "category"
	FieldPrice           = "price"
	FieldSupplierPrice   = "supplier_price"
	FieldExcluded        = "_excluded"
	FieldExclusionReason = "_exclusion_reason"
)

// Condition is one leaf comparison.
type Condition struct {
	Field         string   `json:"field" yaml:"field"`
	Operator      Operator `json:"operator" yaml:"operator"`
	Value         any      `json:"value,omitempty" yaml:"value,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// ConditionGroup applies Logic over its conditions and nested groups.
type ConditionGroup struct {
	Logic        Logic            `json:"logic" yaml:"logic"`
	Conditions   []Condition      `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	NestedGroups []ConditionGroup `json:"nested_groups,omitempty" yaml:"nested_groups,omitempty"`
}

// Action is one mutation applied when a rule matches.
// Template takes precedence over Value for text-producing actions.
type Action struct {
	Type        ActionType     `json:"type" yaml:"type"`
	TargetField string         `json:"target_field,omitempty" yaml:"target_field,omitempty"`
	Value       any            `json:"value,omitempty" yaml:"value,omitempty"`
	Template    string         `json:"template,omitempty" yaml:"template,omitempty"`
	Options     map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Option returns Options[key] when it is present and a string.
func (a Action) Option(key string) (string, bool) {
	v, ok := a.Options[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Rule is a complete user-authored rule.
type Rule struct {
	ID                 RuleID           `json:"id" yaml:"id"`
	UserID             string           `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name               string           `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled            bool             `json:"enabled" yaml:"enabled"`
	Priority           int              `json:"priority" yaml:"priority"`
	RootLogic          Logic            `json:"root_logic" yaml:"root_logic"`
	ConditionGroups    []ConditionGroup `json:"condition_groups" yaml:"condition_groups"`
	Actions            []Action         `json:"actions" yaml:"actions"`
	TargetMarketplaces []string         `json:"target_marketplaces,omitempty" yaml:"target_marketplaces,omitempty"`
	CreatedAt          time.Time        `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt          time.Time        `json:"updated_at,omitempty" yaml:"-"`
}
