package types

import "errors"

// Sentinel errors for listingkeeper operations.
var (
	// ErrRuleStore indicates the rule source could not supply a rule set.
	// The only failure that aborts an evaluation pass.
	ErrRuleStore = errors.New("rule store unavailable")

	// ErrGroupTooDeep indicates condition groups nest beyond MaxGroupDepth.
	ErrGroupTooDeep = errors.New("condition groups nest too deeply")

	// ErrNoConditionGroups indicates a rule without condition groups (never matches).
	ErrNoConditionGroups = errors.New("rule has no condition groups")

	// ErrInvalidLogic indicates a logic value other than AND or OR.
	ErrInvalidLogic = errors.New("invalid logic")

	// ErrInvalidOperator indicates an unknown condition operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidRegex indicates a matches_regex pattern that does not compile.
	ErrInvalidRegex = errors.New("invalid regular expression")

	// ErrUnknownAction indicates an unknown action type.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrMissingTargetField indicates a field-mutating action without target_field.
	ErrMissingTargetField = errors.New("action requires target_field")

	// ErrMissingTemplate indicates transform_template without a template.
	ErrMissingTemplate = errors.New("action requires template")

	// ErrMissingOption indicates an action without a required option.
	ErrMissingOption = errors.New("action requires option")

	// ErrMissingValue indicates an action without a value or template.
	ErrMissingValue = errors.New("action requires value or template")

	// ErrNotNumeric indicates a numeric action value that does not parse.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrRuleNotFound indicates a rule ID unknown to the store.
	ErrRuleNotFound = errors.New("rule not found")
)
