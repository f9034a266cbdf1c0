// internal/rules/actions.go
package rules

import (
	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * Action application.
 *
 * Apply returns a new working copy for each effective mutation and the
 * unchanged working copy for no-ops, so callers can detect "nothing
 * happened" by identity and the previous copy stays a valid snapshot.
 * Copies are shallow: actions only ever replace top-level fields, never
 * mutate nested values in place.
 *
 * Read sources:
 *   - templates and values render against original, the snapshot taken
 *     when the current rule started
 *   - append_text, prepend_text and replace_text read the current field
 *     value from the working copy
 *   - add_tag and remove_tag read the current tag set from the working copy
 *
 * TargetField names a top-level field; dots are part of the name.
 *
 * Malformed actions (missing target, missing template, non-numeric price)
 * and unknown types are no-ops. Apply never panics on rule input.
 */

// Apply applies one action and returns the resulting working copy.
func Apply(action types.Action, working, original types.Record) types.Record {
	ca := compileAction(action)
	return applyAction(&ca, working, original)
}

func applyAction(action *CompiledAction, working, original types.Record) types.Record {
	switch action.Type {
	case types.ActionSetField:
		if action.TargetField == "" {
			return working
		}
		return with(working, action.TargetField, resolveValue(action, original))

	case types.ActionAppendText, types.ActionPrependText:
		if action.TargetField == "" {
			return working
		}
		current := toText(working[action.TargetField])
		addend := renderText(action, original)
		if action.Type == types.ActionAppendText {
			return with(working, action.TargetField, current+addend)
		}
		return with(working, action.TargetField, addend+current)

	case types.ActionReplaceText:
		if action.TargetField == "" || action.find == nil {
			return working
		}
		raw, ok := working[action.TargetField]
		if !ok {
			return working
		}
		current := toText(raw)
		if !action.find.MatchString(current) {
			return working
		}
		replace, _ := action.Option("replace")
		replaced := action.find.ReplaceAllLiteralString(current, Render(replace, original))
		return with(working, action.TargetField, replaced)

	case types.ActionAddTag:
		tag := renderText(action, original)
		tags := types.NewTags(working[types.FieldTags])
		if !tags.Add(tag) {
			return working
		}
		return with(working, types.FieldTags, tags.Slice())

	case types.ActionRemoveTag:
		tag := renderText(action, original)
		tags := types.NewTags(working[types.FieldTags])
		if !tags.Remove(tag) {
			return working
		}
		return with(working, types.FieldTags, tags.Slice())

	case types.ActionSetCategory:
		return with(working, types.FieldCategory, renderText(action, original))

	case types.ActionApplyMargin:
		raw, ok := original[types.FieldSupplierPrice]
		if !ok {
			return working
		}
		supplierPrice := toNumber(raw)
		margin := toNumber(action.Value)
		if !isFinite(supplierPrice) || !isFinite(margin) {
			return working
		}
		return with(working, types.FieldPrice, supplierPrice*(1+margin/100))

	case types.ActionSetPrice:
		price := toNumber(action.Value)
		if !isFinite(price) {
			return working
		}
		return with(working, types.FieldPrice, price)

	case types.ActionExcludeProduct:
		reason, _ := action.Option("reason")
		next := with(working, types.FieldExcluded, true)
		next[types.FieldExclusionReason] = Render(reason, original)
		return next

	case types.ActionIncludeProduct:
		next := with(working, types.FieldExcluded, false)
		delete(next, types.FieldExclusionReason)
		return next

	case types.ActionTransformTemplate:
		if action.TargetField == "" || action.Template == "" {
			return working
		}
		return with(working, action.TargetField, Render(action.Template, original))

	default:
		return working
	}
}

// resolveValue returns the value written by set_field: the rendered
// template, a rendered string value, or a non-string value as-is so
// numbers, booleans and lists keep their type.
func resolveValue(action *CompiledAction, original types.Record) any {
	if action.Template != "" {
		return Render(action.Template, original)
	}
	if s, ok := action.Value.(string); ok {
		return Render(s, original)
	}
	return action.Value
}

// renderText returns the rendered template, or the value's text form rendered.
func renderText(action *CompiledAction, original types.Record) string {
	if action.Template != "" {
		return Render(action.Template, original)
	}
	return Render(toText(action.Value), original)
}

// with returns a shallow copy of r with key set to value.
func with(r types.Record, key string, value any) types.Record {
	next := make(types.Record, len(r)+1)
	for k, v := range r {
		next[k] = v
	}
	next[key] = value
	return next
}
