package rules

import (
	"reflect"
	"testing"

	"github.com/solatis/listingkeeper/internal/types"
)

func TestApply(t *testing.T) {
	record := types.Record{
		"title":          "Blue Widget",
		"brand":          "Acme",
		"description":    "Great widget. Widget for all.",
		"tags":           []string{"sale"},
		"supplier_price": 10.0,
		"price":          12.0,
	}

	tests := []struct {
		name   string
		action types.Action
		field  string
		want   any
	}{
		{
			name:   "set_field literal",
			action: types.Action{Type: types.ActionSetField, TargetField: "condition", Value: "new"},
			field:  "condition", want: "new",
		},
		{
			name:   "set_field keeps number type",
			action: types.Action{Type: types.ActionSetField, TargetField: "stock", Value: 3.0},
			field:  "stock", want: 3.0,
		},
		{
			name:   "set_field renders string value",
			action: types.Action{Type: types.ActionSetField, TargetField: "label", Value: "{{brand}}!"},
			field:  "label", want: "Acme!",
		},
		{
			name:   "set_field template wins over value",
			action: types.Action{Type: types.ActionSetField, TargetField: "label", Value: "ignored", Template: "{{title}}"},
			field:  "label", want: "Blue Widget",
		},
		{
			name:   "set_field dotted target is top-level",
			action: types.Action{Type: types.ActionSetField, TargetField: "seo.title", Value: "x"},
			field:  "seo.title", want: "x",
		},
		{
			name:   "append_text",
			action: types.Action{Type: types.ActionAppendText, TargetField: "title", Value: " - Free Shipping"},
			field:  "title", want: "Blue Widget - Free Shipping",
		},
		{
			name:   "append_text to missing field",
			action: types.Action{Type: types.ActionAppendText, TargetField: "subtitle", Value: "new"},
			field:  "subtitle", want: "new",
		},
		{
			name:   "prepend_text with template",
			action: types.Action{Type: types.ActionPrependText, TargetField: "title", Template: "{{brand}} "},
			field:  "title", want: "Acme Blue Widget",
		},
		{
			name: "replace_text all occurrences case-sensitive",
			action: types.Action{Type: types.ActionReplaceText, TargetField: "description",
				Options: map[string]any{"find": "Widget", "replace": "Gadget"}},
			field: "description", want: "Great widget. Gadget for all.",
		},
		{
			name: "replace_text find is literal",
			action: types.Action{Type: types.ActionReplaceText, TargetField: "description",
				Options: map[string]any{"find": ".", "replace": "!"}},
			field: "description", want: "Great widget! Widget for all!",
		},
		{
			name: "replace_text renders replacement",
			action: types.Action{Type: types.ActionReplaceText, TargetField: "title",
				Options: map[string]any{"find": "Blue", "replace": "{{brand}}"}},
			field: "title", want: "Acme Widget",
		},
		{
			name: "replace_text missing replace deletes",
			action: types.Action{Type: types.ActionReplaceText, TargetField: "title",
				Options: map[string]any{"find": "Blue "}},
			field: "title", want: "Widget",
		},
		{
			name:   "add_tag",
			action: types.Action{Type: types.ActionAddTag, Value: "featured"},
			field:  "tags", want: []string{"sale", "featured"},
		},
		{
			name:   "remove_tag",
			action: types.Action{Type: types.ActionRemoveTag, Value: "sale"},
			field:  "tags", want: []string{},
		},
		{
			name:   "set_category renders",
			action: types.Action{Type: types.ActionSetCategory, Template: "Brands > {{brand}}"},
			field:  "category", want: "Brands > Acme",
		},
		{
			name:   "apply_margin",
			action: types.Action{Type: types.ActionApplyMargin, Value: 50},
			field:  "price", want: 15.0,
		},
		{
			name:   "apply_margin numeric string",
			action: types.Action{Type: types.ActionApplyMargin, Value: "25"},
			field:  "price", want: 12.5,
		},
		{
			name:   "set_price",
			action: types.Action{Type: types.ActionSetPrice, Value: "9.99"},
			field:  "price", want: 9.99,
		},
		{
			name:   "exclude_product",
			action: types.Action{Type: types.ActionExcludeProduct, Options: map[string]any{"reason": "{{brand}} is blocked"}},
			field:  types.FieldExclusionReason, want: "Acme is blocked",
		},
		{
			name:   "transform_template",
			action: types.Action{Type: types.ActionTransformTemplate, TargetField: "title", Template: "{{brand}} - {{title}}"},
			field:  "title", want: "Acme - Blue Widget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			working := record.Clone()
			got := Apply(tt.action, working, working)
			if !reflect.DeepEqual(got[tt.field], tt.want) {
				t.Errorf("Apply(%s)[%q] = %#v, want %#v", tt.action.Type, tt.field, got[tt.field], tt.want)
			}
			if !reflect.DeepEqual(working, record) {
				t.Errorf("Apply(%s) mutated its input", tt.action.Type)
			}
		})
	}
}

func TestApply_NoOps(t *testing.T) {
	record := types.Record{
		"title":          "Blue Widget",
		"tags":           []string{"sale"},
		"supplier_price": "n/a",
		"price":          12.0,
	}

	tests := []struct {
		name   string
		record types.Record
		action types.Action
	}{
		{name: "set_field without target", action: types.Action{Type: types.ActionSetField, Value: "x"}},
		{name: "append_text without target", action: types.Action{Type: types.ActionAppendText, Value: "x"}},
		{name: "replace_text without find", action: types.Action{Type: types.ActionReplaceText, TargetField: "title"}},
		{name: "replace_text find absent", action: types.Action{Type: types.ActionReplaceText, TargetField: "title",
			Options: map[string]any{"find": "blue", "replace": "red"}}},
		{name: "replace_text missing field", action: types.Action{Type: types.ActionReplaceText, TargetField: "subtitle",
			Options: map[string]any{"find": "x", "replace": "y"}}},
		{name: "add_tag already present", action: types.Action{Type: types.ActionAddTag, Value: "sale"}},
		{name: "add_tag empty", action: types.Action{Type: types.ActionAddTag, Value: ""}},
		{name: "remove_tag absent", action: types.Action{Type: types.ActionRemoveTag, Value: "clearance"}},
		{name: "apply_margin non-numeric supplier price", action: types.Action{Type: types.ActionApplyMargin, Value: 20}},
		{name: "apply_margin without supplier price", record: types.Record{"price": 1.0},
			action: types.Action{Type: types.ActionApplyMargin, Value: 20}},
		{name: "apply_margin non-numeric margin", record: types.Record{"supplier_price": 10.0},
			action: types.Action{Type: types.ActionApplyMargin, Value: "lots"}},
		{name: "set_price non-numeric", action: types.Action{Type: types.ActionSetPrice, Value: "free"}},
		{name: "transform_template without template", action: types.Action{Type: types.ActionTransformTemplate, TargetField: "title"}},
		{name: "unknown action", action: types.Action{Type: "teleport", TargetField: "title", Value: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := record
			if tt.record != nil {
				input = tt.record
			}
			want := input.Clone()
			got := Apply(tt.action, input, input)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Apply(%s) = %v, want unchanged %v", tt.action.Type, got, want)
			}
		})
	}
}

func TestApply_ExcludeThenInclude(t *testing.T) {
	record := types.Record{"title": "Widget"}

	excluded := Apply(types.Action{Type: types.ActionExcludeProduct}, record, record)
	if excluded[types.FieldExcluded] != true {
		t.Fatalf("_excluded = %v, want true", excluded[types.FieldExcluded])
	}
	if excluded[types.FieldExclusionReason] != "" {
		t.Errorf("_exclusion_reason = %q, want empty", excluded[types.FieldExclusionReason])
	}

	included := Apply(types.Action{Type: types.ActionIncludeProduct}, excluded, excluded)
	if included[types.FieldExcluded] != false {
		t.Errorf("_excluded = %v, want false", included[types.FieldExcluded])
	}
	if _, ok := included[types.FieldExclusionReason]; ok {
		t.Errorf("_exclusion_reason still present after include_product")
	}
}

func TestApply_RendersAgainstOriginal(t *testing.T) {
	original := types.Record{"title": "Widget", "brand": "Acme"}
	working := Apply(types.Action{Type: types.ActionSetField, TargetField: "brand", Value: "Globex"}, original, original)

	got := Apply(types.Action{Type: types.ActionTransformTemplate, TargetField: "title", Template: "{{brand}} {{title}}"}, working, original)
	if got["title"] != "Acme Widget" {
		t.Errorf("title = %q, want rendering against the rule-start snapshot", got["title"])
	}
	if got["brand"] != "Globex" {
		t.Errorf("brand = %q, want earlier action kept", got["brand"])
	}
}

func TestApply_MarginReadsOriginalSupplierPrice(t *testing.T) {
	original := types.Record{"supplier_price": 10.0}
	working := Apply(types.Action{Type: types.ActionSetField, TargetField: "supplier_price", Value: 100.0}, original, original)

	got := Apply(types.Action{Type: types.ActionApplyMargin, Value: 50}, working, original)
	if got["price"] != 15.0 {
		t.Errorf("price = %v, want 15 computed from the rule-start supplier_price", got["price"])
	}
}

func TestApply_TagsFromCommaString(t *testing.T) {
	record := types.Record{"tags": "sale, new"}
	got := Apply(types.Action{Type: types.ActionAddTag, Value: "featured"}, record, record)
	want := []string{"sale", "new", "featured"}
	if !reflect.DeepEqual(got["tags"], want) {
		t.Errorf("tags = %#v, want %#v", got["tags"], want)
	}
}
