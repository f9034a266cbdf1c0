package rulefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/listingkeeper/internal/types"
)

const yamlRules = `
rules:
  - id: 0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b
    name: Tag Acme
    priority: 10
    target_marketplaces: [amazon]
    condition_groups:
      - logic: OR
        conditions:
          - {field: brand, operator: equals, value: Acme}
        nested_groups:
          - logic: AND
            conditions:
              - {field: price, operator: greater_than, value: 10}
    actions:
      - {type: add_tag, value: sale}
      - type: apply_margin
        options: {margin: 25}
  - name: Disabled
    enabled: false
    priority: 1
    condition_groups:
      - logic: AND
    actions:
      - {type: exclude_product}
`

const jsonRules = `[
  {"name": "Prefix", "priority": 2, "root_logic": "OR",
   "condition_groups": [{"logic": "AND", "conditions": [{"field": "title", "operator": "is_not_empty"}]}],
   "actions": [{"type": "prepend_text", "target_field": "title", "template": "{{brand}} "}]}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	rules, err := Load(writeFile(t, "rules.yaml", yamlRules))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}

	first := rules[0]
	if first.ID != "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b" || first.Name != "Tag Acme" || first.Priority != 10 {
		t.Errorf("scalar fields = %+v", first)
	}
	if !first.Enabled || first.RootLogic != types.LogicAnd {
		t.Errorf("defaults not applied: enabled=%v root_logic=%q", first.Enabled, first.RootLogic)
	}
	if len(first.ConditionGroups) != 1 || len(first.ConditionGroups[0].NestedGroups) != 1 {
		t.Fatalf("condition tree = %+v", first.ConditionGroups)
	}
	if first.ConditionGroups[0].Conditions[0].Operator != types.OpEquals {
		t.Errorf("operator = %q", first.ConditionGroups[0].Conditions[0].Operator)
	}
	if margin, ok := first.Actions[1].Options["margin"].(int); !ok || margin != 25 {
		t.Errorf("margin option = %#v", first.Actions[1].Options["margin"])
	}
	if len(first.TargetMarketplaces) != 1 || first.TargetMarketplaces[0] != "amazon" {
		t.Errorf("target marketplaces = %v", first.TargetMarketplaces)
	}

	if rules[1].Enabled {
		t.Error("explicit enabled: false ignored")
	}
}

func TestLoad_JSON(t *testing.T) {
	rules, err := Load(writeFile(t, "rules.json", jsonRules))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	if rules[0].RootLogic != types.LogicOr || rules[0].Actions[0].Template != "{{brand}} " {
		t.Errorf("rule = %+v", rules[0])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"scalar document", "just text"},
		{"mapping without rules", "other: []"},
		{"rules not a list", "rules: {name: x}"},
		{"malformed yaml", "rules: [\n"},
		{"invalid id", "- {id: not-a-uuid, name: x}"},
		{"wrong field type", "- {priority: high}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Errorf("expected error for %q", tt.doc)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	rules, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) failed: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules, want 0", len(rules))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadProduct(t *testing.T) {
	t.Run("wrapped", func(t *testing.T) {
		path := writeFile(t, "product.json", `{"product_id": "sku-1", "record": {"title": "Widget", "price": 9.5}}`)
		p, err := LoadProduct(path)
		if err != nil {
			t.Fatalf("LoadProduct failed: %v", err)
		}
		if p.ID != "sku-1" || p.Record["title"] != "Widget" || p.Record["price"] != 9.5 {
			t.Errorf("product = %+v", p)
		}
	})

	t.Run("bare record", func(t *testing.T) {
		path := writeFile(t, "product.json", `{"id": "sku-2", "title": "Gadget"}`)
		p, err := LoadProduct(path)
		if err != nil {
			t.Fatalf("LoadProduct failed: %v", err)
		}
		if p.ID != "sku-2" || p.Record["title"] != "Gadget" {
			t.Errorf("product = %+v", p)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := LoadProduct(writeFile(t, "product.json", "")); err == nil {
			t.Error("expected error for empty document")
		}
	})
}

func TestSource(t *testing.T) {
	rules := []types.Rule{
		{Name: "late", Priority: 5, Enabled: true},
		{Name: "mine", Priority: 1, Enabled: true, UserID: "user-1"},
		{Name: "theirs", Priority: 1, Enabled: true, UserID: "user-2"},
		{Name: "off", Priority: 0, Enabled: false},
		{Name: "early", Priority: 0, Enabled: true},
	}
	src := NewSource(rules)

	got, err := src.ListEnabledRules(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListEnabledRules failed: %v", err)
	}

	var names []string
	for _, r := range got {
		names = append(names, r.Name)
		if r.ID == "" {
			t.Errorf("rule %s has no ID", r.Name)
		}
	}
	want := []string{"early", "mine", "late"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}

	if rules[0].ID != "" {
		t.Error("NewSource mutated its input")
	}
}
