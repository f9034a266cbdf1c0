// Package rulefile reads rule and product documents from disk.
//
// Rule documents are YAML or JSON (JSON is read through the YAML decoder)
// holding either a top-level list of rules or a mapping with a "rules" key:
//
//	rules:
//	  - name: Tag discounted Acme products
//	    priority: 10
//	    condition_groups:
//	      - logic: AND
//	        conditions:
//	          - {field: brand, operator: equals, value: Acme}
//	    actions:
//	      - {type: add_tag, value: sale}
//
// Omitted "enabled" defaults to true and omitted "root_logic" to AND.
package rulefile

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/solatis/listingkeeper/internal/types"
)

// Load reads the rules in the document at path.
func Load(path string) ([]types.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes a rule document.
func Parse(data []byte) ([]types.Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rule document: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}

	list := &doc
	if list.Kind == yaml.DocumentNode && len(list.Content) > 0 {
		list = list.Content[0]
	}
	if list.Kind == yaml.MappingNode {
		list = mappingValue(list, "rules")
		if list == nil {
			return nil, fmt.Errorf("invalid rule document: missing \"rules\" list")
		}
	}
	if list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("invalid rule document: line %d: expected a list of rules", list.Line)
	}

	rules := make([]types.Rule, 0, len(list.Content))
	for i, node := range list.Content {
		rule := types.Rule{Enabled: true, RootLogic: types.LogicAnd}
		if err := node.Decode(&rule); err != nil {
			return nil, fmt.Errorf("rule %d (line %d): %w", i, node.Line, err)
		}
		if rule.ID != "" {
			if _, err := types.ParseRuleID(string(rule.ID)); err != nil {
				return nil, fmt.Errorf("rule %d (line %d): invalid id %q: %w", i, node.Line, rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// LoadProduct reads a product document: {"product_id": ..., "record": {...}}.
// A document without a "record" key is taken to be the record itself, with
// the product ID read from its "id" field when present.
func LoadProduct(path string) (types.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Product{}, fmt.Errorf("failed to read product file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return types.Product{}, fmt.Errorf("%s: invalid product document: %w", path, err)
	}
	if raw == nil {
		return types.Product{}, fmt.Errorf("%s: empty product document", path)
	}

	if record, ok := raw["record"].(map[string]any); ok {
		id, _ := raw["product_id"].(string)
		return types.Product{ID: id, Record: types.Record(record)}, nil
	}
	id, _ := raw["id"].(string)
	return types.Product{ID: id, Record: types.Record(raw)}, nil
}

// Source serves a fixed rule set as a rules.RuleSource. Rules without a
// user_id apply to every user; rules without an ID get one on construction.
type Source struct {
	rules []types.Rule
}

// NewSource creates a source over rules.
func NewSource(rules []types.Rule) *Source {
	owned := make([]types.Rule, len(rules))
	copy(owned, rules)
	for i := range owned {
		if owned[i].ID == "" {
			owned[i].ID = types.NewRuleID()
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].Priority < owned[j].Priority
	})
	return &Source{rules: owned}
}

// ListEnabledRules returns the enabled rules visible to userID by ascending priority.
func (s *Source) ListEnabledRules(_ context.Context, userID string) ([]types.Rule, error) {
	var out []types.Rule
	for _, r := range s.rules {
		if !r.Enabled {
			continue
		}
		if r.UserID != "" && r.UserID != userID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
