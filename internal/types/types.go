// Package types provides domain models shared across listingkeeper components.
//
// Rule definitions, product records and execution log entries live here so
// that the evaluation core (internal/rules), the persistence layer
// (internal/core/db) and the gRPC surface (internal/core/api) agree on one
// shape. ID utilities in ids.go import uuid; everything else is plain Go.
package types

import "time"

// RuleID represents a UUIDv7 rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// LogID represents a UUIDv7 execution log identifier.
type LogID string

// Record is a product record: field name to string, number, bool, list or
// nested object. Nested objects are map[string]any (as produced by JSON and
// YAML decoding) or Record.
type Record map[string]any

// Clone returns a deep copy of r. Maps and slices are copied recursively so
// the result shares no mutable state with r. A nil record clones to an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Product pairs a product identifier with its record for batch evaluation.
type Product struct {
	ID     string `json:"product_id" yaml:"product_id"`
	Record Record `json:"record" yaml:"record"`
}

// LogEntry records one matched rule during one evaluation pass.
// Entries are write-once; BeforeData and AfterData are independent snapshots.
type LogEntry struct {
	ID                LogID     `json:"log_id"`
	RuleID            RuleID    `json:"rule_id"`
	UserID            string    `json:"user_id"`
	ProductID         string    `json:"product_id"`
	Marketplace       string    `json:"marketplace,omitempty"`
	ExecutedAt        time.Time `json:"executed_at"`
	Success           bool      `json:"success"`
	ConditionsMatched bool      `json:"conditions_matched"`
	ActionsApplied    []string  `json:"actions_applied"`
	BeforeData        Record    `json:"before_data"`
	AfterData         Record    `json:"after_data"`
}

// Resource limits enforced by the rule engine.
const (
	// MaxPathDepth bounds dotted field paths; deeper paths resolve as missing.
	MaxPathDepth = 16

	// MaxGroupDepth bounds condition group nesting so recursive evaluation
	// cannot exhaust the stack on hostile rule definitions.
	MaxGroupDepth = 16

	// MaxTemplateLength caps rendered template input.
	MaxTemplateLength = 64 * 1024
)
