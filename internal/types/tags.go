package types

import (
	"fmt"
	"strings"
)

// Tags is an insertion-ordered set of product tags.
// Add is idempotent and Remove of an absent tag is a no-op, so repeated
// rule application never produces duplicates.
type Tags struct {
	order []string
	index map[string]struct{}
}

// NewTags builds a tag set from a record's tags value. Accepts []string,
// []any (elements rendered with %v) and comma-separated strings; anything
// else yields an empty set. Duplicates in the input collapse to the first.
func NewTags(v any) *Tags {
	t := &Tags{index: make(map[string]struct{})}
	switch s := v.(type) {
	case []string:
		for _, tag := range s {
			t.Add(tag)
		}
	case []any:
		for _, tag := range s {
			if tag == nil {
				continue
			}
			if str, ok := tag.(string); ok {
				t.Add(str)
				continue
			}
			t.Add(fmt.Sprintf("%v", tag))
		}
	case string:
		for _, tag := range strings.Split(s, ",") {
			t.Add(strings.TrimSpace(tag))
		}
	}
	return t
}

// Add inserts tag if absent. Empty tags are ignored.
// Reports whether the set changed.
func (t *Tags) Add(tag string) bool {
	if tag == "" {
		return false
	}
	if _, ok := t.index[tag]; ok {
		return false
	}
	t.index[tag] = struct{}{}
	t.order = append(t.order, tag)
	return true
}

// Remove deletes tag if present. Reports whether the set changed.
func (t *Tags) Remove(tag string) bool {
	if _, ok := t.index[tag]; !ok {
		return false
	}
	delete(t.index, tag)
	for i, existing := range t.order {
		if existing == tag {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports membership.
func (t *Tags) Has(tag string) bool {
	_, ok := t.index[tag]
	return ok
}

// Len returns the number of tags.
func (t *Tags) Len() int {
	return len(t.order)
}

// Slice returns the tags in insertion order as a fresh slice.
func (t *Tags) Slice() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
