package rules

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/listingkeeper/internal/types"
)

// Test normal path resolution cases
func TestResolve_Normal(t *testing.T) {
	record := types.Record{
		"title":    "Widget",
		"price":    19.99,
		"supplier": map[string]any{"price": 12.5, "address": map[string]any{"country": "DE"}},
		"meta":     types.Record{"sku": "W-1"},
		"note":     nil,
	}

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{name: "top-level field", path: "title", expected: "Widget"},
		{name: "numeric field", path: "price", expected: 19.99},
		{name: "nested object", path: "supplier.price", expected: 12.5},
		{name: "deep nesting", path: "supplier.address.country", expected: "DE"},
		{name: "nested Record", path: "meta.sku", expected: "W-1"},
		{name: "present nil", path: "note", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Resolve(record, tt.path)
			if !found {
				t.Fatalf("Resolve(%q) found = false, want true", tt.path)
			}
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

// Test edge cases: every one resolves as missing, none fails
func TestResolve_Missing(t *testing.T) {
	record := types.Record{
		"title":    "Widget",
		"tags":     []string{"a", "b"},
		"supplier": map[string]any{"price": 12.5},
		"nothing":  nil,
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing top-level", path: "brand"},
		{name: "missing nested", path: "supplier.name"},
		{name: "scalar but path continues", path: "title.length"},
		{name: "list but path continues", path: "tags.0"},
		{name: "nil intermediate", path: "nothing.inner"},
		{name: "empty path", path: ""},
		{name: "trailing dot", path: "supplier."},
		{name: "too deep", path: strings.Repeat("a.", types.MaxPathDepth) + "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Resolve(record, tt.path)
			if found {
				t.Errorf("Resolve(%q) found = true (value %v), want false", tt.path, got)
			}
			if got != nil {
				t.Errorf("Resolve(%q) = %v, want nil", tt.path, got)
			}
		})
	}
}

func TestResolve_NilRecord(t *testing.T) {
	if _, found := Resolve(nil, "title"); found {
		t.Errorf("Resolve(nil) found = true, want false")
	}
}

// Property-based test: resolution never crashes
func TestResolve_PropertyNeverCrashes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	record := types.Record{
		"a": map[string]any{"b": map[string]any{"c": "deep"}, "list": []any{1, 2}},
		"s": "scalar",
		"n": nil,
	}

	properties.Property("resolution never crashes regardless of path", prop.ForAll(
		func(depth int, key string) bool {
			segments := make([]string, depth)
			for i := range segments {
				switch i % 3 {
				case 0:
					segments[i] = "a"
				case 1:
					segments[i] = key
				default:
					segments[i] = "b"
				}
			}

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Resolve() panicked: %v", r)
				}
			}()

			_, _ = Resolve(record, strings.Join(segments, "."))
			return true
		},
		gen.IntRange(0, 20),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
