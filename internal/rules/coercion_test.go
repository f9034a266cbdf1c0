package rules

import (
	"math"
	"testing"
)

func TestToText(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil is empty", value: nil, want: ""},
		{name: "string passthrough", value: "Widget", want: "Widget"},
		{name: "integral float", value: float64(42), want: "42"},
		{name: "fractional float", value: 19.99, want: "19.99"},
		{name: "negative float", value: -0.5, want: "-0.5"},
		{name: "int", value: 7, want: "7"},
		{name: "int64", value: int64(999), want: "999"},
		{name: "true", value: true, want: "true"},
		{name: "false", value: false, want: "false"},
		{name: "string list", value: []string{"a", "b"}, want: "a,b"},
		{name: "mixed list", value: []any{"a", 1, true}, want: "a,1,true"},
		{name: "empty list", value: []any{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toText(tt.value); got != tt.want {
				t.Errorf("toText(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		wantNaN bool
	}{
		{name: "float64 passthrough", value: 42.5, want: 42.5},
		{name: "int", value: 100, want: 100},
		{name: "int64", value: int64(999), want: 999},
		{name: "numeric string", value: "25", want: 25},
		{name: "string with whitespace", value: "  42  ", want: 42},
		{name: "decimal string", value: "3.14159", want: 3.14159},
		{name: "negative string", value: "-100", want: -100},
		{name: "scientific notation", value: "1e3", want: 1000},
		{name: "non-numeric string", value: "abc", wantNaN: true},
		{name: "empty string", value: "", wantNaN: true},
		{name: "whitespace-only string", value: "   ", wantNaN: true},
		{name: "boolean", value: true, wantNaN: true},
		{name: "nil", value: nil, wantNaN: true},
		{name: "list", value: []any{1}, wantNaN: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toNumber(tt.value)
			if tt.wantNaN {
				if !math.IsNaN(got) {
					t.Errorf("toNumber(%v) = %v, want NaN", tt.value, got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("toNumber(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestToList(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []any
	}{
		{name: "comma string trimmed", value: "etsy, shopify ,ebay", want: []any{"etsy", "shopify", "ebay"}},
		{name: "single string", value: "etsy", want: []any{"etsy"}},
		{name: "string list", value: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "any list passthrough", value: []any{"a", 1.5}, want: []any{"a", 1.5}},
		{name: "scalar wraps", value: 3, want: []any{3}},
		{name: "nil is empty", value: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toList(tt.value)
			if len(got) != len(tt.want) {
				t.Fatalf("len(toList(%v)) = %d, want %d", tt.value, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("toList(%v)[%d] = %v, want %v", tt.value, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("ÄPFEL Widget", false); got != "äpfel widget" {
		t.Errorf("normalize() = %q, want %q", got, "äpfel widget")
	}
	if got := normalize("ÄPFEL Widget", true); got != "ÄPFEL Widget" {
		t.Errorf("normalize(caseSensitive) = %q, want input unchanged", got)
	}
}

func TestIsEmptyValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "nil", value: nil, want: true},
		{name: "empty string", value: "", want: true},
		{name: "empty any list", value: []any{}, want: true},
		{name: "empty string list", value: []string{}, want: true},
		{name: "whitespace string", value: " ", want: false},
		{name: "zero", value: float64(0), want: false},
		{name: "false", value: false, want: false},
		{name: "non-empty list", value: []string{"a"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyValue(tt.value); got != tt.want {
				t.Errorf("isEmptyValue(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
