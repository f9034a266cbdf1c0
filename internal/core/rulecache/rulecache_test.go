package rulecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solatis/listingkeeper/internal/types"
)

type countingSource struct {
	rules map[string][]types.Rule
	err   error
	calls map[string]int
}

func newCountingSource() *countingSource {
	return &countingSource{
		rules: map[string][]types.Rule{
			"user-1": {{ID: "r1", Name: "first", Enabled: true}, {ID: "r2", Name: "second", Enabled: true}},
			"user-2": {{ID: "r3", Name: "third", Enabled: true}},
		},
		calls: map[string]int{},
	}
}

func (c *countingSource) ListEnabledRules(_ context.Context, userID string) ([]types.Rule, error) {
	c.calls[userID]++
	if c.err != nil {
		return nil, c.err
	}
	return c.rules[userID], nil
}

func TestSource_CachesPerUser(t *testing.T) {
	ctx := context.Background()
	next := newCountingSource()
	src := New(next, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := src.ListEnabledRules(ctx, "user-1")
		if err != nil {
			t.Fatalf("ListEnabledRules failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d rules, want 2", len(got))
		}
	}
	if next.calls["user-1"] != 1 {
		t.Errorf("source called %d times for user-1, want 1", next.calls["user-1"])
	}

	got, err := src.ListEnabledRules(ctx, "user-2")
	if err != nil {
		t.Fatalf("ListEnabledRules failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r3" {
		t.Errorf("user-2 rules = %+v", got)
	}
}

func TestSource_Invalidate(t *testing.T) {
	ctx := context.Background()
	next := newCountingSource()
	src := New(next, time.Minute)

	src.ListEnabledRules(ctx, "user-1")
	src.ListEnabledRules(ctx, "user-2")
	src.Invalidate("user-1")
	src.ListEnabledRules(ctx, "user-1")
	src.ListEnabledRules(ctx, "user-2")

	if next.calls["user-1"] != 2 {
		t.Errorf("user-1 calls = %d, want 2 after invalidate", next.calls["user-1"])
	}
	if next.calls["user-2"] != 1 {
		t.Errorf("user-2 calls = %d, want 1", next.calls["user-2"])
	}

	src.Flush()
	src.ListEnabledRules(ctx, "user-2")
	if next.calls["user-2"] != 2 {
		t.Errorf("user-2 calls = %d, want 2 after flush", next.calls["user-2"])
	}
}

func TestSource_ZeroTTLDisablesCaching(t *testing.T) {
	ctx := context.Background()
	next := newCountingSource()
	src := New(next, 0)

	src.ListEnabledRules(ctx, "user-1")
	src.ListEnabledRules(ctx, "user-1")

	if next.calls["user-1"] != 2 {
		t.Errorf("source called %d times, want 2", next.calls["user-1"])
	}
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	next := newCountingSource()
	next.err = errors.New("database down")
	src := New(next, time.Minute)

	if _, err := src.ListEnabledRules(ctx, "user-1"); err == nil {
		t.Fatal("expected error")
	}

	next.err = nil
	got, err := src.ListEnabledRules(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListEnabledRules after recovery failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d rules, want 2", len(got))
	}
}

func TestSource_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	src := New(newCountingSource(), time.Minute)

	first, _ := src.ListEnabledRules(ctx, "user-1")
	second, _ := src.ListEnabledRules(ctx, "user-1")
	second[0].Name = "mutated"
	second[1].Actions = append(second[1].Actions, types.Action{Type: types.ActionAddTag})

	third, _ := src.ListEnabledRules(ctx, "user-1")
	if len(third) != 2 {
		t.Fatalf("got %d rules, want 2", len(third))
	}
	if third[0].Name != "first" {
		t.Errorf("cached rule mutated through caller copy: %q", third[0].Name)
	}
	if len(third[1].Actions) != 0 {
		t.Errorf("cached actions mutated through caller copy: %+v", third[1].Actions)
	}
	if first[0].Name != "first" {
		t.Errorf("first copy changed: %q", first[0].Name)
	}
}
