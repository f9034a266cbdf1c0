package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/solatis/listingkeeper/internal/types"
)

func TestRunBatch_PreservesOrder(t *testing.T) {
	rule := types.Rule{
		ID: "markup", Enabled: true, ConditionGroups: matchAll(),
		Actions: []types.Action{{Type: types.ActionApplyMargin, Value: 100}},
	}
	source := &staticSource{rules: []types.Rule{rule}}
	engine := NewEngine(source, WithWorkers(3))

	products := make([]types.Product, 50)
	for i := range products {
		products[i] = types.Product{
			ID:     fmt.Sprintf("p-%02d", i),
			Record: types.Record{"supplier_price": float64(i)},
		}
	}

	results, err := engine.RunBatch(context.Background(), "u", products, "")
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if source.calls != 1 {
		t.Errorf("rule source called %d times, want 1", source.calls)
	}
	if len(results) != len(products) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(products))
	}
	for i, r := range results {
		if r.ProductID != products[i].ID {
			t.Errorf("results[%d].ProductID = %s, want %s", i, r.ProductID, products[i].ID)
		}
		if r.Err != nil {
			t.Errorf("results[%d].Err = %v", i, r.Err)
			continue
		}
		if got, want := r.Result.ModifiedData["price"], float64(2*i); got != want {
			t.Errorf("results[%d] price = %v, want %v", i, got, want)
		}
		if r.Result.Logs[0].ProductID != products[i].ID {
			t.Errorf("results[%d] log product = %s", i, r.Result.Logs[0].ProductID)
		}
	}
}

func TestRunBatch_CancelledContext(t *testing.T) {
	engine := NewEngine(&staticSource{rules: []types.Rule{{ID: "r", Enabled: true, ConditionGroups: matchAll()}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	products := []types.Product{{ID: "a", Record: types.Record{}}, {ID: "b", Record: types.Record{}}}
	results, err := engine.RunBatch(ctx, "u", products, "")
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("results[%d].Err = %v, want context.Canceled", i, r.Err)
		}
		if r.Result != nil {
			t.Errorf("results[%d].Result = %v, want nil", i, r.Result)
		}
	}
}

func TestRunBatch_RuleStoreFailure(t *testing.T) {
	engine := NewEngine(&staticSource{err: errors.New("down")})
	if _, err := engine.RunBatch(context.Background(), "u", []types.Product{{ID: "a"}}, ""); !errors.Is(err, types.ErrRuleStore) {
		t.Errorf("RunBatch() error = %v, want ErrRuleStore", err)
	}
}
