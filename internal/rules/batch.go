// internal/rules/batch.go
package rules

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/solatis/listingkeeper/internal/types"
)

// BatchResult is the outcome for one product of a batch.
// Err is set when the product was not evaluated (context cancelled).
type BatchResult struct {
	ProductID string
	Result    *Result
	Err       error
}

// RunBatch evaluates products for userID against one rule snapshot.
// Products are independent and run on a bounded worker pool; rules within
// a product still apply sequentially. Results keep input order. Cancelling
// ctx stops products that have not started; they report ctx.Err().
func (e *Engine) RunBatch(ctx context.Context, userID string, products []types.Product, marketplace string) ([]BatchResult, error) {
	compiled, err := e.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(products))
	p := pool.New().WithMaxGoroutines(e.workers)
	for i := range products {
		p.Go(func() {
			product := products[i]
			results[i].ProductID = product.ID
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i].Result = e.Process(compiled, userID, product.ID, product.Record, marketplace)
		})
	}
	p.Wait()

	return results, nil
}
