package resolve

import (
	"context"
	"sync"

	"github.com/dnsscience/resolve/internal/worker"
	"golang.org/x/time/rate"
)

// AddressSetResult is one name's outcome within a ResolveAllAddresses
// batch: either Addresses or Err is populated, never both.
type AddressSetResult struct {
	Name      string
	Addresses []AddressResult
	Err       error
}

// ResolveAllAddresses resolves names concurrently, at most concurrency at
// a time, returning one AddressSetResult per input name in the same
// order names was given in. A failure resolving one name does not affect
// the others; it is recorded in that name's Err field.
//
// If Options.BatchQPS is positive, the batch self-throttles to that many
// new queries per second across the whole call, independent of
// concurrency, so a caller resolving a large name list does not flood
// the configured servers.
func (r *Resolver) ResolveAllAddresses(ctx context.Context, names []string, family Family, concurrency int) ([]AddressSetResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if qps := r.options.BatchQPS; qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(qps), max(1, int(qps)))
	}

	pool := worker.NewPool(worker.Config{Workers: concurrency})
	defer pool.Close()

	results := make([]AddressSetResult, len(names))

	// Pool.Submit blocks its caller until that job finishes, so actual
	// fan-out concurrency comes from having one goroutine per name submit
	// concurrently — the pool's worker count, not this loop, bounds how
	// many run at once.
	var wg sync.WaitGroup
	wg.Add(len(names))
	for i, name := range names {
		i, name := i, name
		go func() {
			defer wg.Done()
			job := worker.JobFunc(func(ctx context.Context) error {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						results[i] = AddressSetResult{Name: name, Err: err}
						return err
					}
				}
				addrs, err := r.ResolveAddresses(ctx, name, family)
				results[i] = AddressSetResult{Name: name, Addresses: addrs, Err: err}
				return err
			})
			if err := pool.Submit(ctx, job); err != nil {
				results[i] = AddressSetResult{Name: name, Err: err}
			}
		}()
	}
	wg.Wait()

	return results, nil
}
