// Package work runs a unit of work over a collection of items with bounded
// parallelism, collecting every per-item failure instead of stopping at the
// first one.
package work

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultPoolSize is the worker count used when none is configured: a small
// pool relative to the machine, since most work blocks on external calls.
func DefaultPoolSize() int {
	n := runtime.NumCPU() / 2
	if n < 2 {
		n = 2
	}
	if n > 8 {
		n = 8
	}
	return n
}

// Pool bounds how many items run concurrently. The zero value is not usable;
// construct via NewPool or Synchronous.
type Pool struct {
	size int
}

// NewPool returns a pool running up to size items at a time. A size below 1
// falls back to DefaultPoolSize.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize()
	}
	return &Pool{size: size}
}

// Synchronous returns a single-worker pool: items run one at a time in input
// order, producing the same success/failure set as any parallel pool. Used
// for deterministic debugging and tests.
func Synchronous() *Pool {
	return &Pool{size: 1}
}

// Size returns the configured worker count.
func (p *Pool) Size() int { return p.size }

// Result pairs one input item with its outcome.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// RunAll applies fn to every item with the pool's parallelism. Each item is
// attempted exactly once; a failing item never cancels its siblings. Results
// come back in input order. If any item failed, the returned error is a
// *PartialFailure aggregating every failure.
//
// A fn error wrapped with Fatal stops the pool from dispatching items that
// have not started yet (in-flight items still run to completion); the
// undispatched items are reported as not attempted.
func RunAll[T, R any](ctx context.Context, pool *Pool, items []T, fn func(context.Context, T) (R, error)) ([]Result[T, R], error) {
	results := make([]Result[T, R], len(items))
	for i, item := range items {
		results[i].Item = item
	}

	var fatal atomic.Bool
	var wg sync.WaitGroup
	slots := make(chan struct{}, pool.size)

	for i := range items {
		if fatal.Load() {
			results[i].Err = ErrNotAttempted
			continue
		}

		slots <- struct{}{}

		// Re-check after acquiring a slot: a fatal failure may have been
		// recorded while this item was waiting to be dispatched.
		if fatal.Load() {
			<-slots
			results[i].Err = ErrNotAttempted
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer func() {
				<-slots
				wg.Done()
			}()
			value, err := fn(ctx, items[i])
			results[i].Value = value
			results[i].Err = err
			if IsFatal(err) {
				fatal.Store(true)
			}
		}(i)
	}
	wg.Wait()

	if err := collectFailures(results); err != nil {
		return results, err
	}
	return results, nil
}

// Run is the side-effecting variant of RunAll for work without a return
// value.
func Run[T any](ctx context.Context, pool *Pool, items []T, fn func(context.Context, T) error) error {
	_, err := RunAll(ctx, pool, items, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}

// collectFailures aggregates every failed result into a *PartialFailure,
// or returns nil when everything succeeded.
func collectFailures[T, R any](results []Result[T, R]) error {
	var pf PartialFailure
	for _, r := range results {
		if r.Err != nil {
			pf.Failures = append(pf.Failures, Failure{Item: itemLabel(r.Item), Err: r.Err})
		}
	}
	if len(pf.Failures) == 0 {
		return nil
	}
	return &pf
}
